package classifier

import (
	"testing"

	"github.com/fenilsonani/dlsort/internal/rules"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"song.mp3", ".mp3"},
		{"SONG.MP3", ".mp3"},
		{"archive.tar.gz", ".gz"},
		{".bashrc", ""},
		{".config.json", ".json"},
		{"..foo", ".foo"},
		{"...mp3", ".mp3"},
		{"..", ""},
		{"...", ""},
		{"README", ""},
		{"trailing.", ""},
		{"/downloads/photo.JPeG", ".jpeg"},
		{`C:\Users\me\Downloads\setup.EXE`, ".exe"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Extension(tt.name); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	rs := rules.Default()

	tests := []struct {
		file string
		want string
	}{
		{"song.mp3", "Music"},
		{"Track.FLAC", "Music"},
		{"report.docx", "Documents"},
		{"movie.mkv", "Videos"},
		{"installer.exe", "Programs"},
		{"photo.PNG", "Images"},
		{"backup.tar.gz", "Compressed"},
		{"main.go", "Code"},
		{"novel.epub", "eBooks"},
		{"linux.iso.torrent", "Torrents"},
		{"unknown.xyz", "Other"},
		{"Makefile", "Other"},
		{".hidden", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := Classify(tt.file, rs); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestClassifyOverlapFirstCategoryWins(t *testing.T) {
	rs := rules.New(
		rules.Category{Name: "Documents", Extensions: []string{".pdf"}},
		rules.Category{Name: "eBooks", Extensions: []string{".pdf", ".epub"}},
	)
	if got := Classify("manual.pdf", rs); got != "Documents" {
		t.Errorf("expected Documents, got %q", got)
	}

	reversed := rules.New(
		rules.Category{Name: "eBooks", Extensions: []string{".pdf", ".epub"}},
		rules.Category{Name: "Documents", Extensions: []string{".pdf"}},
	)
	if got := Classify("manual.pdf", reversed); got != "eBooks" {
		t.Errorf("expected eBooks when listed first, got %q", got)
	}
}

func TestClassifyExtensionListedUnderOther(t *testing.T) {
	rs := rules.New(
		rules.Category{Name: "Music", Extensions: []string{".mp3"}},
		rules.Category{Name: rules.OtherCategory, Extensions: []string{".log"}},
	)
	if got := Classify("app.log", rs); got != rules.OtherCategory {
		t.Errorf("expected Other, got %q", got)
	}
}

func TestIndexMatchesClassify(t *testing.T) {
	rs := rules.Default()
	idx := NewIndex(rs)

	files := []string{
		"a.mp3", "b.pdf", "c.PDF", "d.tar.gz", "e", ".f", "g.unknown", "h.azw3", "i.sh", "j.torrent",
	}
	for _, f := range files {
		if got, want := idx.Classify(f), Classify(f, rs); got != want {
			t.Errorf("Index.Classify(%q) = %q, Classify = %q", f, got, want)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	rs := rules.Default()
	first := Classify("paper.pdf", rs)
	for i := 0; i < 100; i++ {
		if got := Classify("paper.pdf", rs); got != first {
			t.Fatalf("classification changed between calls: %q vs %q", first, got)
		}
	}
}
