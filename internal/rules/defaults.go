package rules

// Default returns the built-in categories used when no rule document exists.
// Note that .pdf appears under both Documents and eBooks; Documents is listed
// first and therefore wins.
func Default() *RuleSet {
	return New(
		Category{Name: "Music", Extensions: []string{".mp3", ".flac", ".wav", ".ogg", ".m4a", ".aac"}},
		Category{Name: "Documents", Extensions: []string{
			".doc", ".docx", ".pdf", ".txt", ".xls", ".xlsx", ".ppt", ".pptx", ".csv", ".rtf", ".tex", ".ods",
		}},
		Category{Name: "Videos", Extensions: []string{".mp4", ".mkv", ".flv", ".avi", ".mov", ".wmv", ".mpeg", ".mpg"}},
		Category{Name: "Programs", Extensions: []string{
			".exe", ".msi", ".dmg", ".pkg", ".app", ".deb", ".rpm", ".jar", ".bat", ".sh",
		}},
		Category{Name: "Images", Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".tiff", ".ico", ".raw"}},
		Category{Name: "Compressed", Extensions: []string{".zip", ".rar", ".7z", ".tar", ".gz", ".bz2"}},
		Category{Name: "Code", Extensions: []string{
			".py", ".js", ".html", ".css", ".java", ".c", ".cpp", ".cs", ".php", ".go", ".rb", ".swift",
		}},
		Category{Name: "eBooks", Extensions: []string{".epub", ".mobi", ".azw", ".azw3", ".pdf"}},
		Category{Name: "Torrents", Extensions: []string{".torrent"}},
		Category{Name: OtherCategory, Extensions: []string{}},
	)
}
