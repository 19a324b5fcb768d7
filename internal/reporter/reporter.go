// Package reporter renders sort reports, category listings and sort history.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/fenilsonani/dlsort/internal/engine"
	"github.com/fenilsonani/dlsort/internal/journal"
	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/session"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatSummary OutputFormat = "summary"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatSummary:
		return f, nil
	case "":
		return FormatSummary, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (want summary, table, json or yaml)", s)
	}
}

// Reporter handles report generation
type Reporter struct {
	writer io.Writer
	format OutputFormat
}

// New creates a new Reporter
func New(writer io.Writer, format OutputFormat) *Reporter {
	return &Reporter{
		writer: writer,
		format: format,
	}
}

// Report renders a finished sort
func (r *Reporter) Report(report *session.Report) error {
	switch r.format {
	case FormatTable:
		return r.reportTable(report)
	case FormatJSON:
		return r.encodeJSON(newReportDoc(report))
	case FormatYAML:
		return r.encodeYAML(newReportDoc(report))
	case FormatSummary:
		return r.reportSummary(report)
	default:
		return fmt.Errorf("unsupported format: %s", r.format)
	}
}

// reportSummary generates a summary report
func (r *Reporter) reportSummary(report *session.Report) error {
	title := "Sort Summary"
	if report.DryRun {
		title = "Sort Summary (dry run)"
	}
	fmt.Fprintf(r.writer, "=== %s ===\n", title)
	fmt.Fprintf(r.writer, "Source: %s\n", report.Source)
	fmt.Fprintf(r.writer, "Files: %d\n", report.Total)
	fmt.Fprintf(r.writer, "Moved: %d (%s)\n", report.Completed, humanize.IBytes(uint64(movedBytes(report))))
	if len(report.Skipped) > 0 {
		fmt.Fprintf(r.writer, "Skipped: %d\n", len(report.Skipped))
	}
	fmt.Fprintf(r.writer, "Duration: %s\n", report.Duration().Round(time.Millisecond))

	if counts := countByCategory(report); len(counts) > 0 {
		fmt.Fprintf(r.writer, "\nBreakdown by Category:\n")
		for _, c := range counts {
			fmt.Fprintf(r.writer, "  %s: %d files, %s\n", c.name, c.files, humanize.IBytes(uint64(c.size)))
		}
	}

	switch {
	case report.Aborted:
		fmt.Fprintf(r.writer, "\nStopped at the first failure.\n")
	case report.Canceled:
		fmt.Fprintf(r.writer, "\nCanceled after %d of %d files.\n", report.Completed, report.Total)
	}

	if len(report.Errors) > 0 {
		fmt.Fprint(r.writer, mover.FormatErrorSummary(report.RelocationErrors()))
	}

	return nil
}

// reportTable generates a table report
func (r *Reporter) reportTable(report *session.Report) error {
	rows := make([][]string, 0, len(report.Moved)+len(report.Errors))
	for _, o := range report.Moved {
		rows = append(rows, []string{
			o.Name,
			o.Category,
			o.Result.Destination,
			humanize.IBytes(uint64(o.Result.Size)),
			string(o.Result.Method),
		})
	}
	for _, fe := range report.Errors {
		rows = append(rows, []string{
			fe.Name,
			fe.Category,
			fe.Err.Destination,
			"",
			fe.Err.Reason.String(),
		})
	}

	fmt.Fprintln(r.writer, renderTable(
		[]string{"File", "Category", "Destination", "Size", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintf(r.writer, "Total: %d moved, %d failed, %s\n",
		report.Completed, len(report.Errors), humanize.IBytes(uint64(movedBytes(report))))

	return nil
}

// Categories renders the category view
func (r *Reporter) Categories(cats []engine.Category) error {
	switch r.format {
	case FormatJSON, FormatYAML:
		docs := make([]categoryDoc, 0, len(cats))
		for _, c := range cats {
			docs = append(docs, categoryDoc{
				Name:        c.Name,
				Extensions:  c.Extensions,
				Destination: c.Destination,
				Custom:      c.Custom,
			})
		}
		if r.format == FormatJSON {
			return r.encodeJSON(docs)
		}
		return r.encodeYAML(docs)
	}

	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		dest := c.Destination
		if c.Custom {
			dest += " *"
		}
		exts := strings.Join(c.Extensions, " ")
		if exts == "" {
			exts = "(everything else)"
		}
		rows = append(rows, []string{c.Name, exts, dest})
	}
	fmt.Fprintln(r.writer, renderTable([]string{"Category", "Extensions", "Directory"}, rows, nil))
	return nil
}

// History renders recorded sessions, newest first
func (r *Reporter) History(sessions []journal.SessionRecord) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(sessionDocs(sessions))
	case FormatYAML:
		return r.encodeYAML(sessionDocs(sessions))
	}

	if len(sessions) == 0 {
		fmt.Fprintln(r.writer, "No sorts recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{
			shortID(s.ID),
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Time(s.StartedAt),
			fmt.Sprintf("%d/%d", s.Completed, s.Total),
			fmt.Sprint(s.Failed),
			sessionFlags(s),
		})
	}
	fmt.Fprintln(r.writer, renderTable(
		[]string{"ID", "Started", "", "Moved", "Failed", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
	return nil
}

// Moves renders the files of one recorded session
func (r *Reporter) Moves(rec journal.SessionRecord, moves []journal.MoveRecord) error {
	switch r.format {
	case FormatJSON:
		return r.encodeJSON(sessionMovesDoc{Session: sessionDocs([]journal.SessionRecord{rec})[0], Files: moveDocs(moves)})
	case FormatYAML:
		return r.encodeYAML(sessionMovesDoc{Session: sessionDocs([]journal.SessionRecord{rec})[0], Files: moveDocs(moves)})
	}

	fmt.Fprintf(r.writer, "Session %s (%s)\n", rec.ID, rec.StartedAt.Local().Format(time.RFC1123))
	rows := make([][]string, 0, len(moves))
	for _, m := range moves {
		result := m.Method
		if !m.Moved() {
			result = m.Reason
		}
		size := ""
		if m.Moved() {
			size = humanize.IBytes(uint64(m.Size))
		}
		rows = append(rows, []string{m.Name, m.Category, m.Destination, size, result})
	}
	fmt.Fprintln(r.writer, renderTable(
		[]string{"File", "Category", "Destination", "Size", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	return nil
}

func (r *Reporter) encodeJSON(v any) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (r *Reporter) encodeYAML(v any) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(v)
}

// SaveToFile saves the report to a file
func SaveToFile(report *session.Report, path string, format OutputFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return New(file, format).Report(report)
}

type categoryCount struct {
	name  string
	files int
	size  int64
}

func countByCategory(report *session.Report) []categoryCount {
	index := make(map[string]int)
	var counts []categoryCount
	for _, o := range report.Moved {
		i, ok := index[o.Category]
		if !ok {
			i = len(counts)
			index[o.Category] = i
			counts = append(counts, categoryCount{name: o.Category})
		}
		counts[i].files++
		counts[i].size += o.Result.Size
	}
	sort.SliceStable(counts, func(a, b int) bool {
		return counts[a].files > counts[b].files
	})
	return counts
}

func movedBytes(report *session.Report) int64 {
	var total int64
	for _, o := range report.Moved {
		total += o.Result.Size
	}
	return total
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionFlags(s journal.SessionRecord) string {
	var flags []string
	if s.DryRun {
		flags = append(flags, "dry run")
	}
	if s.Aborted {
		flags = append(flags, "aborted")
	}
	if s.Canceled {
		flags = append(flags, "canceled")
	}
	if s.State == session.StateFailed.String() {
		flags = append(flags, "source unreadable")
	}
	return strings.Join(flags, ", ")
}
