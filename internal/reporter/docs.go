package reporter

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/dlsort/internal/journal"
	"github.com/fenilsonani/dlsort/internal/session"
)

type reportDoc struct {
	SessionID  string     `json:"session_id" yaml:"session_id"`
	Source     string     `json:"source" yaml:"source"`
	State      string     `json:"state" yaml:"state"`
	DryRun     bool       `json:"dry_run" yaml:"dry_run"`
	StartedAt  string     `json:"started_at" yaml:"started_at"`
	FinishedAt string     `json:"finished_at" yaml:"finished_at"`
	Duration   string     `json:"duration" yaml:"duration"`
	Total      int        `json:"total_files" yaml:"total_files"`
	Moved      int        `json:"moved" yaml:"moved"`
	Failed     int        `json:"failed" yaml:"failed"`
	Aborted    bool       `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Canceled   bool       `json:"canceled,omitempty" yaml:"canceled,omitempty"`
	Skipped    []string   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Files      []fileDoc  `json:"files" yaml:"files"`
	Errors     []errorDoc `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type fileDoc struct {
	Name          string `json:"name" yaml:"name"`
	Category      string `json:"category" yaml:"category"`
	Destination   string `json:"destination" yaml:"destination"`
	Method        string `json:"method" yaml:"method"`
	Size          int64  `json:"size" yaml:"size"`
	SizeFormatted string `json:"size_formatted" yaml:"size_formatted"`
}

type errorDoc struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Reason   string `json:"reason" yaml:"reason"`
	Error    string `json:"error" yaml:"error"`
}

type categoryDoc struct {
	Name        string   `json:"name" yaml:"name"`
	Extensions  []string `json:"extensions" yaml:"extensions"`
	Destination string   `json:"destination" yaml:"destination"`
	Custom      bool     `json:"custom" yaml:"custom"`
}

type sessionDoc struct {
	ID         string `json:"id" yaml:"id"`
	Source     string `json:"source" yaml:"source"`
	State      string `json:"state" yaml:"state"`
	DryRun     bool   `json:"dry_run" yaml:"dry_run"`
	Total      int    `json:"total_files" yaml:"total_files"`
	Moved      int    `json:"moved" yaml:"moved"`
	Failed     int    `json:"failed" yaml:"failed"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Aborted    bool   `json:"aborted" yaml:"aborted"`
	Canceled   bool   `json:"canceled" yaml:"canceled"`
	StartedAt  string `json:"started_at" yaml:"started_at"`
	FinishedAt string `json:"finished_at" yaml:"finished_at"`
}

type moveDoc struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
	Method      string `json:"method,omitempty" yaml:"method,omitempty"`
	Size        int64  `json:"size" yaml:"size"`
	Reason      string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type sessionMovesDoc struct {
	Session sessionDoc `json:"session" yaml:"session"`
	Files   []moveDoc  `json:"files" yaml:"files"`
}

func newReportDoc(report *session.Report) reportDoc {
	doc := reportDoc{
		SessionID:  report.ID.String(),
		Source:     report.Source,
		State:      report.State.String(),
		DryRun:     report.DryRun,
		StartedAt:  report.StartedAt.Format(time.RFC3339),
		FinishedAt: report.FinishedAt.Format(time.RFC3339),
		Duration:   report.Duration().String(),
		Total:      report.Total,
		Moved:      report.Completed,
		Failed:     len(report.Errors),
		Aborted:    report.Aborted,
		Canceled:   report.Canceled,
		Skipped:    report.Skipped,
		Files:      make([]fileDoc, 0, len(report.Moved)),
	}
	for _, o := range report.Moved {
		doc.Files = append(doc.Files, fileDoc{
			Name:          o.Name,
			Category:      o.Category,
			Destination:   o.Result.Destination,
			Method:        string(o.Result.Method),
			Size:          o.Result.Size,
			SizeFormatted: humanize.IBytes(uint64(o.Result.Size)),
		})
	}
	for _, fe := range report.Errors {
		msg := fe.Err.Error()
		if fe.Err.Original != nil {
			msg = fe.Err.Original.Error()
		}
		doc.Errors = append(doc.Errors, errorDoc{
			Name:     fe.Name,
			Category: fe.Category,
			Reason:   fe.Err.Reason.String(),
			Error:    msg,
		})
	}
	return doc
}

func sessionDocs(sessions []journal.SessionRecord) []sessionDoc {
	docs := make([]sessionDoc, 0, len(sessions))
	for _, s := range sessions {
		docs = append(docs, sessionDoc{
			ID:         s.ID,
			Source:     s.Source,
			State:      s.State,
			DryRun:     s.DryRun,
			Total:      s.Total,
			Moved:      s.Completed,
			Failed:     s.Failed,
			Skipped:    s.Skipped,
			Aborted:    s.Aborted,
			Canceled:   s.Canceled,
			StartedAt:  s.StartedAt.Format(time.RFC3339),
			FinishedAt: s.FinishedAt.Format(time.RFC3339),
		})
	}
	return docs
}

func moveDocs(moves []journal.MoveRecord) []moveDoc {
	docs := make([]moveDoc, 0, len(moves))
	for _, m := range moves {
		docs = append(docs, moveDoc(m))
	}
	return docs
}
