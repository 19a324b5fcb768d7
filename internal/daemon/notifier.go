package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/fenilsonani/dlsort/internal/config"
	"github.com/fenilsonani/dlsort/internal/session"
)

// Notifier posts daemon events to a webhook
type Notifier struct {
	config *config.NotificationConfig
	logger *slog.Logger
	client *http.Client
}

// NewNotifier creates a new notifier
func NewNotifier(cfg *config.NotificationConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NotificationMessage represents a notification
type NotificationMessage struct {
	Title     string
	Message   string
	Timestamp time.Time
	Type      string // "startup", "shutdown", "sort_success", "sort_failure"
	Data      map[string]any
}

// SendStartupNotification sends a startup notification
func (n *Notifier) SendStartupNotification() {
	if !n.config.Enabled {
		return
	}

	n.sendAll(&NotificationMessage{
		Title:     "dlsort daemon started",
		Message:   "The downloads sorter daemon has started",
		Timestamp: time.Now(),
		Type:      "startup",
	})
}

// SendShutdownNotification sends a shutdown notification
func (n *Notifier) SendShutdownNotification() {
	if !n.config.Enabled {
		return
	}

	n.sendAll(&NotificationMessage{
		Title:     "dlsort daemon stopped",
		Message:   "The downloads sorter daemon has stopped",
		Timestamp: time.Now(),
		Type:      "shutdown",
	})
}

// SendSortNotification reports a finished sort. Sorts with per-file errors
// count as failures.
func (n *Notifier) SendSortNotification(job *SortJob, report *session.Report) {
	if !n.config.Enabled {
		return
	}

	hasErrors := len(report.Errors) > 0
	if hasErrors && !n.config.OnFailure {
		return
	}
	if !hasErrors && !n.config.OnSuccess {
		return
	}

	var size int64
	for _, o := range report.Moved {
		size += o.Result.Size
	}

	msg := &NotificationMessage{
		Timestamp: time.Now(),
		Type:      "sort_success",
		Data: map[string]any{
			"job_name":    job.Name,
			"session_id":  report.ID.String(),
			"files_moved": report.Completed,
			"bytes_moved": size,
			"errors":      len(report.Errors),
			"duration":    report.Duration().String(),
			"dry_run":     report.DryRun,
		},
	}

	if hasErrors {
		msg.Type = "sort_failure"
		msg.Title = fmt.Sprintf("Sort finished with errors: %s", job.Name)
		msg.Message = fmt.Sprintf("Moved %d of %d files (%s), %d could not be moved",
			report.Completed, report.Total, humanize.IBytes(uint64(size)), len(report.Errors))
	} else {
		msg.Title = fmt.Sprintf("Sort completed: %s", job.Name)
		msg.Message = fmt.Sprintf("Moved %d files (%s) in %s",
			report.Completed, humanize.IBytes(uint64(size)), report.Duration().Round(time.Millisecond))
	}

	n.sendAll(msg)
}

// SendFailureNotification reports a sort that could not run at all
func (n *Notifier) SendFailureNotification(job *SortJob, err error) {
	if !n.config.Enabled || !n.config.OnFailure {
		return
	}

	n.sendAll(&NotificationMessage{
		Title:     fmt.Sprintf("Sort failed: %s", job.Name),
		Message:   err.Error(),
		Timestamp: time.Now(),
		Type:      "sort_failure",
		Data:      map[string]any{"job_name": job.Name},
	})
}

// sendAll sends notification through all configured channels
func (n *Notifier) sendAll(msg *NotificationMessage) {
	if n.config.Webhook.URL == "" {
		return
	}

	if err := n.sendWebhook(msg); err != nil {
		n.logger.Error("failed to send webhook notification", slog.Any("error", err))
	} else {
		n.logger.Info("webhook notification sent", slog.String("title", msg.Title))
	}
}

// sendWebhook sends a webhook notification
func (n *Notifier) sendWebhook(msg *NotificationMessage) error {
	cfg := &n.config.Webhook

	payload := map[string]any{
		"title":     msg.Title,
		"message":   msg.Message,
		"timestamp": msg.Timestamp.Format(time.RFC3339),
		"type":      msg.Type,
		"data":      msg.Data,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequest(method, cfg.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
