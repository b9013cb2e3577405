package report

import (
	"bimvault/internal/logger"
	"bimvault/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"
)

const (
	notionBaseURL = "https://api.notion.com"
	notionVersion = "2022-06-28"
)

// Sink appends one page per run to a Notion database.
type Sink struct {
	client     *http.Client
	baseURL    string
	secret     string
	databaseID string
	daemonID   string
	version    string
	clk        retry.Clock
}

func NewSink(secret, databaseID, daemonID, version string) *Sink {
	return &Sink{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    notionBaseURL,
		secret:     secret,
		databaseID: databaseID,
		daemonID:   daemonID,
		version:    version,
		clk:        clock.WallClock,
	}
}

// Submit appends the report to the database. Rate limits and server faults
// are retried with a doubling delay; the run itself already happened, so
// callers treat any returned error as a logging matter, not a failure.
func (s *Sink) Submit(ctx context.Context, report *model.RunReport) error {
	body, err := json.Marshal(s.page(report))
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	err = retry.Call(retry.CallArgs{
		Func: func() error {
			return s.post(ctx, body)
		},
		IsFatalError: func(err error) bool {
			var te *transientError
			transient := errors.As(err, &te)
			return !transient
		},
		NotifyFunc: func(lastError error, attempt int) {
			logger.Log.Warn("notion rejected the report, retrying", zap.Int("attempt", attempt), zap.Error(lastError))
		},
		Attempts:    3,
		Delay:       time.Second,
		BackoffFunc: retry.DoubleDelay,
		Clock:       s.clk,
		Stop:        ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		return fmt.Errorf("failed to submit report: %w", err)
	}

	logger.Log.Info("run report submitted", zap.String("run", report.RunID), zap.String("status", report.Status()))

	return nil
}

// transientError marks responses worth another attempt.
type transientError struct {
	status int
}

func (e *transientError) Error() string {
	return fmt.Sprintf("notion returned status %d", e.status)
}

func (s *Sink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/pages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.secret)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach notion: %w", err)
	}
	defer func(b io.ReadCloser) {
		_ = b.Close()
	}(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return &transientError{status: resp.StatusCode}
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	return fmt.Errorf("notion returned status %d: %s", resp.StatusCode, string(msg))
}

// page builds the page-create document. Property names and types follow
// the report database schema, so a mismatch shows up as a 400 from Notion
// rather than a silent drop.
func (s *Sink) page(report *model.RunReport) map[string]any {
	properties := map[string]any{
		"Name": map[string]any{
			"title": []map[string]any{text("Backup", false)},
		},
		"Version": map[string]any{
			"rich_text": []map[string]any{text("v"+s.version, true)},
		},
		"Status": map[string]any{
			"status": map[string]any{"name": report.Status()},
		},
		"Errors":  map[string]any{"number": report.Errors},
		"Items":   map[string]any{"number": report.Scanned},
		"Runtime": map[string]any{"number": math.Round(report.Runtime().Seconds())},
	}

	if s.daemonID != "" {
		properties["Daemon"] = map[string]any{
			"relation": []map[string]any{{"id": s.daemonID}},
		}
	}

	return map[string]any{
		"parent":     map[string]any{"database_id": s.databaseID},
		"properties": properties,
	}
}

func text(content string, bold bool) map[string]any {
	t := map[string]any{
		"type": "text",
		"text": map[string]any{"content": content},
	}
	if bold {
		t["annotations"] = map[string]any{"bold": true}
	}

	return t
}
