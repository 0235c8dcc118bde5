package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rankwise/internal/model"
)

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Type      string               `json:"type"`
	Summary   *model.RunSummary    `json:"summary,omitempty"`
	Report    *model.MonthlyReport `json:"report,omitempty"`
	Alerts    []Alert              `json:"alerts,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

const (
	PayloadRunSummary    = "run_summary"
	PayloadMonthlyReport = "monthly_report"
)

// WebhookNotifier posts summaries as JSON to a URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhookNotifier creates a WebhookNotifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, s *model.RunSummary) error {
	alerts := Evaluate(s)
	if err := w.send(ctx, Payload{Type: PayloadRunSummary, Summary: s, Alerts: alerts, Timestamp: w.now()}); err != nil {
		return err
	}
	zap.L().Info("notify: run summary sent",
		zap.String("run_id", s.RunID),
		zap.Int("alerts", len(alerts)),
	)
	return nil
}

// NotifyMonthly implements Notifier.
func (w *WebhookNotifier) NotifyMonthly(ctx context.Context, r *model.MonthlyReport) error {
	if err := w.send(ctx, Payload{Type: PayloadMonthlyReport, Report: r, Timestamp: w.now()}); err != nil {
		return err
	}
	zap.L().Info("notify: monthly report sent", zap.String("month", r.Month))
	return nil
}

func (w *WebhookNotifier) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return eris.Wrap(err, "notify: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
