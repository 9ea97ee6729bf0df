package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rentalyzer/internal/adapters/observability"
	"rentalyzer/internal/domain"
)

// LogSink only logs. Used when no webhook is configured.
type LogSink struct{}

func (LogSink) Alert(ctx context.Context, a domain.Alert) {
	logAlert(a)
	observability.ObserveAlert(string(a.Kind), true)
}

// Webhook posts alerts to a Slack-compatible incoming webhook in the background.
// The caller is never blocked and never sees a delivery error.
type Webhook struct {
	url     string
	hc      *http.Client
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{url: url, hc: &http.Client{Timeout: timeout}, timeout: timeout}
}

type message struct {
	Text    string `json:"text"`
	Kind    string `json:"kind"`
	QueryID string `json:"query_id,omitempty"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
	At      string `json:"at"`
}

func (w *Webhook) Alert(ctx context.Context, a domain.Alert) {
	logAlert(a)
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// outlive the request that raised the alert, but not forever
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()

		if err := w.deliver(dctx, a); err != nil {
			observability.ObserveAlert(string(a.Kind), false)
			log.Warn().Err(err).Str("kind", string(a.Kind)).Msg("alert delivery failed")
			return
		}
		observability.ObserveAlert(string(a.Kind), true)
	}()
}

// Wait blocks until in-flight deliveries finish (shutdown, tests).
func (w *Webhook) Wait() { w.wg.Wait() }

func (w *Webhook) deliver(ctx context.Context, a domain.Alert) error {
	m := message{
		Text:    fmt.Sprintf("[rentalyzer] %s: %s", a.Kind, a.Message),
		Kind:    string(a.Kind),
		QueryID: a.QueryID,
		Address: a.Address,
		Stack:   a.Stack,
		At:      a.At.Format(time.RFC3339),
	}
	if a.Err != nil {
		m.Error = a.Err.Error()
	}
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func logAlert(a domain.Alert) {
	var ev *zerolog.Event
	switch a.Kind {
	case domain.AlertCachePersistFailed, domain.AlertCacheCheckFailed:
		ev = log.Warn()
	default:
		ev = log.Error()
	}
	ev = ev.Str("alert", string(a.Kind)).Str("address", a.Address).Err(a.Err)
	if a.QueryID != "" {
		ev = ev.Str("query_id", a.QueryID)
	}
	if a.Stack != "" {
		ev = ev.Str("stack", a.Stack)
	}
	ev.Msg(a.Message)
}
