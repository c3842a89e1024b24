package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/riskwatch/riskwatch/server/internal/metrics"
)

const sinkName = "webhook"

// deliver sends m to all targets. Errors are logged but do not affect the
// caller.
func (n *Notifier) deliver(ctx context.Context, m message) {
	for _, t := range n.targets {
		var err error
		switch t.Type {
		case "slack":
			err = n.sendSlack(ctx, t.URL, m)
		case "teams":
			err = n.sendTeams(ctx, t.URL, m)
		case "http":
			err = n.sendHTTP(ctx, t.URL, m)
		}

		if err != nil {
			metrics.PublishTotal.WithLabelValues(sinkName, "error").Inc()
			slog.Error("alerts: webhook delivery failed",
				"type", t.Type,
				"topic", m.topic,
				"err", err,
			)
			continue
		}
		metrics.PublishTotal.WithLabelValues(sinkName, "ok").Inc()
		slog.Debug("alerts: webhook delivered", "type", t.Type, "topic", m.topic)
	}
}

func (n *Notifier) sendSlack(ctx context.Context, url string, m message) error {
	body, err := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s*\n%s", m.title, m.text),
	})
	if err != nil {
		return err
	}
	return n.post(ctx, url, body)
}

func (n *Notifier) sendTeams(ctx context.Context, url string, m message) error {
	body, err := json.Marshal(map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": levelColor(m.level),
		"summary":    m.title,
		"title":      m.title,
		"text":       m.text,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, url, body)
}

func (n *Notifier) sendHTTP(ctx context.Context, url string, m message) error {
	body, err := json.Marshal(map[string]interface{}{
		"event": m.topic,
		"data":  m.payload,
	})
	if err != nil {
		return err
	}
	return n.post(ctx, url, body)
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
