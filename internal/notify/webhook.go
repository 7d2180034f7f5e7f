package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier POSTs each event to a fixed set of callback URLs so
// wallboards and signage outside this process can refresh. Delivery is
// best-effort: failures are logged and never retried, and posting happens
// off the request path.
type WebhookNotifier struct {
	urls   []string
	client *http.Client
}

// NewWebhookNotifier builds a notifier for the given callback URLs.
func NewWebhookNotifier(urls []string) *WebhookNotifier {
	return &WebhookNotifier{
		urls:   urls,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish fires one POST per URL in the background. The request context is
// not reused: it ends when the HTTP handler returns, before slow hooks
// finish.
func (n *WebhookNotifier) Publish(ctx context.Context, event string) {
	if len(n.urls) == 0 {
		return
	}
	body, err := json.Marshal(map[string]any{
		"event":      event,
		"occurredAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("marshal webhook payload: %v", err)
		return
	}
	for _, url := range n.urls {
		go n.post(url, body)
	}
}

func (n *WebhookNotifier) post(url string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("build webhook request for %s: %v", url, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("webhook %s failed: %v", url, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("webhook %s failed: %v", url, fmt.Errorf("unexpected status %s", resp.Status))
	}
}
