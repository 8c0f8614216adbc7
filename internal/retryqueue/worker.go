// Package retryqueue periodically drains the per-user failed-emails and
// failed-photos lists. Retries are attempted in list order but may lose
// strict order under failure; this provides at-least-once delivery, not
// exactly-once or strict FIFO.
package retryqueue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"time"

	"mailwatch/internal/dispatch"
	"mailwatch/internal/kv"
)

const (
	failedEmailsPattern = "telegram_id_*_failed_emails"
	failedPhotosPattern = "telegram_id_*_failed_photos"
	tickInterval         = 1 * time.Minute
)

// Worker periodically drains both retry-list families.
type Worker struct {
	kvc    *kv.Client
	disp   *dispatch.Dispatcher
	log    *log.Logger
}

// New builds a retry worker over the shared KV store and dispatcher.
func New(kvc *kv.Client, disp *dispatch.Dispatcher) *Worker {
	return &Worker{kvc: kvc, disp: disp, log: log.New(log.Writer(), "retryqueue ", log.LstdFlags)}
}

// Run ticks every minute until ctx is canceled, draining both list
// families on each tick. It never returns an error; failures are logged
// and left for the next tick.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainOnce(ctx)
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) {
	w.drainFamily(ctx, failedEmailsPattern, w.retryOneEmail)
	w.drainFamily(ctx, failedPhotosPattern, w.retryOnePhoto)
}

func (w *Worker) drainFamily(ctx context.Context, pattern string, retry func(ctx context.Context, item string) error) {
	keys, err := w.kvc.Scan(ctx, pattern)
	if err != nil {
		w.log.Printf("scan %s: %v", pattern, err)
		return
	}
	for _, key := range keys {
		items, err := w.kvc.LRange(ctx, key)
		if err != nil {
			w.log.Printf("lrange %s: %v", key, err)
			continue
		}
		for _, item := range items {
			if err := retry(ctx, item); err != nil {
				// Leave the failed head in place and stop on this list
				// until the next tick (head-of-line blocking).
				w.log.Printf("retry %s: %v", key, err)
				break
			}
			// Best-effort advance: lpop one element from the head, which
			// is the item just retried since new entries join at the tail.
			if _, _, err := w.kvc.LPop(ctx, key); err != nil {
				w.log.Printf("lpop %s: %v", key, err)
			}
		}
	}
}

func (w *Worker) retryOneEmail(_ context.Context, item string) error {
	var payload dispatch.FailedEmail
	if err := json.Unmarshal([]byte(item), &payload); err != nil {
		return err
	}
	return w.disp.SendTextDirect(payload.ChatID, payload.Text)
}

func (w *Worker) retryOnePhoto(_ context.Context, item string) error {
	var payload dispatch.FailedPhoto
	if err := json.Unmarshal([]byte(item), &payload); err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(payload.ImageBase64)
	if err != nil {
		return err
	}
	return w.disp.SendPhotoDirect(payload.ChatID, raw, payload.Caption)
}
