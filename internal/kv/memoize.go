package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Template is a key template like "bot_user_{id}"; Interpolate substitutes
// each {name} placeholder with args[name].
type Template string

// Interpolate renders the template with the given named arguments.
func (t Template) Interpolate(args map[string]string) string {
	s := string(t)
	for name, val := range args {
		s = strings.ReplaceAll(s, "{"+name+"}", val)
	}
	return s
}

// Memoize returns the JSON-decoded value cached at tpl.Interpolate(args),
// producing and caching it via produce if absent. ttl <= 0 caches forever.
func Memoize[T any](ctx context.Context, c *Client, tpl Template, args map[string]string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	key := tpl.Interpolate(args)
	if raw, ok, err := c.Get(ctx, key); err != nil {
		return zero, err
	} else if ok {
		var cached T
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		// fall through and recompute on unmarshal failure (stale/incompatible cache entry)
	}
	v, err := produce(ctx)
	if err != nil {
		return zero, err
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("memoize encode %s: %w", key, err)
	}
	if err := c.Set(ctx, key, string(encoded), ttl); err != nil {
		return zero, err
	}
	return v, nil
}

// Invalidate deletes every key produced by interpolating each template with
// args, then runs produce. Use this to wrap a write path so stale cache
// entries never outlive the write that invalidated them.
func Invalidate[T any](ctx context.Context, c *Client, tpls []Template, args map[string]string, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for _, tpl := range tpls {
		if err := c.Delete(ctx, tpl.Interpolate(args)); err != nil {
			return zero, err
		}
	}
	return produce(ctx)
}

// Key templates used by the core. Stable; changing these invalidates all
// live caches on next deploy.
const (
	TplBotUser         Template = "bot_user_{id}"
	TplActiveUsers     Template = "active_users"
	TplBotUserExists   Template = "bot_user_exists_{id}"
	TplEmailService    Template = "email_service_{id}"
	TplEmailServices   Template = "email_services"
	TplEmailBox        Template = "email_box_{id}"
	TplUserEmailBoxes  Template = "bot_user_{id}_email_boxes"
	TplBoxFilters      Template = "box_filters_{id}"
	TplImapStatus      Template = "imap_client_status_{user}_{box}"
	TplFailedEmailsFmt          = "telegram_id_%d_failed_emails"
	TplFailedPhotosFmt          = "telegram_id_%d_failed_photos"
)

// FailedEmailsKey returns the retry-list key for a user's failed text sends.
func FailedEmailsKey(telegramID int64) string { return fmt.Sprintf(TplFailedEmailsFmt, telegramID) }

// FailedPhotosKey returns the retry-list key for a user's failed photo sends.
func FailedPhotosKey(telegramID int64) string { return fmt.Sprintf(TplFailedPhotosFmt, telegramID) }
