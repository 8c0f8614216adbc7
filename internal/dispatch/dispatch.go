// Package dispatch sends a rendered message to the user's chat, and on any
// non-OK response falls back to the retry queue; the error it then returns
// reports that the message was queued for retry.
package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mailwatch/internal/kv"
)

// retryTTL is the TTL (re)set on a retry list whenever an entry is appended.
const retryTTL = 24 * time.Hour

// FailedPhoto is the self-contained re-send payload for a failed photo
// dispatch: chat id plus base64-encoded image bytes.
type FailedPhoto struct {
	ChatID      int64  `json:"chat_id"`
	ImageBase64 string `json:"image_base64"`
	Caption     string `json:"caption,omitempty"`
}

// FailedEmail is the self-contained re-send payload for a failed text
// dispatch: chat id plus the message text.
type FailedEmail struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Dispatcher sends rendered mail to a chat and enqueues failures for retry.
type Dispatcher struct {
	bot *tgbotapi.BotAPI
	kvc *kv.Client
}

// New wraps a Telegram bot API client bound to the configured token.
func New(token string, kvc *kv.Client) (*Dispatcher, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("new bot api: %w", err)
	}
	return &Dispatcher{bot: bot, kvc: kvc}, nil
}

// SendPhoto sends png as a photo to chatID. On failure it base64-encodes
// the image, appends it to the user's failed-photos retry list and
// refreshes that list's TTL to 24h, then returns an error wrapping the send
// failure (or the enqueue failure, if queueing itself failed).
func (d *Dispatcher) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "mail.png", Bytes: png})
	photo.Caption = caption
	if _, err := d.bot.Send(photo); err != nil {
		return d.enqueueFailedPhoto(ctx, chatID, png, caption, err)
	}
	return nil
}

// SendText sends text to chatID. On failure it appends a JSON payload to
// the user's failed-emails retry list and refreshes its TTL to 24h.
func (d *Dispatcher) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := d.bot.Send(msg); err != nil {
		return d.enqueueFailedText(ctx, chatID, text, err)
	}
	return nil
}

func (d *Dispatcher) enqueueFailedPhoto(ctx context.Context, chatID int64, png []byte, caption string, sendErr error) error {
	payload := FailedPhoto{
		ChatID:      chatID,
		ImageBase64: base64.StdEncoding.EncodeToString(png),
		Caption:     caption,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode failed photo payload: %w", err)
	}
	key := kv.FailedPhotosKey(chatID)
	if err := d.kvc.LPush(ctx, key, string(encoded)); err != nil {
		return fmt.Errorf("enqueue failed photo (send err %v): %w", sendErr, err)
	}
	if err := d.kvc.Touch(ctx, key, retryTTL); err != nil {
		return fmt.Errorf("touch failed photo ttl: %w", err)
	}
	return fmt.Errorf("dispatch photo failed, queued for retry: %w", sendErr)
}

func (d *Dispatcher) enqueueFailedText(ctx context.Context, chatID int64, text string, sendErr error) error {
	payload := FailedEmail{ChatID: chatID, Text: text}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode failed email payload: %w", err)
	}
	key := kv.FailedEmailsKey(chatID)
	if err := d.kvc.LPush(ctx, key, string(encoded)); err != nil {
		return fmt.Errorf("enqueue failed email (send err %v): %w", sendErr, err)
	}
	if err := d.kvc.Touch(ctx, key, retryTTL); err != nil {
		return fmt.Errorf("touch failed email ttl: %w", err)
	}
	return fmt.Errorf("dispatch text failed, queued for retry: %w", sendErr)
}

// SendPhotoDirect sends png to chatID without any retry-queue fallback,
// used by the retry queue worker which owns its own requeue-on-failure
// policy (best-effort head-of-line advance, see package retryqueue).
func (d *Dispatcher) SendPhotoDirect(chatID int64, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "mail.png", Bytes: png})
	photo.Caption = caption
	_, err := d.bot.Send(photo)
	return err
}

// SendTextDirect sends text to chatID without any retry-queue fallback.
func (d *Dispatcher) SendTextDirect(chatID int64, text string) error {
	_, err := d.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}
