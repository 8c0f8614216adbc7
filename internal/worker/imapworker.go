// Package worker implements the per-mailbox state machine that drives one
// IDLE session, gates new messages through the sender whitelist, and hands
// accepted mail to the decode/render/dispatch pipeline.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	imap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"mailwatch/internal/decoder"
	"mailwatch/internal/dispatch"
	"mailwatch/internal/domain"
	"mailwatch/internal/imapconn"
	"mailwatch/internal/render"
	"mailwatch/internal/status"
)

const (
	idleTimeout = 60 * time.Second
	doneTimeout = 20 * time.Second
	pausedSleep = 5 * time.Second
	retryPause  = 30 * time.Second
	maxAttempts = 5
)

var headerFields = []string{
	"Content-Type", "From", "To", "Cc", "Bcc", "Date", "Subject",
	"Message-ID", "In-Reply-To", "References",
}

// Worker drives one mailbox's IMAP session for the lifetime of the process
// (or until its status slot reaches Stopped).
type Worker struct {
	mgr        *imapconn.Manager
	reg        *status.Registry
	whitelist  map[string]struct{}
	telegramID int64
	boxID      int64
	disp       *dispatch.Dispatcher
	log        *log.Logger

	maxUID uint32
}

// New binds a Worker to one mailbox. whitelist may be nil, meaning accept
// all senders.
func New(mgr *imapconn.Manager, reg *status.Registry, whitelist map[string]struct{}, telegramID, boxID int64, disp *dispatch.Dispatcher) *Worker {
	return &Worker{
		mgr:        mgr,
		reg:        reg,
		whitelist:  whitelist,
		telegramID: telegramID,
		boxID:      boxID,
		disp:       disp,
		log:        log.New(log.Writer(), fmt.Sprintf("worker[box=%d] ", boxID), log.LstdFlags),
	}
}

// Run executes the worker's main loop: set initial status, open the
// connection, then repeatedly read the status slot and act on it until
// Stopped (terminal) or ctx is canceled.
func (w *Worker) Run(ctx context.Context, initial status.Status) error {
	if err := w.reg.Set(ctx, initial); err != nil {
		return fmt.Errorf("write initial status: %w", err)
	}
	if err := w.mgr.Open(); err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer w.mgr.Close()

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		st, ok, err := w.reg.Get(ctx)
		if err != nil {
			w.log.Printf("read status: %v", err)
			if !sleep(ctx, retryPause) {
				return ctx.Err()
			}
			continue
		}
		if !ok {
			st = status.Stopped
		}

		switch st {
		case status.Paused:
			if !sleep(ctx, pausedSleep) {
				return ctx.Err()
			}
		case status.Stopped:
			_ = w.reg.Remove(ctx)
			return nil
		case status.Active:
			if err := w.idleCycle(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failures++
				w.mgr.Reset()
				w.log.Printf("idle cycle failed (attempt %d/%d): %v", failures, maxAttempts, err)
				if failures >= maxAttempts {
					w.log.Printf("exhausted retry attempts, terminating worker")
					return err
				}
				if !sleep(ctx, retryPause) {
					return ctx.Err()
				}
				if err := w.mgr.Open(); err != nil {
					w.log.Printf("reopen after reset: %v", err)
				}
				continue
			}
			failures = 0
		default:
			w.log.Printf("unknown status %q, treating as stopped", st)
			_ = w.reg.Remove(ctx)
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// idleCycle issues IDLE with a 60s server timeout, categorizes pushes, sends
// DONE within 20s, and on an EXISTS resolves the sequence number to a UID
// before invoking message processing.
func (w *Worker) idleCycle(ctx context.Context) error {
	if !w.mgr.Connected() {
		if err := w.mgr.Open(); err != nil {
			return err
		}
	}
	raw := w.mgr.Raw()
	if raw == nil {
		return domain.ErrNotConnected
	}

	updates := make(chan client.Update, 10)
	raw.Updates = updates

	idleClient, err := w.mgr.NewIdleClient()
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	w.mgr.MarkIdlePending(true)
	go func() { done <- idleClient.IdleWithFallback(stop, idleTimeout) }()

	var newSeq uint32
	timer := time.NewTimer(idleTimeout)
	defer timer.Stop()

waitLoop:
	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-done
			w.mgr.MarkIdlePending(false)
			return ctx.Err()
		case upd, chOK := <-updates:
			if !chOK {
				break waitLoop
			}
			switch u := upd.(type) {
			case *client.MailboxUpdate:
				if u.Mailbox != nil && u.Mailbox.Messages > 0 {
					newSeq = u.Mailbox.Messages
				}
			case *client.MessageUpdate:
				if u.Message != nil {
					// FETCH ... \Seen or similar metadata push; no body
					// change to act on here, only logged.
					w.log.Printf("message update seq=%d", u.Message.SeqNum)
				}
			case *client.ExpungeUpdate:
				w.log.Printf("expunge seq=%d", u.SeqNum)
			default:
				w.log.Printf("unhandled update %T", upd)
			}
		case <-timer.C:
			break waitLoop
		}
	}

	close(stop)
	doneCtx, cancel := context.WithTimeout(ctx, doneTimeout)
	defer cancel()
	select {
	case err := <-done:
		w.mgr.MarkIdlePending(false)
		if err != nil {
			return fmt.Errorf("idle done: %w", domain.ErrServerTimeout)
		}
	case <-doneCtx.Done():
		return domain.ErrServerTimeout
	}

	if newSeq == 0 {
		return nil
	}
	uid, err := w.resolveUID(ctx, newSeq)
	if err != nil {
		return err
	}
	if uid <= w.maxUID {
		return nil
	}
	return w.processMessage(ctx, uid)
}

// resolveUID issues FETCH <seq> (UID) to translate a pushed sequence
// number into a stable UID.
func (w *Worker) resolveUID(ctx context.Context, seq uint32) (uint32, error) {
	raw := w.mgr.Raw()
	if raw == nil {
		return 0, domain.ErrNotConnected
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)
	ch := make(chan *imap.Message, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- raw.Fetch(seqset, []imap.FetchItem{imap.FetchUid}, ch) }()

	var uid uint32
	for msg := range ch {
		uid = msg.Uid
	}
	select {
	case err := <-errCh:
		if err != nil {
			return 0, fmt.Errorf("resolve uid: %w", domain.ErrServerTimeout)
		}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return uid, nil
}

// processMessage fetches headers, gates on the whitelist, fetches the full
// body, decodes, renders and dispatches.
func (w *Worker) processMessage(ctx context.Context, uid uint32) error {
	raw := w.mgr.Raw()
	if raw == nil {
		return domain.ErrNotConnected
	}

	headerSection := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier, Fields: headerFields},
		Peek:         true,
	}
	headerItems := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, headerSection.FetchItem()}
	uidset := new(imap.SeqSet)
	uidset.AddNum(uid)

	headerMsg, err := w.fetchOne(raw, uidset, headerItems, true)
	if err != nil {
		return err
	}
	if headerMsg == nil {
		return nil
	}
	headerBody := headerMsg.GetBody(headerSection)
	if headerBody == nil {
		return nil
	}
	rawHeaders, err := readAll(headerBody)
	if err != nil {
		return fmt.Errorf("read headers: %w", err)
	}
	headers, err := parseHeaderFields(rawHeaders)
	if err != nil {
		return fmt.Errorf("parse headers: %w", err)
	}

	sender := decoder.ExtractSender(headers["From"])
	if w.whitelist != nil {
		if _, allowed := w.whitelist[sender]; !allowed {
			w.maxUID = uid
			return nil
		}
	}

	fullSection := &imap.BodySectionName{Peek: true}
	fullItems := []imap.FetchItem{fullSection.FetchItem()}
	bodyMsg, err := w.fetchOne(raw, uidset, fullItems, true)
	if err != nil {
		return err
	}
	if bodyMsg == nil {
		return nil
	}
	fullBodyReader := bodyMsg.GetBody(fullSection)
	if fullBodyReader == nil {
		return nil
	}
	fullBody, err := readAll(fullBodyReader)
	if err != nil {
		return fmt.Errorf("read full body: %w", err)
	}

	decoded, err := decoder.Decode(decoder.RawMessage{
		Subject: headers["Subject"],
		From:    headers["From"],
		To:      headers["To"],
		Date:    headers["Date"],
		Body:    fullBody,
	})
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	htmlDoc, err := decoder.RenderHTML(decoded)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	png, err := render.RasterizeHTML(htmlDoc)
	if err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	caption := decoded.Subject
	if err := w.disp.SendPhoto(ctx, w.telegramID, png, caption); err != nil {
		// Dispatch failures are queued for retry inside Dispatcher and
		// must never abort the worker.
		w.log.Printf("dispatch queued for retry: %v", err)
	}

	w.maxUID = uid
	return nil
}

// fetchOne runs a UID FETCH and returns the single resulting message, or nil
// if the server returned none (e.g. the message was expunged meanwhile).
func (w *Worker) fetchOne(raw *client.Client, uidset *imap.SeqSet, items []imap.FetchItem, byUID bool) (*imap.Message, error) {
	ch := make(chan *imap.Message, 1)
	errCh := make(chan error, 1)
	go func() {
		if byUID {
			errCh <- raw.UidFetch(uidset, items, ch)
		} else {
			errCh <- raw.Fetch(uidset, items, ch)
		}
	}()
	var msg *imap.Message
	for m := range ch {
		msg = m
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("fetch: %w", domain.ErrServerTimeout)
	}
	return msg, nil
}
