// Package supervisor is the process-wide coordinator that launches one
// worker per mailbox on startup and applies create/pause/resume/delete
// transitions from the control API, tracking each running worker in a
// map of handles guarded by a mutex with a context.CancelFunc-driven stop.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"mailwatch/internal/cryptutil"
	"mailwatch/internal/dispatch"
	"mailwatch/internal/domain"
	"mailwatch/internal/imapconn"
	"mailwatch/internal/kv"
	"mailwatch/internal/status"
	"mailwatch/internal/store"
	"mailwatch/internal/worker"
)

// launchStagger smooths reconnect storms on startup.
const launchStagger = 5 * time.Second

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor launches and steers one worker goroutine per active mailbox.
type Supervisor struct {
	store  *store.Store
	kvc    *kv.Client
	cipher *cryptutil.Cipher
	disp   *dispatch.Dispatcher
	log    *log.Logger

	mu      sync.Mutex
	workers map[int64]*handle // keyed by box id
	rootCtx context.Context
}

// New builds a Supervisor bound to the shared store, KV client, password
// cipher and chat dispatcher.
func New(st *store.Store, kvc *kv.Client, cipher *cryptutil.Cipher, disp *dispatch.Dispatcher) *Supervisor {
	return &Supervisor{
		store:   st,
		kvc:     kvc,
		cipher:  cipher,
		disp:    disp,
		log:     log.New(log.Writer(), "supervisor ", log.LstdFlags),
		workers: make(map[int64]*handle),
	}
}

// StartupSweep reads all active users and their mailboxes, active or paused
// (BoxesForUserAny, since a paused mailbox still needs a worker observing
// `paused`), and launches one worker per mailbox staggered by launchStagger.
func (s *Supervisor) StartupSweep(ctx context.Context) error {
	s.rootCtx = ctx
	users, err := s.store.ActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("load active users: %w", err)
	}
	for _, u := range users {
		boxes, err := s.store.BoxesForUserAny(ctx, u.TelegramID)
		if err != nil {
			s.log.Printf("load boxes for user %d: %v", u.TelegramID, err)
			continue
		}
		for _, box := range boxes {
			initial := status.Paused
			if box.IsActive {
				initial = status.Active
			}
			if err := s.launch(ctx, box, initial); err != nil {
				s.log.Printf("launch box %d: %v", box.ID, err)
				continue
			}
			time.Sleep(launchStagger)
		}
	}
	return nil
}

// launch starts one worker goroutine for box and tracks it under workers.
func (s *Supervisor) launch(ctx context.Context, box domain.EmailBox, initial status.Status) error {
	svc, err := s.store.Service(ctx, box.EmailServiceID)
	if err != nil {
		return fmt.Errorf("load service: %w", err)
	}
	password, err := s.cipher.DecryptString(box.PasswordCipher)
	if err != nil {
		return fmt.Errorf("decrypt password: %w", err)
	}
	filters, err := s.store.FiltersForBox(ctx, box.ID)
	if err != nil {
		return fmt.Errorf("load filters: %w", err)
	}
	whitelist := domain.Whitelist(filters)

	host := fmt.Sprintf("%s:%d", svc.Address, svc.Port)
	mgr := imapconn.New(host, box.Username, password)
	reg := status.New(s.kvc, box.UserID, box.ID)
	w := worker.New(mgr, reg, whitelist, box.UserID, box.ID, s.disp)

	// Workers outlive the call that launched them (e.g. an API request), so
	// they hang off the process context recorded by StartupSweep.
	parent := s.rootCtx
	if parent == nil {
		parent = ctx
	}
	wctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.mu.Lock()
	if prior, ok := s.workers[box.ID]; ok {
		prior.cancel()
	}
	s.workers[box.ID] = &handle{cancel: cancel, done: done}
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := w.Run(wctx, initial); err != nil {
			s.log.Printf("worker for box %d exited: %v", box.ID, err)
		}
		s.mu.Lock()
		delete(s.workers, box.ID)
		s.mu.Unlock()
	}()
	return nil
}

// CreateMailbox probes the credentials, persists the mailbox, builds the
// whitelist, and launches a worker with initial=active.
func (s *Supervisor) CreateMailbox(ctx context.Context, telegramID, serviceID int64, username, plainPassword string, filters []domain.BoxFilter) (domain.EmailBox, error) {
	svc, err := s.store.Service(ctx, serviceID)
	if err != nil {
		return domain.EmailBox{}, err
	}

	host := fmt.Sprintf("%s:%d", svc.Address, svc.Port)
	mgr := imapconn.New(host, username, plainPassword)
	ok, err := mgr.Probe()
	if err != nil {
		return domain.EmailBox{}, err
	}
	if !ok {
		return domain.EmailBox{}, domain.ErrCredentialsInvalid
	}

	ciphertext, err := s.cipher.EncryptString(plainPassword)
	if err != nil {
		return domain.EmailBox{}, fmt.Errorf("encrypt password: %w", err)
	}
	box := domain.EmailBox{
		UserID:         telegramID,
		EmailServiceID: serviceID,
		Username:       username,
		PasswordCipher: ciphertext,
		IsActive:       true,
	}
	id, err := s.store.CreateBox(ctx, box)
	if err != nil {
		return domain.EmailBox{}, err
	}
	box.ID = id

	for i := range filters {
		filters[i].BoxID = id
		if err := s.store.CreateFilter(ctx, id, filters[i]); err != nil {
			return domain.EmailBox{}, fmt.Errorf("create filter: %w", err)
		}
	}

	userArgs := map[string]string{"id": strconv.FormatInt(telegramID, 10)}
	if err := invalidateKeys(ctx, s.kvc, []kv.Template{kv.TplUserEmailBoxes}, userArgs); err != nil {
		return domain.EmailBox{}, fmt.Errorf("invalidate cache: %w", err)
	}

	if err := s.launch(ctx, box, status.Active); err != nil {
		return domain.EmailBox{}, fmt.Errorf("launch worker: %w", err)
	}
	return box, nil
}

// PauseMailbox flips is_active=false and writes the paused status slot; the
// running worker observes it within one loop tick.
func (s *Supervisor) PauseMailbox(ctx context.Context, telegramID, boxID int64) error {
	if err := s.store.SetBoxActive(ctx, boxID, false); err != nil {
		return err
	}
	return status.New(s.kvc, telegramID, boxID).Set(ctx, status.Paused)
}

// ResumeMailbox flips is_active=true and writes the active status slot.
func (s *Supervisor) ResumeMailbox(ctx context.Context, telegramID, boxID int64) error {
	if err := s.store.SetBoxActive(ctx, boxID, true); err != nil {
		return err
	}
	return status.New(s.kvc, telegramID, boxID).Set(ctx, status.Active)
}

// DeleteMailbox writes the stopped status slot, deletes the persisted row,
// invalidates the box's cached entries, and removes the status slot; the
// worker exits on its next loop tick.
func (s *Supervisor) DeleteMailbox(ctx context.Context, telegramID, boxID int64) error {
	reg := status.New(s.kvc, telegramID, boxID)
	if err := reg.Set(ctx, status.Stopped); err != nil {
		return err
	}
	if err := s.store.DeleteBox(ctx, boxID); err != nil {
		return err
	}
	boxArgs := map[string]string{"id": strconv.FormatInt(boxID, 10)}
	if err := invalidateKeys(ctx, s.kvc, []kv.Template{kv.TplEmailBox, kv.TplBoxFilters}, boxArgs); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	userArgs := map[string]string{"id": strconv.FormatInt(telegramID, 10)}
	if err := invalidateKeys(ctx, s.kvc, []kv.Template{kv.TplUserEmailBoxes}, userArgs); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return reg.Remove(ctx)
}

// invalidateKeys deletes every key produced by interpolating each template
// with args.
func invalidateKeys(ctx context.Context, kvc *kv.Client, tpls []kv.Template, args map[string]string) error {
	_, err := kv.Invalidate(ctx, kvc, tpls, args, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, nil
	})
	return err
}

// Shutdown cancels every running worker and waits for them to exit.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.workers))
	for _, h := range s.workers {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}
