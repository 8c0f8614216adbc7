// Package status implements the Status Registry: a thin façade over the KV
// store pinned to one (user, box) pair. It does not enforce transition
// legality; the supervisor and the worker do that.
package status

import (
	"context"
	"fmt"

	"mailwatch/internal/kv"
)

// Status is one of the three worker lifecycle states.
type Status string

const (
	Active  Status = "active"
	Paused  Status = "paused"
	Stopped Status = "stopped"
)

// Registry is the status slot for a single (telegramID, boxID) pair.
type Registry struct {
	kvc        *kv.Client
	telegramID int64
	boxID      int64
}

// New binds a Registry to one mailbox's status slot.
func New(kvc *kv.Client, telegramID, boxID int64) *Registry {
	return &Registry{kvc: kvc, telegramID: telegramID, boxID: boxID}
}

func (r *Registry) key() string {
	return kv.TplImapStatus.Interpolate(map[string]string{
		"user": fmt.Sprintf("%d", r.telegramID),
		"box":  fmt.Sprintf("%d", r.boxID),
	})
}

// Set writes the status slot.
func (r *Registry) Set(ctx context.Context, s Status) error {
	return r.kvc.Set(ctx, r.key(), string(s), 0)
}

// Get reads the status slot. ok is false if the slot has never been written
// or has already been removed.
func (r *Registry) Get(ctx context.Context) (s Status, ok bool, err error) {
	v, ok, err := r.kvc.Get(ctx, r.key())
	if err != nil || !ok {
		return "", ok, err
	}
	return Status(v), true, nil
}

// Remove deletes the status slot, used when a mailbox is deleted.
func (r *Registry) Remove(ctx context.Context) error {
	return r.kvc.Delete(ctx, r.key())
}
