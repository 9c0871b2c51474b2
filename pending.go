package stdgap

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/stdgap/core"
)

// PendingKind names what a pending result holds.
type PendingKind string

const (
	PendingGaps            PendingKind = "gaps"
	PendingRecommendations PendingKind = "recommendations"
)

// Pending is a generated result that has not been stored yet.
// Pending results live only as long as the Workspace.
type Pending struct {
	Kind            PendingKind            `json:"kind"`
	Gaps            []*core.Gap            `json:"gaps,omitempty"`
	Recommendations []*core.Recommendation `json:"recommendations,omitempty"`
	Err             string                 `json:"error"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Pending returns the results waiting to be saved, oldest first.
func (w *Workspace) Pending() []*Pending {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*Pending(nil), w.pending...)
}

// RetryPending tries to store every pending result again. Results that
// are saved leave the pending list; the rest stay and their errors are
// returned joined.
func (w *Workspace) RetryPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var (
		saved int
		kept  []*Pending
		errs  []error
	)
	for _, p := range w.pending {
		var err error
		switch p.Kind {
		case PendingGaps:
			_, err = w.store.AddGaps(ctx, p.Gaps...)
		case PendingRecommendations:
			_, err = w.store.AddRecommendations(ctx, p.Recommendations...)
		}
		if err != nil {
			p.Err = err.Error()
			kept = append(kept, p)
			errs = append(errs, err)
			continue
		}
		saved++
	}
	w.pending = kept

	w.logger.Info("retried pending results", "saved", saved, "remaining", len(kept))
	return saved, errors.Join(errs...)
}

// keepPending records an unsaved result. Must be called with lock held.
func (w *Workspace) keepPending(p *Pending, err error) {
	p.Err = err.Error()
	p.CreatedAt = core.Now()
	w.pending = append(w.pending, p)
	w.logger.Error("result not saved, kept as pending", "kind", p.Kind, "pending", len(w.pending), "err", err)
}
