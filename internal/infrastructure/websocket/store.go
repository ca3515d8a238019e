package websocket

import (
	"context"

	"github.com/google/uuid"

	"github.com/smilemakc/cil/internal/domain"
)

// ObservingStore decorates a domain.StrandStore, notifying a StrandObserver
// after every successful write so the subscription feed stays in sync
// without any CIL component needing to know the feed exists.
type ObservingStore struct {
	domain.StrandStore
	observer StrandObserver
}

// NewObservingStore wraps inner with observer notifications.
func NewObservingStore(inner domain.StrandStore, observer StrandObserver) *ObservingStore {
	return &ObservingStore{StrandStore: inner, observer: observer}
}

// Append persists s via the wrapped store, then notifies the observer.
func (o *ObservingStore) Append(ctx context.Context, s *domain.Strand) (uuid.UUID, error) {
	id, err := o.StrandStore.Append(ctx, s)
	if err != nil {
		return id, err
	}
	o.observer.OnStrandAppended(s)
	return id, nil
}

// UpdateMutableFields applies patch via the wrapped store, then re-fetches
// and notifies the observer so subscribers see the post-update state.
func (o *ObservingStore) UpdateMutableFields(ctx context.Context, id uuid.UUID, patch domain.MutablePatch) error {
	if err := o.StrandStore.UpdateMutableFields(ctx, id, patch); err != nil {
		return err
	}
	if s, err := o.StrandStore.Get(ctx, id); err == nil {
		o.observer.OnStrandUpdated(s)
	}
	return nil
}
