// Package storage provides StrandStore implementations: an in-memory one
// for tests and local development, and a Postgres-backed one (via bun) for
// production.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/cil/internal/domain"
	domerrors "github.com/smilemakc/cil/internal/domain/errors"
)

// MemoryStore is a StrandStore backed by an in-process map, guarded by a
// single RWMutex. Sufficient for unit tests and the CIL_TEST_DSN-less test
// suite; never used in production (see NewBunStore for that).
type MemoryStore struct {
	mu sync.RWMutex
	strands map[uuid.UUID]*domain.Strand
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{strands: make(map[uuid.UUID]*domain.Strand)}
}

func (s *MemoryStore) Append(ctx context.Context, strand *domain.Strand) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strands[strand.ID()] = strand
	return strand.ID(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Strand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.strands[id]
	if !ok {
		return nil, domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
	}
	return st, nil
}

func (s *MemoryStore) Query(ctx context.Context, filter domain.QueryFilter) ([]*domain.Strand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Strand
	for _, st := range s.strands {
		if matches(st, filter) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
			return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(st *domain.Strand, filter domain.QueryFilter) bool {
	if filter.Kind != "" && st.Kind() != filter.Kind {
		return false
	}
	if filter.Symbol != "" && st.Symbol() != filter.Symbol {
		return false
	}
	if filter.Timeframe != "" && st.Timeframe() != filter.Timeframe {
		return false
	}
	if filter.BraidLevel != 0 && st.BraidLevel() != filter.BraidLevel {
		return false
	}
	if !filter.CreatedAfter.IsZero() && st.CreatedAt().Before(filter.CreatedAfter) {
		return false
	}
	if !filter.CreatedBefore.IsZero() && st.CreatedAt().After(filter.CreatedBefore) {
		return false
	}
	for _, tag := range filter.Tags {
		if !st.HasTag(tag) {
			return false
		}
	}
	if filter.ClusterType != "" {
		found := false
		for _, slot := range st.ClusterKey() {
			if slot.ClusterType != filter.ClusterType {
				continue
			}
			if filter.ClusterKey != "" && slot.ClusterKey != filter.ClusterKey {
				continue
			}
			if filter.UnconsumedAt != nil && (slot.BraidLevel != *filter.UnconsumedAt || slot.Consumed) {
				continue
			}
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *MemoryStore) UpdateConsumed(ctx context.Context, id uuid.UUID, key domain.ClusterSlotKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.strands[id]
	if !ok {
		return domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
	}
	return st.ConsumeSlot(key, time.Now().UTC())
}

func (s *MemoryStore) AddClusterSlot(ctx context.Context, id uuid.UUID, slot domain.ClusterSlot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.strands[id]
	if !ok {
		return domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
	}
	st.AddClusterSlot(slot, time.Now().UTC())
	return nil
}

func (s *MemoryStore) UpdateMutableFields(ctx context.Context, id uuid.UUID, patch domain.MutablePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.strands[id]
	if !ok {
		return domerrors.Newf(domerrors.CodeNotFound, "strand %s not found", id)
	}
	now := time.Now().UTC()
	if patch.TrackingStatus != nil {
		if err := st.TransitionStatus(*patch.TrackingStatus, now); err != nil {
			return err
		}
	}
	if patch.ResonanceState != nil {
		// bounds are applied by the resonance worker before calling UpdateMutableFields;
		// here we trust the value and only stamp updated_at.
		st.UpdateResonance(*patch.ResonanceState, domain.ResonanceBounds{
				PhiMin: -1e18, PhiMax: 1e18, RhoMin: -1e18, RhoMax: 1e18,
			}, now)
	}
	if patch.Telemetry != nil {
		st.UpdateTelemetry(*patch.Telemetry, now)
	}
	if patch.Scores != nil {
		st.UpdateScores(*patch.Scores, now)
	}
	return nil
}

// tagContains is a small helper the Postgres store uses to post-filter query
// results by tag; the memory store matches tags with Strand.HasTag instead.
func tagContains(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
