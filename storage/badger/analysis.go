package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

// AddGaps stores gaps in one transaction, assigning IDs and CreatedAt.
func (s *Store) AddGaps(ctx context.Context, gaps ...*core.Gap) ([]*core.Gap, error) {
	for _, gap := range gaps {
		if err := core.ValidateGap(gap); err != nil {
			return nil, err
		}
	}
	if len(gaps) == 0 {
		return gaps, nil
	}

	now := core.Now()
	err := s.backend.Update(func(tx *badger.Txn) error {
		first, err := nextIDs(tx, gapSequence, len(gaps))
		if err != nil {
			return err
		}
		for i, gap := range gaps {
			gap.Id = first + core.ID(i)
			if gap.CreatedAt.IsZero() {
				gap.CreatedAt = now
			}
			value, err := storage.MarshalGap(gap)
			if err != nil {
				return err
			}
			if err := tx.Set(makeGapKey(gap.Id), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, gap := range gaps {
			gap.Id = 0
		}
		return nil, err
	}
	return gaps, nil
}

// GetGap retrieves a gap by ID.
func (s *Store) GetGap(ctx context.Context, id core.ID) (*core.Gap, error) {
	var gap *core.Gap
	err := s.backend.View(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeGapKey(id))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("gap %d: %w", id, err)
			}
			return err
		}
		gap, err = storage.UnmarshalGap(val)
		return err
	})
	return gap, err
}

// ListGaps returns all gaps, newest first.
func (s *Store) ListGaps(ctx context.Context) ([]*core.Gap, error) {
	var gaps []*core.Gap
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, []byte(gapPrefix), func(_, val []byte) error {
			gap, err := storage.UnmarshalGap(val)
			if err != nil {
				return err
			}
			gaps = append(gaps, gap)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(gaps, func(a, b *core.Gap) int {
		return cmp.Compare(b.Id, a.Id)
	})
	return gaps, nil
}

// AddRecommendations stores recommendations for existing gaps.
func (s *Store) AddRecommendations(ctx context.Context, recs ...*core.Recommendation) ([]*core.Recommendation, error) {
	for _, rec := range recs {
		if err := core.ValidateRecommendation(rec); err != nil {
			return nil, err
		}
	}
	if len(recs) == 0 {
		return recs, nil
	}

	now := core.Now()
	err := s.backend.Update(func(tx *badger.Txn) error {
		for _, rec := range recs {
			exists, err := hasKey(tx, makeGapKey(rec.GapId))
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("gap %d: %w", rec.GapId, storage.ErrNotFound)
			}
		}
		first, err := nextIDs(tx, recSequence, len(recs))
		if err != nil {
			return err
		}
		for i, rec := range recs {
			rec.Id = first + core.ID(i)
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			value, err := storage.MarshalRecommendation(rec)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecommendationKey(rec.GapId, rec.Id), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, rec := range recs {
			rec.Id = 0
		}
		return nil, err
	}
	return recs, nil
}

// ListRecommendations returns a gap's recommendations in creation order.
func (s *Store) ListRecommendations(ctx context.Context, gapID core.ID) ([]*core.Recommendation, error) {
	var recs []*core.Recommendation
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, makeGapRecommendationsPrefix(gapID), func(_, val []byte) error {
			rec, err := storage.UnmarshalRecommendation(val)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	return recs, err
}

// CountRecommendations returns the number of stored recommendations.
func (s *Store) CountRecommendations(ctx context.Context) (int, error) {
	var n int
	err := s.backend.View(func(tx *badger.Txn) error {
		n = countPrefix(tx, []byte(recommendPrefix))
		return nil
	})
	return n, err
}

// ClearAnalyses deletes every gap and recommendation. Documents, sections
// and ID counters are untouched, so new gaps never reuse an old ID.
func (s *Store) ClearAnalyses(ctx context.Context) error {
	if err := s.backend.dropPrefixes(gapPrefix, recommendPrefix); err != nil {
		return err
	}
	s.logger.Info("analyses cleared")
	return nil
}
