package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

// GetSection retrieves a section by ID.
func (s *Store) GetSection(ctx context.Context, id core.ID) (*core.Section, error) {
	var section *core.Section
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		section, _, err = readSection(tx, id)
		return err
	})
	return section, err
}

// GetSections retrieves the sections that exist among ids, in argument order.
func (s *Store) GetSections(ctx context.Context, ids ...core.ID) ([]*core.Section, error) {
	sections := make([]*core.Section, 0, len(ids))
	err := s.backend.View(func(tx *badger.Txn) error {
		for _, id := range ids {
			section, _, err := readSection(tx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			sections = append(sections, section)
		}
		return nil
	})
	return sections, err
}

// ListSections returns a document's sections ordered by ordinal.
func (s *Store) ListSections(ctx context.Context, docID core.ID) ([]*core.Section, error) {
	var sections []*core.Section
	err := s.backend.View(func(tx *badger.Txn) error {
		if _, err := readDocument(tx, docID); err != nil {
			return err
		}
		return scanPrefix(ctx, tx, makeDocumentSectionsPrefix(docID), func(_, val []byte) error {
			section, err := storage.UnmarshalSection(val)
			if err != nil {
				return err
			}
			sections = append(sections, section)
			return nil
		})
	})
	return sections, err
}

// ListUnembedded returns non-blank sections that have no vector yet.
func (s *Store) ListUnembedded(ctx context.Context, docID core.ID) ([]*core.Section, error) {
	var sections []*core.Section
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanSections(ctx, tx, docID, func(section *core.Section) error {
			if !section.Embedded() && !section.Blank() {
				sections = append(sections, section)
			}
			return nil
		})
	})
	return sections, err
}

// ForEachEmbedded calls fn for every section with a vector.
func (s *Store) ForEachEmbedded(ctx context.Context, docID core.ID, fn func(*core.Section) error) error {
	return s.backend.View(func(tx *badger.Txn) error {
		return scanSections(ctx, tx, docID, func(section *core.Section) error {
			if !section.Embedded() {
				return nil
			}
			return fn(section)
		})
	})
}

// SetVectors assigns vectors to sections in a single transaction.
func (s *Store) SetVectors(ctx context.Context, vectors map[core.ID][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	ids := make([]core.ID, 0, len(vectors))
	for id := range vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return s.backend.Update(func(tx *badger.Txn) error {
		for _, id := range ids {
			section, key, err := readSection(tx, id)
			if err != nil {
				return err
			}
			if section.Embedded() {
				return fmt.Errorf("section %d: %w", id, storage.ErrVectorAlreadySet)
			}
			vector := vectors[id]
			if err := claimDimension(tx, len(vector)); err != nil {
				return fmt.Errorf("section %d: %w", id, err)
			}
			section.Vector = vector
			value, err := storage.MarshalSection(section)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Dimension returns the corpus vector length, or 0 before the first vector.
func (s *Store) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		dim, err = readDimension(tx)
		return err
	})
	return dim, err
}

// readSection resolves a section ID through the index and returns the
// section with its primary key.
func readSection(tx *badger.Txn, id core.ID) (*core.Section, []byte, error) {
	key, err := getValue(tx, makeSectionIDKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("section %d: %w", id, err)
		}
		return nil, nil, err
	}
	if exists, err := hasKey(tx, makeDocumentKey(sectionDocumentID(key))); err != nil {
		return nil, nil, err
	} else if !exists {
		return nil, nil, fmt.Errorf("section %d: %w", id, storage.ErrNotFound)
	}
	val, err := getValue(tx, key)
	if err != nil {
		return nil, nil, err
	}
	section, err := storage.UnmarshalSection(val)
	return section, key, err
}

// scanSections visits sections of docID (0 = all documents) in key order,
// skipping sections whose document record does not exist.
func scanSections(ctx context.Context, tx *badger.Txn, docID core.ID, fn func(*core.Section) error) error {
	prefix := []byte(sectionPrefix)
	if docID != 0 {
		prefix = makeDocumentSectionsPrefix(docID)
	}

	stored := make(map[core.ID]bool)
	return scanPrefix(ctx, tx, prefix, func(key, val []byte) error {
		owner := sectionDocumentID(key)
		exists, seen := stored[owner]
		if !seen {
			var err error
			if exists, err = hasKey(tx, makeDocumentKey(owner)); err != nil {
				return err
			}
			stored[owner] = exists
		}
		if !exists {
			return nil
		}
		section, err := storage.UnmarshalSection(val)
		if err != nil {
			return err
		}
		return fn(section)
	})
}
