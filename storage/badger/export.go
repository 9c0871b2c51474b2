package badger

import (
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

// Export reads the whole store into a Dump in one consistent view.
func (s *Store) Export(ctx context.Context) (*storage.Dump, error) {
	dump := &storage.Dump{Version: storage.SchemaVersion}
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		if dump.Dimension, err = readDimension(tx); err != nil {
			return err
		}
		err = scanPrefix(ctx, tx, []byte(documentPrefix), func(_, val []byte) error {
			doc, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			dump.Documents = append(dump.Documents, doc)
			return nil
		})
		if err != nil {
			return err
		}
		err = scanSections(ctx, tx, 0, func(section *core.Section) error {
			dump.Sections = append(dump.Sections, section)
			return nil
		})
		if err != nil {
			return err
		}
		err = scanPrefix(ctx, tx, []byte(gapPrefix), func(_, val []byte) error {
			gap, err := storage.UnmarshalGap(val)
			if err != nil {
				return err
			}
			dump.Gaps = append(dump.Gaps, gap)
			return nil
		})
		if err != nil {
			return err
		}
		return scanPrefix(ctx, tx, []byte(recommendPrefix), func(_, val []byte) error {
			rec, err := storage.UnmarshalRecommendation(val)
			if err != nil {
				return err
			}
			dump.Recommendations = append(dump.Recommendations, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return dump, nil
}

// Import loads a validated Dump into an empty store, keeping its IDs.
// Sections go in before their documents, as in AddDocument.
func (s *Store) Import(ctx context.Context, dump *storage.Dump) error {
	if err := dump.Validate(); err != nil {
		return err
	}

	err := s.backend.Update(func(tx *badger.Txn) error {
		if countPrefix(tx, []byte(documentPrefix)) > 0 || countPrefix(tx, []byte(gapPrefix)) > 0 {
			return storage.ErrStoreNotEmpty
		}
		if dump.Dimension > 0 {
			if err := claimDimension(tx, dump.Dimension); err != nil {
				return err
			}
		}
		return raiseCounters(tx, dump)
	})
	if err != nil {
		return err
	}

	entries := make([]entry, 0, 2*len(dump.Sections)+2*len(dump.Documents)+len(dump.Gaps)+len(dump.Recommendations))
	for _, section := range dump.Sections {
		value, err := storage.MarshalSection(section)
		if err != nil {
			return err
		}
		key := makeSectionKey(section.DocumentId, section.Ordinal)
		entries = append(entries, entry{key, value}, entry{makeSectionIDKey(section.Id), key})
	}
	for _, gap := range dump.Gaps {
		value, err := storage.MarshalGap(gap)
		if err != nil {
			return err
		}
		entries = append(entries, entry{makeGapKey(gap.Id), value})
	}
	for _, rec := range dump.Recommendations {
		value, err := storage.MarshalRecommendation(rec)
		if err != nil {
			return err
		}
		entries = append(entries, entry{makeRecommendationKey(rec.GapId, rec.Id), value})
	}
	for _, doc := range dump.Documents {
		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if doc.Checksum != "" {
			entries = append(entries, entry{makeChecksumKey(doc.Checksum), storage.MarshalID(doc.Id)})
		}
		entries = append(entries, entry{makeDocumentKey(doc.Id), value})
	}

	if err := s.backend.writeChunked(ctx, entries); err != nil {
		return err
	}
	s.logger.Info("store imported",
		"documents", len(dump.Documents),
		"sections", len(dump.Sections),
		"gaps", len(dump.Gaps),
		"recommendations", len(dump.Recommendations))
	return nil
}

func raiseCounters(tx *badger.Txn, dump *storage.Dump) error {
	maxID := func(ids []core.ID) core.ID {
		if len(ids) == 0 {
			return 0
		}
		return slices.Max(ids)
	}
	collect := func(n int, id func(int) core.ID) []core.ID {
		out := make([]core.ID, n)
		for i := range out {
			out[i] = id(i)
		}
		return out
	}

	counters := map[string]core.ID{
		documentSequence: maxID(collect(len(dump.Documents), func(i int) core.ID { return dump.Documents[i].Id })),
		sectionSequence:  maxID(collect(len(dump.Sections), func(i int) core.ID { return dump.Sections[i].Id })),
		gapSequence:      maxID(collect(len(dump.Gaps), func(i int) core.ID { return dump.Gaps[i].Id })),
		recSequence:      maxID(collect(len(dump.Recommendations), func(i int) core.ID { return dump.Recommendations[i].Id })),
	}
	for name, id := range counters {
		if err := raiseCounter(tx, name, id); err != nil {
			return err
		}
	}
	return nil
}
