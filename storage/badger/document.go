package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

// AddDocument stores a document and its sections.
//
// Sections are written first, possibly across several transactions, and the
// document record last. Readers ignore sections whose document record is
// missing, so a crash part way through leaves no visible trace.
func (s *Store) AddDocument(ctx context.Context, doc *core.Document, sections []*core.Section) (*core.Document, error) {
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if err := core.ValidateSections(doc.Text, sections); err != nil {
		return nil, err
	}

	// Reserve IDs and check for duplicates and vector size up front.
	var docID, firstSection core.ID
	err := s.backend.Update(func(tx *badger.Txn) error {
		if err := checkNotDuplicate(tx, doc.Checksum); err != nil {
			return err
		}
		for _, sec := range sections {
			if sec.Embedded() {
				if err := claimDimension(tx, len(sec.Vector)); err != nil {
					return err
				}
			}
		}
		var err error
		if docID, err = nextIDs(tx, documentSequence, 1); err != nil {
			return err
		}
		firstSection, err = nextIDs(tx, sectionSequence, len(sections))
		return err
	})
	if err != nil {
		return nil, err
	}

	doc.Id = docID
	doc.SectionCount = len(sections)
	if doc.Status == "" {
		doc.Status = core.StatusPending
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = core.Now()
	}

	entries := make([]entry, 0, 2*len(sections))
	for i, sec := range sections {
		sec.Id = firstSection + core.ID(i)
		sec.DocumentId = docID
		if sec.WordCount == 0 {
			sec.WordCount = core.WordCount(sec.Text)
		}
		value, err := storage.MarshalSection(sec)
		if err != nil {
			return nil, err
		}
		key := makeSectionKey(docID, sec.Ordinal)
		entries = append(entries,
			entry{key: key, value: value},
			entry{key: makeSectionIDKey(sec.Id), value: key},
		)
	}
	if err := s.backend.writeChunked(ctx, entries); err != nil {
		s.discardSections(docID)
		return nil, err
	}

	value, err := storage.MarshalDocument(doc)
	if err != nil {
		s.discardSections(docID)
		return nil, err
	}
	err = s.backend.Update(func(tx *badger.Txn) error {
		if err := checkNotDuplicate(tx, doc.Checksum); err != nil {
			return err
		}
		if doc.Checksum != "" {
			if err := tx.Set(makeChecksumKey(doc.Checksum), storage.MarshalID(docID)); err != nil {
				return err
			}
		}
		return tx.Set(makeDocumentKey(docID), value)
	})
	if err != nil {
		s.discardSections(docID)
		return nil, err
	}

	s.logger.Debug("document stored", "id", docID, "filename", doc.Filename, "sections", len(sections))
	return doc, nil
}

// discardSections removes sections written for a document that was never stored.
func (s *Store) discardSections(docID core.ID) {
	if err := s.backend.dropPrefixes(string(makeDocumentSectionsPrefix(docID))); err != nil {
		s.logger.Warn("failed to remove orphaned sections", "document", docID, "err", err)
	}
}

func checkNotDuplicate(tx *badger.Txn, checksum string) error {
	if checksum == "" {
		return nil
	}
	exists, err := hasKey(tx, makeChecksumKey(checksum))
	if err != nil {
		return err
	}
	if exists {
		return storage.ErrDuplicateDocument
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, id)
		return err
	})
	return doc, err
}

// FindDocumentByChecksum returns the document with the given content checksum.
func (s *Store) FindDocumentByChecksum(ctx context.Context, checksum string) (*core.Document, error) {
	var doc *core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeChecksumKey(checksum))
		if err != nil {
			return err
		}
		id, err := storage.UnmarshalID(val)
		if err != nil {
			return err
		}
		doc, err = readDocument(tx, id)
		return err
	})
	return doc, err
}

// ListDocuments returns all documents ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	var docs []*core.Document
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(ctx, tx, []byte(documentPrefix), func(_, val []byte) error {
			doc, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	return docs, err
}

// SetDocumentStatus updates a document's embedding status.
func (s *Store) SetDocumentStatus(ctx context.Context, id core.ID, status core.DocumentStatus) error {
	return s.backend.Update(func(tx *badger.Txn) error {
		doc, err := readDocument(tx, id)
		if err != nil {
			return err
		}
		if doc.Status == status {
			return nil
		}
		doc.Status = status
		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		return tx.Set(makeDocumentKey(id), value)
	})
}

func readDocument(tx *badger.Txn, id core.ID) (*core.Document, error) {
	val, err := getValue(tx, makeDocumentKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("document %d: %w", id, err)
		}
		return nil, err
	}
	return storage.UnmarshalDocument(val)
}
