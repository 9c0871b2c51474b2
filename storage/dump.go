package storage

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/poiesic/stdgap/core"
)

// SchemaVersion is the on-disk format version written by this build.
const SchemaVersion = 1

// Dump is a complete, self-contained copy of a store.
type Dump struct {
	Version         int                    `json:"version"`
	Dimension       int                    `json:"dimension"`
	Documents       []*core.Document       `json:"documents"`
	Sections        []*core.Section        `json:"sections"`
	Gaps            []*core.Gap            `json:"gaps"`
	Recommendations []*core.Recommendation `json:"recommendations"`
}

// Validate checks version, referential integrity and vector dimensions.
func (d *Dump) Validate() error {
	if d.Version != SchemaVersion {
		return fmt.Errorf("%w: dump version %d, want %d", ErrCorruptStore, d.Version, SchemaVersion)
	}

	byDoc := make(map[core.ID][]*core.Section, len(d.Documents))
	docs := make(map[core.ID]*core.Document, len(d.Documents))
	for _, doc := range d.Documents {
		if doc.Id == 0 {
			return fmt.Errorf("%w: document without id", core.ErrInvalidDocument)
		}
		if _, dup := docs[doc.Id]; dup {
			return fmt.Errorf("%w: duplicate document id %d", core.ErrInvalidDocument, doc.Id)
		}
		if err := core.ValidateDocument(doc); err != nil {
			return err
		}
		docs[doc.Id] = doc
	}

	sectionIDs := make(map[core.ID]bool, len(d.Sections))
	for _, s := range d.Sections {
		if s.Id == 0 || sectionIDs[s.Id] {
			return fmt.Errorf("%w: missing or duplicate section id %d", core.ErrInvalidSection, s.Id)
		}
		sectionIDs[s.Id] = true
		if _, ok := docs[s.DocumentId]; !ok {
			return fmt.Errorf("%w: section %d references unknown document %d", core.ErrInvalidSection, s.Id, s.DocumentId)
		}
		if len(s.Vector) > 0 && d.Dimension > 0 && len(s.Vector) != d.Dimension {
			return fmt.Errorf("%w: section %d has %d dimensions, want %d", core.ErrDimensionMismatch, s.Id, len(s.Vector), d.Dimension)
		}
		if len(s.Vector) > 0 && d.Dimension == 0 {
			return fmt.Errorf("%w: section %d has a vector but the dump has no dimension", core.ErrDimensionMismatch, s.Id)
		}
		byDoc[s.DocumentId] = append(byDoc[s.DocumentId], s)
	}
	for id, doc := range docs {
		slices.SortFunc(byDoc[id], func(a, b *core.Section) int { return cmp.Compare(a.Ordinal, b.Ordinal) })
		if err := core.ValidateSections(doc.Text, byDoc[id]); err != nil {
			return fmt.Errorf("document %d: %w", id, err)
		}
	}

	gaps := make(map[core.ID]bool, len(d.Gaps))
	for _, g := range d.Gaps {
		if g.Id == 0 || gaps[g.Id] {
			return fmt.Errorf("%w: missing or duplicate gap id %d", core.ErrInvalidGap, g.Id)
		}
		if err := core.ValidateGap(g); err != nil {
			return err
		}
		gaps[g.Id] = true
	}
	recs := make(map[core.ID]bool, len(d.Recommendations))
	for _, r := range d.Recommendations {
		if r.Id == 0 || recs[r.Id] {
			return fmt.Errorf("%w: missing or duplicate recommendation id %d", core.ErrInvalidRecommendation, r.Id)
		}
		if !gaps[r.GapId] {
			return fmt.Errorf("%w: recommendation %d references unknown gap %d", core.ErrInvalidRecommendation, r.Id, r.GapId)
		}
		if err := core.ValidateRecommendation(r); err != nil {
			return err
		}
		recs[r.Id] = true
	}
	return nil
}
