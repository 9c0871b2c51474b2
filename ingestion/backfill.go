// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"errors"

	"github.com/poiesic/stdgap/core"
)

// BackfillReport summarizes a backfill run.
type BackfillReport struct {
	Documents int
	Sections  int
	Embedded  int
	Batches   []BatchResult
}

// Backfill embeds stored sections that have no vector yet, for one
// document or, with docID 0, for all documents. Each touched document's
// status is recomputed afterwards. Progress may be nil.
func (p *Pipeline) Backfill(ctx context.Context, docID core.ID, progress Progress) (*BackfillReport, error) {
	if progress == nil {
		progress = noopProgress{}
	}

	if docID != 0 {
		if _, err := p.store.GetDocument(ctx, docID); err != nil {
			return nil, err
		}
	}

	missing, err := p.store.ListUnembedded(ctx, docID)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{Sections: len(missing)}
	if len(missing) == 0 {
		p.logger.Info("nothing to backfill")
		return report, nil
	}

	var order []core.ID
	byDoc := make(map[core.ID][]*core.Section)
	for _, section := range missing {
		if _, seen := byDoc[section.DocumentId]; !seen {
			order = append(order, section.DocumentId)
		}
		byDoc[section.DocumentId] = append(byDoc[section.DocumentId], section)
	}
	report.Documents = len(order)

	progress.Start(len(missing))
	defer progress.Finish()

	var errs []error
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		run := &Report{}
		if err := p.embedSections(ctx, byDoc[id], run, progress); err != nil {
			errs = append(errs, err)
		}
		report.Embedded += run.Embedded
		report.Batches = append(report.Batches, run.Batches...)

		doc, err := p.store.GetDocument(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := p.finishDocument(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}

	p.logger.Info("backfill complete", "documents", report.Documents, "sections", report.Sections, "embedded", report.Embedded)
	return report, errors.Join(errs...)
}
