package stdgap

import (
	"context"
	"slices"

	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
)

// RecentGapCount is the number of gaps listed on the dashboard.
const RecentGapCount = 5

// DomainRisk counts a domain's gaps per risk level.
type DomainRisk struct {
	Domain string `json:"domain"`
	High   int    `json:"high"`
	Medium int    `json:"medium"`
	Low    int    `json:"low"`
}

// Total returns the number of gaps in the domain.
func (d DomainRisk) Total() int {
	return d.High + d.Medium + d.Low
}

// Dashboard summarizes the workspace.
type Dashboard struct {
	Documents        int                    `json:"documents"`
	Sections         int                    `json:"sections"`
	EmbeddedSections int                    `json:"embedded_sections"`
	Gaps             int                    `json:"gaps"`
	Recommendations  int                    `json:"recommendations"`
	GapsByRisk       map[core.RiskLevel]int `json:"gaps_by_risk"`
	// RiskMatrix has one row per domain with gaps. Catalogue domains come
	// first in catalogue order, then other domains alphabetically.
	RiskMatrix []DomainRisk `json:"risk_matrix"`
	RecentGaps []*core.Gap  `json:"recent_gaps"`
	Pending    int          `json:"pending"`
}

// Dashboard computes the dashboard statistics.
func (w *Workspace) Dashboard(ctx context.Context) (*Dashboard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	docs, err := w.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	gaps, err := w.store.ListGaps(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := w.store.CountRecommendations(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Documents:       len(docs),
		Gaps:            len(gaps),
		Recommendations: recs,
		GapsByRisk:      make(map[core.RiskLevel]int, len(core.RiskLevels)),
		RecentGaps:      gaps[:min(len(gaps), RecentGapCount)],
		Pending:         len(w.pending),
	}
	for _, level := range core.RiskLevels {
		d.GapsByRisk[level] = 0
	}
	for _, doc := range docs {
		d.Sections += doc.SectionCount
	}
	err = w.store.ForEachEmbedded(ctx, 0, func(*core.Section) error {
		d.EmbeddedSections++
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*DomainRisk)
	for _, gap := range gaps {
		d.GapsByRisk[gap.RiskLevel]++
		row, ok := rows[gap.Domain]
		if !ok {
			row = &DomainRisk{Domain: gap.Domain}
			rows[gap.Domain] = row
		}
		switch gap.RiskLevel {
		case core.RiskHigh:
			row.High++
		case core.RiskMedium:
			row.Medium++
		case core.RiskLow:
			row.Low++
		}
	}
	d.RiskMatrix = riskMatrix(rows)
	return d, nil
}

func riskMatrix(rows map[string]*DomainRisk) []DomainRisk {
	matrix := make([]DomainRisk, 0, len(rows))
	for _, domain := range analysis.Domains {
		if row, ok := rows[domain]; ok {
			matrix = append(matrix, *row)
			delete(rows, domain)
		}
	}
	others := make([]string, 0, len(rows))
	for domain := range rows {
		others = append(others, domain)
	}
	slices.Sort(others)
	for _, domain := range others {
		matrix = append(matrix, *rows[domain])
	}
	return matrix
}
