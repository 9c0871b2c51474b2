package stdgap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/ai/mock"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
	"github.com/poiesic/stdgap/split"
	"github.com/poiesic/stdgap/storage"
	"github.com/poiesic/stdgap/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeSections = "# Scope\nThis standard applies to collaborative robots.\n\n" +
	"# Emergency stop\nRobots shall stop within 500 ms of an emergency stop signal.\n\n" +
	"# Marking\nEach robot shall carry a rating plate.\n"

func gapResponse(gaps ...string) string {
	return `{"gaps": [` + strings.Join(gaps, ",") + `]}`
}

func gapJSON(title, risk string) string {
	return fmt.Sprintf(`{"title": %q, "description": "No coverage for %s", "risk_level": %q}`, title, title, risk)
}

const recommendationResponse = `{"recommendations": [{
	"title": "Add spoofing tests",
	"proposed_text": "Sensors shall be tested against spoofed inputs.",
	"rationale": "Spoofing defeats perception.",
	"references": "ISO 21448",
	"implementation_difficulty": "moderate"
}]}`

func fastPolicy() ai.RetryPolicy {
	return ai.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

// flakyStore fails analysis writes while failWrites is set.
type flakyStore struct {
	storage.Store
	failWrites bool
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) AddGaps(ctx context.Context, gaps ...*core.Gap) ([]*core.Gap, error) {
	if s.failWrites {
		return nil, errDiskFull
	}
	return s.Store.AddGaps(ctx, gaps...)
}

func (s *flakyStore) AddRecommendations(ctx context.Context, recs ...*core.Recommendation) ([]*core.Recommendation, error) {
	if s.failWrites {
		return nil, errDiskFull
	}
	return s.Store.AddRecommendations(ctx, recs...)
}

type fixture struct {
	ws        *Workspace
	store     *flakyStore
	provider  ai.AIProvider
	embedder  *mock.MockEmbedder
	completer *mock.MockCompleter
}

func newFixture(t *testing.T, responses ...string) *fixture {
	t.Helper()
	inner, err := badger.NewMemoryStore()
	require.NoError(t, err)

	f := &fixture{
		store:     &flakyStore{Store: inner},
		embedder:  &mock.MockEmbedder{Dimension: 16},
		completer: mock.NewMockCompleter(responses...),
	}
	f.provider = mock.NewMockProviderWithServices(f.embedder, f.completer)
	f.ws, err = Open("", WithStore(f.store), WithProvider(f.provider),
		WithBatchOptions(ingestion.WithRetryPolicy(fastPolicy())))
	require.NoError(t, err)
	t.Cleanup(func() { f.ws.Close() })
	return f
}

func (f *fixture) upload(t *testing.T, name, text string) *ingestion.Report {
	t.Helper()
	report, err := f.ws.Upload(context.Background(), ingestion.Upload{Filename: name, Data: []byte(text)})
	require.NoError(t, err)
	return report
}

func TestOpen(t *testing.T) {
	t.Run("opens a store on disk", func(t *testing.T) {
		provider := mock.NewMockProvider()
		ws, err := Open(filepath.Join(t.TempDir(), "db"), WithProvider(provider))
		require.NoError(t, err)
		require.NotNil(t, ws.Store())

		require.NoError(t, ws.Close())
		assert.True(t, provider.(*mock.MockProvider).Closed())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to open a store at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		provider := mock.NewMockProvider()
		ws, err := Open(tmpFile, WithProvider(provider))
		assert.Error(t, err)
		assert.Nil(t, ws)
		assert.True(t, provider.(*mock.MockProvider).Closed())
	})

	t.Run("rejects invalid ai config", func(t *testing.T) {
		_, err := Open(t.TempDir(), WithAIConfig(ai.NewConfig()))
		assert.ErrorContains(t, err, "APIKey")
	})

	t.Run("rejects invalid split options", func(t *testing.T) {
		store, err := badger.NewMemoryStore()
		require.NoError(t, err)
		_, err = Open("", WithStore(store), WithProvider(mock.NewMockProvider()), WithSplitOptions(split.WithWindowSize(0)))
		assert.Error(t, err)
	})
}

func TestWorkspace_UploadAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report := f.upload(t, "robots.md", threeSections)
	require.Len(t, report.Sections, 3)
	assert.Equal(t, core.StatusEmbedded, report.Document.Status)

	docs, err := f.ws.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc, sections, err := f.ws.Document(ctx, docs[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "robots.md", doc.Filename)
	require.Len(t, sections, 3)

	// The query embeds to exactly the second section's vector.
	query := strings.TrimSpace(sections[1].Text)
	results, err := f.ws.Search(ctx, query, search.Options{K: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, sections[1].Id, results[0].Section.Id)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.LessOrEqual(t, results[1].Score, results[0].Score)
	assert.NotEqual(t, sections[1].Id, results[1].Section.Id)
	assert.Equal(t, "robots.md", results[0].Filename)

	_, _, err = f.ws.Document(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkspace_Analyze(t *testing.T) {
	f := newFixture(t, gapResponse(gapJSON("Sensor spoofing", "High"), gapJSON("Update signing", "low")))
	ctx := context.Background()
	f.upload(t, "robots.md", threeSections)

	result, err := f.ws.Analyze(ctx, analysis.Request{ResearchText: "Lidar can be spoofed.", Domain: "Autonomous Vehicles"})
	require.NoError(t, err)
	require.Len(t, result.Gaps, 2)
	assert.Len(t, result.Context, 3)

	gaps, err := f.ws.Gaps(ctx)
	require.NoError(t, err)
	require.Len(t, gaps, 2)
	for _, gap := range gaps {
		assert.NotZero(t, gap.Id)
		assert.Equal(t, result.AnalysisId, gap.AnalysisId)
		assert.Equal(t, "Autonomous Vehicles", gap.Domain)
		assert.Len(t, gap.SectionIds, 3)
	}
	assert.Equal(t, core.RiskLow, gaps[0].RiskLevel)
}

func TestWorkspace_AnalyzeParseErrorStoresNothing(t *testing.T) {
	f := newFixture(t, `{"gaps": [{"title": "Sensor spoofing", "description": "No spoofing tests"}]}`)
	ctx := context.Background()

	_, err := f.ws.Analyze(ctx, analysis.Request{ResearchText: "Lidar can be spoofed.", Domain: "AI Systems"})
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrParse)
	assert.Equal(t, 1, f.completer.CallCount())

	gaps, err := f.ws.Gaps(ctx)
	require.NoError(t, err)
	assert.Empty(t, gaps)
	assert.Empty(t, f.ws.Pending())
}

func TestWorkspace_Recommend(t *testing.T) {
	f := newFixture(t, gapResponse(gapJSON("Sensor spoofing", "High")), recommendationResponse)
	ctx := context.Background()

	result, err := f.ws.Analyze(ctx, analysis.Request{ResearchText: "Lidar can be spoofed.", Domain: "AI Systems"})
	require.NoError(t, err)
	gapID := result.Gaps[0].Id

	recs, err := f.ws.Recommend(ctx, gapID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotZero(t, recs[0].Id)
	assert.Equal(t, core.DifficultyModerate, recs[0].Difficulty)
	assert.Equal(t, []string{"ISO 21448"}, recs[0].References)

	gap, stored, err := f.ws.Gap(ctx, gapID)
	require.NoError(t, err)
	assert.Equal(t, "Sensor spoofing", gap.Title)
	require.Len(t, stored, 1)
	assert.Equal(t, gapID, stored[0].GapId)

	_, err = f.ws.Recommend(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWorkspace_PendingResults(t *testing.T) {
	f := newFixture(t,
		gapResponse(gapJSON("Sensor spoofing", "High")),
		gapResponse(gapJSON("Update signing", "Medium")),
		recommendationResponse,
	)
	ctx := context.Background()
	req := analysis.Request{ResearchText: "Lidar can be spoofed.", Domain: "AI Systems"}

	result, err := f.ws.Analyze(ctx, req)
	require.NoError(t, err)
	stored := result.Gaps[0]

	f.store.failWrites = true
	result, err = f.ws.Analyze(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotSaved)
	assert.ErrorIs(t, err, errDiskFull)
	require.NotNil(t, result)
	require.Len(t, result.Gaps, 1)
	assert.Zero(t, result.Gaps[0].Id)

	_, err = f.ws.Recommend(ctx, stored.Id)
	assert.ErrorIs(t, err, ErrNotSaved)

	pending := f.ws.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, PendingGaps, pending[0].Kind)
	assert.Equal(t, PendingRecommendations, pending[1].Kind)
	assert.Equal(t, "disk full", pending[0].Err)

	dashboard, err := f.ws.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.Pending)

	saved, err := f.ws.RetryPending(ctx)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Zero(t, saved)
	assert.Len(t, f.ws.Pending(), 2)

	f.store.failWrites = false
	saved, err = f.ws.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.Empty(t, f.ws.Pending())

	gaps, err := f.ws.Gaps(ctx)
	require.NoError(t, err)
	assert.Len(t, gaps, 2)
	_, recs, err := f.ws.Gap(ctx, stored.Id)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestWorkspace_ClearGaps(t *testing.T) {
	f := newFixture(t, gapResponse(gapJSON("Sensor spoofing", "High")), recommendationResponse)
	ctx := context.Background()

	result, err := f.ws.Analyze(ctx, analysis.Request{ResearchText: "text", Domain: "Other"})
	require.NoError(t, err)
	_, err = f.ws.Recommend(ctx, result.Gaps[0].Id)
	require.NoError(t, err)

	require.NoError(t, f.ws.ClearGaps(ctx))

	dashboard, err := f.ws.Dashboard(ctx)
	require.NoError(t, err)
	assert.Zero(t, dashboard.Gaps)
	assert.Zero(t, dashboard.Recommendations)
}

func TestWorkspace_Dashboard(t *testing.T) {
	f := newFixture(t,
		gapResponse(gapJSON("a", "High"), gapJSON("b", "High"), gapJSON("c", "Low")),
		gapResponse(gapJSON("d", "Medium")),
		gapResponse(gapJSON("e", "Low")),
	)
	ctx := context.Background()
	f.upload(t, "robots.md", threeSections)
	f.upload(t, "vehicles.txt", "Vehicles shall yield to pedestrians.")

	for _, domain := range []string{"Medical Devices", "Warehouse Robots", "IoT Devices"} {
		_, err := f.ws.Analyze(ctx, analysis.Request{ResearchText: "findings", Domain: domain})
		require.NoError(t, err)
	}

	d, err := f.ws.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Documents)
	assert.Equal(t, 4, d.Sections)
	assert.Equal(t, 4, d.EmbeddedSections)
	assert.Equal(t, 5, d.Gaps)
	assert.Equal(t, map[core.RiskLevel]int{core.RiskHigh: 2, core.RiskMedium: 1, core.RiskLow: 2}, d.GapsByRisk)

	assert.Equal(t, []DomainRisk{
		{Domain: "IoT Devices", Low: 1},
		{Domain: "Medical Devices", High: 2, Low: 1},
		{Domain: "Warehouse Robots", Medium: 1},
	}, d.RiskMatrix)
	assert.Equal(t, 3, d.RiskMatrix[1].Total())

	require.Len(t, d.RecentGaps, RecentGapCount)
	assert.Equal(t, "e", d.RecentGaps[0].Title)
}

func TestWorkspace_Network(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, "a.txt", "Robots shall stop.")
	f.upload(t, "b.txt", "Vehicles shall yield.")

	network, err := f.ws.Network(ctx)
	require.NoError(t, err)
	assert.Len(t, network.Nodes, 2)
	assert.Equal(t, search.DefaultNetworkThreshold, network.Threshold)
}

func TestWorkspace_ExportImport(t *testing.T) {
	src := newFixture(t, gapResponse(gapJSON("Sensor spoofing", "High")))
	ctx := context.Background()
	src.upload(t, "robots.md", threeSections)
	_, err := src.ws.Analyze(ctx, analysis.Request{ResearchText: "text", Domain: "AI Systems"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	stats, err := src.ws.Export(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 3, stats.Sections)
	assert.Equal(t, 1, stats.Gaps)

	dst := newFixture(t)
	imported, err := dst.ws.Import(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, stats, imported)

	docs, err := dst.ws.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "robots.md", docs[0].Filename)

	_, err = dst.ws.Import(ctx, path)
	assert.ErrorIs(t, err, storage.ErrStoreNotEmpty)
}

func TestWorkspace_Backfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, fmt.Errorf("%w: invalid api key", ai.ErrPermanent)
	}
	report, err := f.ws.Upload(ctx, ingestion.Upload{Filename: "robots.md", Data: []byte(threeSections)})
	require.Error(t, err)
	assert.Equal(t, core.StatusPartial, report.Document.Status)

	f.embedder.EmbedTextsFunc = nil
	backfill, err := f.ws.Backfill(ctx, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, backfill.Embedded)

	doc, _, err := f.ws.Document(ctx, report.Document.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusEmbedded, doc.Status)
}
