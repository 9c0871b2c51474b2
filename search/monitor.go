package search

import "github.com/poiesic/stdgap/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(attempts int, dimension int)
	AfterScan(candidates int)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                {}
func (n *noopMonitor) AfterEmbedding(_ int, _ int)   {}
func (n *noopMonitor) AfterScan(_ int)               {}
func (n *noopMonitor) Finish(_ []*core.SearchResult) {}
