package search

import "github.com/poiesic/docsearch/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	CacheHit(results []*core.SearchResult)
	AfterQueryEmbedding(vector []float32)
	LexicalOnlyFallback(err error)
	AfterVectorSearch(results []*core.SearchResult)
	AfterLexicalSearch(results []*core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                            {}
func (n *noopMonitor) CacheHit(_ []*core.SearchResult)           {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)           {}
func (n *noopMonitor) LexicalOnlyFallback(_ error)               {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.SearchResult)  {}
func (n *noopMonitor) AfterLexicalSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)             {}
