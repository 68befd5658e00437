package search

import "github.com/poiesic/vecbatch/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(vector core.Vector)
	AfterKnn(hits []core.SearchResult)
	AfterRerank(hits []core.RerankedResult)
	RerankFailed(err error)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                      {}
func (n *noopMonitor) AfterEmbedding(_ core.Vector)        {}
func (n *noopMonitor) AfterKnn(_ []core.SearchResult)      {}
func (n *noopMonitor) AfterRerank(_ []core.RerankedResult) {}
func (n *noopMonitor) RerankFailed(_ error)                {}
func (n *noopMonitor) Finish(_ *Result)                    {}
