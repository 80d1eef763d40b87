package listing

import "github.com/amishk599/boardfeed/internal/model"

// CrawlState is the mutable state of one crawl. It is created at the start
// of a run and consumed once by Finish.
type CrawlState struct {
	CurrentPage   int
	SeenIDs       map[string]struct{}
	ExpectedTotal int

	accumulated []model.JobStub
	failures    []model.Failure
}

// NewCrawlState returns the state for a crawl starting on page 1.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		CurrentPage: 1,
		SeenIDs:     make(map[string]struct{}),
	}
}

// Add appends stub unless its id was already seen. It reports whether the
// stub was kept.
func (s *CrawlState) Add(stub model.JobStub) bool {
	if _, seen := s.SeenIDs[stub.JobID]; seen {
		return false
	}
	s.SeenIDs[stub.JobID] = struct{}{}
	s.accumulated = append(s.accumulated, stub)
	return true
}

// Record notes a failure that did not stop the crawl.
func (s *CrawlState) Record(f model.Failure) {
	s.failures = append(s.failures, f)
}

// Len is the number of stubs accumulated so far.
func (s *CrawlState) Len() int { return len(s.accumulated) }

// Finish hands over the accumulated stubs and stats. The state is empty
// afterwards.
func (s *CrawlState) Finish() ([]model.JobStub, model.CrawlStats) {
	stubs := s.accumulated
	stats := model.CrawlStats{
		ExpectedTotal: s.ExpectedTotal,
		Pages:         s.CurrentPage,
		Failures:      s.failures,
	}
	s.accumulated, s.failures = nil, nil
	return stubs, stats
}
