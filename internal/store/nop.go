package store

import (
	"time"

	"github.com/amishk599/boardfeed/internal/model"
)

// NopStore is a no-op store used in dry-run mode. Nothing is recorded and
// every run gets id 0.
type NopStore struct{}

var _ model.RunStore = (*NopStore)(nil)

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) SaveRun(model.Report, []model.EnrichedJob) (int64, error) {
	return 0, nil
}

func (s *NopStore) Cleanup(olderThan time.Duration) error { return nil }
