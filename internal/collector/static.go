package collector

import (
	"context"
	"time"

	"TwoDSentinel/internal/model"
)

// StaticSource returns fixed quote values, for local development without network access.
type StaticSource struct {
	Set   string
	Value string
	Err   error // when set, every Fetch fails with it
	Now   func() time.Time
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Fetch(_ context.Context) (model.Snapshot, error) {
	if s.Err != nil {
		return model.Snapshot{}, s.Err
	}
	src := httpSource{now: s.Now}
	if src.now == nil {
		src.now = time.Now
	}
	return src.stamp(s.Set, s.Value)
}
