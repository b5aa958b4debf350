package campaigns

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// SnapshotStore persists the most recent campaign snapshot
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, list []Campaign, takenAt time.Time) error
	LoadSnapshot(ctx context.Context) ([]Campaign, time.Time, error)
}

type freshKey struct{}

// RequireFresh marks ctx so that caching sources return upstream failures instead of
// serving a stored snapshot. Callers that act on the data use it.
func RequireFresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

// FreshRequired reports whether ctx was marked by RequireFresh
func FreshRequired(ctx context.Context) bool {
	fresh, _ := ctx.Value(freshKey{}).(bool)
	return fresh
}

// CachedSource serves campaigns from an upstream source and falls back to the last
// stored snapshot when the upstream call fails
type CachedSource struct {
	upstream MetricsSource
	store    SnapshotStore
	maxAge   time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCachedSource wraps upstream. maxAge <= 0 accepts snapshots of any age.
func NewCachedSource(upstream MetricsSource, store SnapshotStore, maxAge time.Duration, logger *logrus.Logger) *CachedSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &CachedSource{
		upstream: upstream,
		store:    store,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// ListCampaigns implements MetricsSource
func (s *CachedSource) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	list, err := s.upstream.ListCampaigns(ctx)
	if err == nil {
		if saveErr := s.store.SaveSnapshot(ctx, list, s.now()); saveErr != nil {
			s.logger.WithError(saveErr).Warn("Failed to cache campaign snapshot")
		}
		return list, nil
	}
	if FreshRequired(ctx) {
		return nil, fmt.Errorf("list campaigns: %w (cached snapshot not used for live data)", err)
	}

	cached, takenAt, loadErr := s.store.LoadSnapshot(ctx)
	if loadErr != nil {
		return nil, fmt.Errorf("list campaigns: %w (cache unavailable: %v)", err, loadErr)
	}
	if takenAt.IsZero() {
		return nil, fmt.Errorf("list campaigns: %w (no cached snapshot)", err)
	}
	age := s.now().Sub(takenAt)
	if s.maxAge > 0 && age > s.maxAge {
		return nil, fmt.Errorf("list campaigns: %w (cached snapshot is %s old)", err, age.Round(time.Second))
	}

	s.logger.WithError(err).WithFields(logrus.Fields{
		"snapshot_age": age.Round(time.Second).String(),
		"campaigns":    len(cached),
	}).Warn("Metrics source unavailable, serving cached campaign snapshot")
	return cached, nil
}
