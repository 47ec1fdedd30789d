package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

type seriesKey struct {
	deviceID string
	metric   string
}

// MemoryStore is an in-process Store backed by per-series slices. It applies
// RetentionPolicy on every Append so unbounded series can't grow forever.
type MemoryStore struct {
	mu       sync.RWMutex
	series   map[seriesKey][]models.Point
	latest   map[seriesKey]models.Point
	policy   RetentionPolicy
}

// NewMemoryStore creates an empty MemoryStore using the given retention
// policy. A zero-value policy disables pruning.
func NewMemoryStore(policy RetentionPolicy) *MemoryStore {
	return &MemoryStore{
		series: make(map[seriesKey][]models.Point),
		latest: make(map[seriesKey]models.Point),
		policy: policy,
	}
}

func (s *MemoryStore) Append(ctx context.Context, p models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{deviceID: p.DeviceID, metric: p.Metric}
	s.series[key] = append(s.series[key], p)
	s.prune(key)

	if cur, ok := s.latest[key]; !ok || p.Timestamp.After(cur.Timestamp) {
		s.latest[key] = p
	}
	return nil
}

// prune must be called with mu held.
func (s *MemoryStore) prune(key seriesKey) {
	pts := s.series[key]
	if s.policy.MaxAge > 0 {
		cutoff := time.Now().Add(-s.policy.MaxAge)
		idx := 0
		for idx < len(pts) && pts[idx].Timestamp.Before(cutoff) {
			idx++
		}
		if idx > 0 {
			pts = pts[idx:]
		}
	}
	if s.policy.MaxPoints > 0 && len(pts) > s.policy.MaxPoints {
		pts = pts[len(pts)-s.policy.MaxPoints:]
	}
	s.series[key] = pts
}

func (s *MemoryStore) Latest(ctx context.Context, deviceID, metric string) (models.Point, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.latest[seriesKey{deviceID: deviceID, metric: metric}]
	return p, ok, nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, deviceID string) (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		DeviceID: deviceID,
		Values:   make(map[string]models.Point),
		AsOf:     time.Now(),
	}
	for key, p := range s.latest {
		if key.deviceID == deviceID {
			snap.Values[key.metric] = p
		}
	}
	return snap, nil
}

func (s *MemoryStore) History(ctx context.Context, deviceID, metric string, from, to time.Time, limit int) ([]models.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pts := s.series[seriesKey{deviceID: deviceID, metric: metric}]
	out := make([]models.Point, 0, len(pts))
	for _, p := range pts {
		if !from.IsZero() && p.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && p.Timestamp.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
