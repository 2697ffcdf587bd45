package occupancy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/saaga0h/doorpi/pkg/config"
	"github.com/saaga0h/doorpi/pkg/redis"
)

// EventLog is the read side of the door event log
type EventLog interface {
	// EventsBetween returns events with start < timestamp < end, oldest first
	EventsBetween(ctx context.Context, location string, start, end int64) ([]Event, error)

	// LatestAtOrBefore returns the most recent event with timestamp <= t.
	// The boolean is false when no such event exists.
	LatestAtOrBefore(ctx context.Context, location string, t int64) (Event, bool, error)
}

// Estimation is the result of a Service estimate together with the inputs
// that shaped it.
type Estimation struct {
	Location       string `json:"location"`
	Start          int64  `json:"start_ns"`
	End            int64  `json:"end_ns"`
	SlotWidth      int64  `json:"slot_width_ns"`
	BoundaryClosed bool   `json:"boundary_closed"`
	Now            int64  `json:"now_ns"`
	Policy         string `json:"policy"`
	Slots          []Slot `json:"slots"`
}

// Service answers estimate requests against the event log
type Service struct {
	log       EventLog
	cache     redis.Client
	cacheTTL  time.Duration
	maxSlots  int
	maxWindow time.Duration
	now       func() time.Time
	logger    *slog.Logger
	duration  prometheus.Histogram
}

// NewService creates a service reading from eventLog. cache may be nil to
// disable result caching.
func NewService(eventLog EventLog, cache redis.Client, cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		log:       eventLog,
		cache:     cache,
		cacheTTL:  time.Duration(cfg.EstimateCacheTTLSec) * time.Second,
		maxSlots:  cfg.MaxSlots,
		maxWindow: time.Duration(cfg.MaxWindowDays) * 24 * time.Hour,
		now:       time.Now,
		logger:    logger,
		duration:  estimateDuration(),
	}
}

// SetClock overrides the clock used to capture "now"
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Estimate returns per-slot open probabilities for location between start
// and end. Both bounds are truncated to whole seconds.
func (s *Service) Estimate(ctx context.Context, location string, start, end time.Time, slots int, policy FuturePolicy) (*Estimation, error) {
	startNs := start.Truncate(time.Second).UnixNano()
	endNs := end.Truncate(time.Second).UnixNano()
	w := Window{Start: startNs, End: endNs, Slots: slots}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	if s.maxSlots > 0 && slots > s.maxSlots {
		return nil, fmt.Errorf("%w: %d slots exceeds limit of %d", ErrWindowTooLarge, slots, s.maxSlots)
	}
	if s.maxWindow > 0 && time.Duration(endNs-startNs) > s.maxWindow {
		return nil, fmt.Errorf("%w: window of %s exceeds limit of %s",
			ErrWindowTooLarge, time.Duration(endNs-startNs), s.maxWindow)
	}

	now := s.now().UnixNano()

	// Only windows that ended before now have settled future markers
	cacheable := endNs < now
	key := redis.EstimateKey(location, startNs, endNs, slots, policy.String())
	if cacheable {
		if cached, ok := s.readCache(ctx, key); ok {
			return cached, nil
		}
	}

	timer := prometheus.NewTimer(s.duration)
	defer timer.ObserveDuration()

	events, err := s.log.EventsBetween(ctx, location, startNs, endNs)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	// No prior record means closed
	boundaryClosed := true
	prior, found, err := s.log.LatestAtOrBefore(ctx, location, startNs)
	if err != nil {
		return nil, fmt.Errorf("failed to load boundary state: %w", err)
	}
	if found {
		boundaryClosed = prior.Closed
	}

	result, err := Estimate(events, boundaryClosed, w, now, policy)
	if err != nil {
		return nil, err
	}

	est := &Estimation{
		Location:       location,
		Start:          startNs,
		End:            endNs,
		SlotWidth:      w.SlotWidth(),
		BoundaryClosed: boundaryClosed,
		Now:            now,
		Policy:         policy.String(),
		Slots:          result,
	}

	s.logger.Debug("Computed occupancy estimate",
		"location", location,
		"slots", slots,
		"events", len(events),
		"boundary_closed", boundaryClosed)

	if cacheable {
		s.writeCache(ctx, key, est)
	}

	return est, nil
}

func (s *Service) readCache(ctx context.Context, key string) (*Estimation, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var est Estimation
	if err := json.Unmarshal([]byte(raw), &est); err != nil {
		s.logger.Warn("Discarding unreadable cached estimate", "key", key, "error", err)
		return nil, false
	}
	return &est, true
}

func (s *Service) writeCache(ctx context.Context, key string, est *Estimation) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}

	data, err := json.Marshal(est)
	if err != nil {
		s.logger.Warn("Failed to marshal estimate for cache", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache estimate", "key", key, "error", err)
	}
}

var (
	estimateOnce      sync.Once
	estimateHistogram prometheus.Histogram
)

func estimateDuration() prometheus.Histogram {
	estimateOnce.Do(func() {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "doorpi",
			Subsystem: "occupancy",
			Name:      "estimate_duration_seconds",
			Help:      "Time spent loading events and computing an occupancy estimate",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		})
		if err := prometheus.Register(h); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
					h = existing
				}
			}
		}
		estimateHistogram = h
	})
	return estimateHistogram
}
