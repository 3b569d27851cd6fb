package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/clinicore/scheduling/pkg/common/logger"
	"github.com/clinicore/scheduling/pkg/common/models"
	"github.com/clinicore/scheduling/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

const reportVersionKey = "reports:ver"

// ReportCache memoizes report payloads in redis under generation-versioned
// keys. Invalidate bumps the generation, stranding old keys until their TTL
// expires. A nil cache, or one without a client, disables memoization; every
// redis failure degrades to a miss.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

func (c *ReportCache) enabled() bool {
	return c != nil && c.client != nil
}

func (c *ReportCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.client.Incr(ctx, reportVersionKey).Err(); err != nil {
		logger.Log.WithError(err).Warn("Failed to bump report cache version")
	}
}

func (c *ReportCache) key(ctx context.Context, name string) string {
	var version int64
	if raw, err := c.client.Get(ctx, reportVersionKey).Result(); err == nil {
		if v, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			version = v
		}
	}
	return fmt.Sprintf("reports:v%d:%s", version, name)
}

func (c *ReportCache) lookup(ctx context.Context, name string, dest interface{}) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.client.Get(ctx, c.key(ctx, name)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.IncReportCacheMiss()
		return false
	}
	if err != nil {
		logger.Log.WithError(err).Warn("Report cache read failed")
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false
	}
	metrics.IncReportCacheHit()
	return true
}

func (c *ReportCache) store(ctx context.Context, name string, value interface{}) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ctx, name), data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("Report cache write failed")
	}
}

// ReportingService serves the read-side reports. Results are cached until
// the next write invalidates them.
type ReportingService struct {
	store Store
	cache *ReportCache
}

func NewReportingService(store Store, cache *ReportCache) *ReportingService {
	return &ReportingService{store: store, cache: cache}
}

// AppointmentsPerDoctor counts non-cancelled appointments for every doctor,
// including doctors with none, busiest first with ties broken by name.
func (s *ReportingService) AppointmentsPerDoctor(ctx context.Context) ([]models.DoctorAppointmentCount, error) {
	var rows []models.DoctorAppointmentCount
	if s.cache.lookup(ctx, "doctors", &rows) {
		return rows, nil
	}
	rows, err := s.store.AppointmentsPerDoctor(ctx)
	if err != nil {
		return nil, StorageError{Op: "appointments per doctor", Err: err}
	}
	s.cache.store(ctx, "doctors", rows)
	return rows, nil
}

// RoomUtilization counts non-cancelled appointments per room on the given
// calendar date, every room included, ordered by room number.
func (s *ReportingService) RoomUtilization(ctx context.Context, rawDate string) ([]models.RoomUtilizationRow, error) {
	date, err := CanonicalDate(rawDate)
	if err != nil {
		return nil, ValidationError{Field: "date", Reason: err.Error()}
	}
	cacheKey := "rooms:" + date
	var rows []models.RoomUtilizationRow
	if s.cache.lookup(ctx, cacheKey, &rows) {
		return rows, nil
	}
	rows, err = s.store.RoomUtilization(ctx, date)
	if err != nil {
		return nil, StorageError{Op: "room utilization", Err: err}
	}
	s.cache.store(ctx, cacheKey, rows)
	return rows, nil
}

func (s *ReportingService) Counts(ctx context.Context) (models.EntityCounts, error) {
	var counts models.EntityCounts
	if s.cache.lookup(ctx, "counts", &counts) {
		return counts, nil
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return models.EntityCounts{}, StorageError{Op: "entity counts", Err: err}
	}
	s.cache.store(ctx, "counts", counts)
	return counts, nil
}

// TopRoomLoads lists the ten busiest rooms across all dates.
func (s *ReportingService) TopRoomLoads(ctx context.Context) ([]models.RoomLoad, error) {
	var rows []models.RoomLoad
	if s.cache.lookup(ctx, "top-rooms", &rows) {
		return rows, nil
	}
	rows, err := s.store.TopRoomLoads(ctx, 10)
	if err != nil {
		return nil, StorageError{Op: "top room loads", Err: err}
	}
	s.cache.store(ctx, "top-rooms", rows)
	return rows, nil
}
