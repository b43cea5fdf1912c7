package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// EventPublisher fans monitor events out to live viewers. Publishing is
// best effort and never fails the operation that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.MonitorEvent)
}

// RedisEventPublisher publishes events on the per-schedule and global monitor channels.
type RedisEventPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisEventPublisher creates a new RedisEventPublisher.
func NewRedisEventPublisher(rdb *redis.Client, log zerolog.Logger) *RedisEventPublisher {
	return &RedisEventPublisher{
		rdb: rdb,
		log: log.With().Str("component", "monitor_events").Logger(),
	}
}

// Publish implements EventPublisher.
func (p *RedisEventPublisher) Publish(ctx context.Context, ev model.MonitorEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Str("type", ev.Type).Msg("Failed to encode monitor event")
		return
	}

	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.ScheduleMonitorChannel(ev.ScheduleID), b)
	pipe.Publish(ctx, config.CacheKey.AllMonitorChannel(), b)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn().Err(err).Str("type", ev.Type).Int64("schedule_id", ev.ScheduleID).Msg("Failed to publish monitor event")
	}
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, model.MonitorEvent) {}
