package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// BankPayloadKey returns the cache key for the student-facing question payload of a bank.
// The payload never carries correct options or explanations.
func (r *CacheKeyStruct) BankPayloadKey(bankID int64) string {
	return fmt.Sprintf("bank:%d:payload", bankID)
}

// ScheduleMonitorChannel returns the Redis PubSub channel name for a schedule's live monitor.
func (r *CacheKeyStruct) ScheduleMonitorChannel(scheduleID int64) string {
	return fmt.Sprintf("schedule:%d:monitor", scheduleID)
}

// AllMonitorChannel is the channel every monitor event is mirrored to,
// for admins watching all schedules at once.
func (r *CacheKeyStruct) AllMonitorChannel() string {
	return "schedule:all:monitor"
}

var CacheKey = NewCacheKeyStruct()
