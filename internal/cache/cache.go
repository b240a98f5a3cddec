// Package cache provides the TTL cache cell shared by the content repositories
// and the guide coordinator.
package cache

import (
	"time"
)

// Entry holds one cached value together with its creation time and TTL.
type Entry[T any] struct {
	Data      T
	CreatedAt time.Time
	TTL       time.Duration
}

// NewEntry creates an entry stamped with the current time.
func NewEntry[T any](data T, ttl time.Duration) *Entry[T] {
	return &Entry[T]{Data: data, CreatedAt: time.Now(), TTL: ttl}
}

// ExpiredAt reports whether the entry is stale when observed at the given
// time. An entry that has lived exactly its TTL is already stale.
func (e *Entry[T]) ExpiredAt(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Expired reports whether the entry is stale now.
func (e *Entry[T]) Expired() bool {
	return e.ExpiredAt(time.Now())
}
