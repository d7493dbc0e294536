// Package lock provides keyed mutual exclusion for check-then-act
// sequences: scheduling is serialised per auditorium and seat
// reservation per projection.  The Redis implementation works across
// processes; the local one is used when Redis is not configured.
package lock

import (
	"context"
	"fmt"
)

// Locker acquires an exclusive lock on key, blocking until it is free or
// ctx is done.  The returned function releases the lock and must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AuditoriumKey is the lock key guarding the schedule of one auditorium.
func AuditoriumKey(auditoriumID int) string {
	return fmt.Sprintf("auditorium:%d", auditoriumID)
}

// ProjectionKey is the lock key guarding seat sales for one projection.
func ProjectionKey(projectionID fmt.Stringer) string {
	return "projection:" + projectionID.String()
}
