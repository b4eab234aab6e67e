package models

import (
	"sync"
	"time"
)

var (
	localIDMu   sync.Mutex
	lastLocalID int64
)

// NextLocalID returns a device-local entry identifier: milliseconds since
// epoch, bumped past the previous value when two calls land in the same
// millisecond. Monotonic for the lifetime of the process; across restarts
// the clock keeps it increasing in practice.
func NextLocalID() int64 {
	localIDMu.Lock()
	defer localIDMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= lastLocalID {
		id = lastLocalID + 1
	}
	lastLocalID = id
	return id
}
