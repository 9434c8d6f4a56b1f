// Package sink holds frame consumers: the latest-frame snapshot store
// behind the HTTP snapshot endpoint, and the RTP forwarder.
package sink

import (
	"sync"
	"time"
)

// Snapshot is one retained frame.
type Snapshot struct {
	Device      string
	Data        []byte
	FrameNumber uint64
	PTS         uint32
	CapturedAt  time.Time
}

// SnapshotStore retains a copy of the most recent frame per device.
// Frame buffers are pool-owned and recycled right after the capture
// callback returns, so the store must copy, never alias.
type SnapshotStore struct {
	mu     sync.RWMutex
	latest map[string]*Snapshot
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{latest: make(map[string]*Snapshot)}
}

// Store copies data and retains it as the device's latest frame.
func (s *SnapshotStore) Store(device string, data []byte, frameNumber uint64, pts uint32) {
	snap := &Snapshot{
		Device:      device,
		Data:        append([]byte(nil), data...),
		FrameNumber: frameNumber,
		PTS:         pts,
		CapturedAt:  time.Now(),
	}
	s.mu.Lock()
	s.latest[device] = snap
	s.mu.Unlock()
}

// Latest returns the retained frame for a device, or nil. The returned
// snapshot is immutable once stored; callers must not modify Data.
func (s *SnapshotStore) Latest(device string) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest[device]
}

// Devices lists devices with a retained frame.
func (s *SnapshotStore) Devices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.latest))
	for device := range s.latest {
		out = append(out, device)
	}
	return out
}

// Forget drops the retained frame for a device.
func (s *SnapshotStore) Forget(device string) {
	s.mu.Lock()
	delete(s.latest, device)
	s.mu.Unlock()
}
