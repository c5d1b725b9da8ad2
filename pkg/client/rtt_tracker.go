package client

import (
	"encoding/binary"
	"sync"
	"time"
)

// rttWindow bounds how many recent round-trip samples feed the rolling
// average, mirroring the teacher's client/network/manager.go keeping the
// last 10 RTTs.
const rttWindow = 10

// rttTracker maintains an outlier-trimmed rolling average round-trip time
// from ping/pong pairs (spec.md §6 RTTQuery/RTTResponse), per DESIGN.md's
// decision to drop samples more than 2x the current rolling average
// before folding them in, mirroring the teacher's removeOutlierRTTs
// threshold in client/network/manager.go.
type rttTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	avg     time.Duration
}

func newRTTTracker() *rttTracker {
	return &rttTracker{}
}

// newPing encodes the current send time so handlePong can compute the
// round trip without a separate sequence map.
func (t *rttTracker) newPing() []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(time.Now().UnixNano()))
	return payload
}

// handlePong decodes the timestamp a pong echoes back unchanged and
// folds the resulting round trip into the rolling average, dropping it
// first if it's more than 2x the current average.
func (t *rttTracker) handlePong(payload []byte) {
	if len(payload) != 8 {
		return
	}
	sent := int64(binary.BigEndian.Uint64(payload))
	rtt := time.Duration(time.Now().UnixNano() - sent)
	if rtt < 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.avg > 0 && rtt > 2*t.avg {
		return
	}

	t.samples = append(t.samples, rtt)
	if len(t.samples) > rttWindow {
		t.samples = t.samples[1:]
	}

	var sum time.Duration
	for _, s := range t.samples {
		sum += s
	}
	t.avg = sum / time.Duration(len(t.samples))
}

// average returns the current outlier-trimmed rolling average round-trip
// time, or 0 if no pong has been paired with a ping yet.
func (t *rttTracker) average() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.avg
}
