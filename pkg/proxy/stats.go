package proxy

import "sync/atomic"

// Stats counts handler outcomes since start.
type Stats struct {
	requests        atomic.Uint64
	hits            atomic.Uint64
	misses          atomic.Uint64
	forwardFailures atomic.Uint64
	writeFailures   atomic.Uint64
	unparsable      atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Requests        uint64 `json:"requests"`
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	ForwardFailures uint64 `json:"forwardFailures"`
	WriteFailures   uint64 `json:"writeFailures"`
	Unparsable      uint64 `json:"unparsable"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:        s.requests.Load(),
		Hits:            s.hits.Load(),
		Misses:          s.misses.Load(),
		ForwardFailures: s.forwardFailures.Load(),
		WriteFailures:   s.writeFailures.Load(),
		Unparsable:      s.unparsable.Load(),
	}
}
