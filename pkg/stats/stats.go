// Package stats exposes the adapter's monotonic counters. Counters are
// plain atomics so every goroutine may increment them; snapshots are taken
// for the management socket and the HTTP API.
package stats

import "sync/atomic"

// Counters is the process-wide counter set.
type Counters struct {
	TotalMplsPacketsConverted        atomic.Uint64
	TotalInvalidMplsPacketsDiscarded atomic.Uint64
	TotalSokfMissed                  atomic.Uint64

	DownlinkBatchesReceived atomic.Uint64
	DownlinkPassthroughs    atomic.Uint64
	UplinkBatchesSent       atomic.Uint64
	UplinkPassthroughs      atomic.Uint64
	PacketsToTPN            atomic.Uint64
	PacketsToMD             atomic.Uint64
	DroppedByPolicy         atomic.Uint64
	DroppedMalformed        atomic.Uint64
	DroppedNoDestination    atomic.Uint64
}

// Snapshot is a plain copy of the counters, JSON-ready.
type Snapshot struct {
	TotalMplsPacketsConverted        uint64 `json:"total_mpls_packets_converted"`
	TotalInvalidMplsPacketsDiscarded uint64 `json:"total_invalid_mpls_packets_discarded"`
	TotalSokfMissed                  uint64 `json:"total_sokf_missed"`
	DownlinkBatchesReceived          uint64 `json:"downlink_batches_received"`
	DownlinkPassthroughs             uint64 `json:"downlink_passthroughs"`
	UplinkBatchesSent                uint64 `json:"uplink_batches_sent"`
	UplinkPassthroughs               uint64 `json:"uplink_passthroughs"`
	PacketsToTPN                     uint64 `json:"packets_to_tpn"`
	PacketsToMD                      uint64 `json:"packets_to_md"`
	DroppedByPolicy                  uint64 `json:"dropped_by_policy"`
	DroppedMalformed                 uint64 `json:"dropped_malformed"`
	DroppedNoDestination             uint64 `json:"dropped_no_destination"`
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		TotalMplsPacketsConverted:        c.TotalMplsPacketsConverted.Load(),
		TotalInvalidMplsPacketsDiscarded: c.TotalInvalidMplsPacketsDiscarded.Load(),
		TotalSokfMissed:                  c.TotalSokfMissed.Load(),
		DownlinkBatchesReceived:          c.DownlinkBatchesReceived.Load(),
		DownlinkPassthroughs:             c.DownlinkPassthroughs.Load(),
		UplinkBatchesSent:                c.UplinkBatchesSent.Load(),
		UplinkPassthroughs:               c.UplinkPassthroughs.Load(),
		PacketsToTPN:                     c.PacketsToTPN.Load(),
		PacketsToMD:                      c.PacketsToMD.Load(),
		DroppedByPolicy:                  c.DroppedByPolicy.Load(),
		DroppedMalformed:                 c.DroppedMalformed.Load(),
		DroppedNoDestination:             c.DroppedNoDestination.Load(),
	}
}
