package router

import (
	"net"

	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/kframe"
	"mia-go/pkg/protocol"
	"mia-go/pkg/stats"
)

// VMWEndpoint talks to the vehicle wire gateway. Downlink batches are
// parsed into MPLS sub-packets and dispatched through the router; uplink
// packets accumulate in the builder, deferred per route, and leave as
// framed batches addressed per plane.
type VMWEndpoint struct {
	*endpoint
	router   *Router
	counters *stats.Counters
	hplNode  uint8

	cpDest *net.UDPAddr
	dpDest *net.UDPAddr

	frame   uint64
	delayed kframe.DelayQueue[protocol.UplinkPacket]
	builder *protocol.Builder
}

func newVMWEndpoint(listen string, cpDest, dpDest *net.UDPAddr, exec *executor.Executor, log zerolog.Logger, r *Router, counters *stats.Counters, hplNode uint8, toSvDrop func(protocol.PayloadType) bool) (*VMWEndpoint, error) {
	base, err := newEndpoint("vmw", listen, nil, exec, log)
	if err != nil {
		return nil, err
	}
	v := &VMWEndpoint{
		endpoint: base,
		router:   r,
		counters: counters,
		hplNode:  hplNode,
		cpDest:   cpDest,
		dpDest:   dpDest,
	}
	v.builder = protocol.NewBuilder(v.emitBatch, func(pt protocol.PayloadType) bool {
		if !toSvDrop(pt) {
			return false
		}
		counters.DroppedByPolicy.Add(1)
		return true
	})
	base.handle = v.handleRead
	return v, nil
}

func (v *VMWEndpoint) handleRead(buf []byte) {
	res, err := protocol.ParseBatch(buf)
	if err != nil {
		v.counters.TotalInvalidMplsPacketsDiscarded.Add(1)
		v.log.Error().Err(err).Int("size", len(buf)).Msg("discarding invalid VMW batch")
		return
	}
	if res.TrailingBytes > 0 {
		v.log.Warn().Int("trailing", res.TrailingBytes).Msg("VMW batch has trailing bytes")
	}
	v.counters.DownlinkBatchesReceived.Add(1)

	passthrough := false
	for _, sub := range res.Sub {
		itm, err := protocol.SubPacketITM(sub)
		if err != nil {
			v.counters.DroppedMalformed.Add(1)
			continue
		}
		if itm.DestNode() == v.hplNode {
			passthrough = true
			continue
		}
		v.router.routeDownlinkMPLS(sub)
	}
	v.counters.TotalMplsPacketsConverted.Add(1)
	if passthrough {
		v.router.routeDownlinkPassthrough(buf)
	}
}

// EnqueueUplink defers p by delay frames, or hands it straight to the
// builder when the delay is zero. Executor thread only.
func (v *VMWEndpoint) EnqueueUplink(p protocol.UplinkPacket, delay uint32) {
	if delay == 0 {
		v.builder.AddPacket(p)
		return
	}
	v.delayed.Insert(v.frame+uint64(delay), p)
}

// SendPassthrough queues an uplink batch verbatim toward the control
// plane. Executor thread only. The buffer must be owned by the caller.
func (v *VMWEndpoint) SendPassthrough(buf []byte) {
	v.sendTo(buf, v.cpDest, true)
	v.counters.UplinkPassthroughs.Add(1)
}

// OnSokf advances the endpoint frame counter, feeds due packets through
// the builder and flushes whatever accumulated this tick. Executor
// thread only.
func (v *VMWEndpoint) OnSokf() {
	v.frame++
	v.delayed.DrainDue(v.frame, v.builder.AddPacket)
	v.builder.Finalize()
}

func (v *VMWEndpoint) emitBatch(b protocol.Batch) {
	addr := v.cpDest
	if b.Plane == protocol.PlaneDP {
		addr = v.dpDest
	}
	if addr == nil {
		v.counters.DroppedNoDestination.Add(uint64(b.NumPackets))
		return
	}
	v.sendTo(b.Bytes, addr, false)
	v.counters.UplinkBatchesSent.Add(1)
}
