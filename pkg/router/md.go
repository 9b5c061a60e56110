package router

import (
	"net"

	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/kframe"
	"mia-go/pkg/policy"
	"mia-go/pkg/protocol"
	"mia-go/pkg/stats"
)

// MDEndpoint exchanges bare ITMs with the mission-data sink. Downlink
// ITMs may be deferred a per-route number of frames; the deferred map is
// drained on every SOKF tick.
type MDEndpoint struct {
	*endpoint
	router   *Router
	counters *stats.Counters
	delays   *policy.ItmDelay
	nodeID   uint8

	frame   uint64
	delayed kframe.DelayQueue[[]byte]
}

func newMDEndpoint(listen string, remote *net.UDPAddr, exec *executor.Executor, log zerolog.Logger, r *Router, counters *stats.Counters, delays *policy.ItmDelay, nodeID uint8) (*MDEndpoint, error) {
	base, err := newEndpoint("md", listen, remote, exec, log)
	if err != nil {
		return nil, err
	}
	m := &MDEndpoint{
		endpoint: base,
		router:   r,
		counters: counters,
		delays:   delays,
		nodeID:   nodeID,
	}
	base.handle = m.handleRead
	return m, nil
}

func (m *MDEndpoint) handleRead(buf []byte) {
	if len(buf) < protocol.ITMHeaderSize {
		m.counters.DroppedMalformed.Add(1)
		m.log.Warn().Int("size", len(buf)).Msg("MD packet too short for ITM header")
		return
	}
	if err := protocol.ValidateITMLength(buf); err != nil {
		m.counters.DroppedMalformed.Add(1)
		m.log.Warn().Err(err).Msg("MD packet size invalid")
		return
	}
	itm := protocol.ITMHeader(buf)
	if !itm.PayloadType().IsMissionData() {
		m.counters.DroppedMalformed.Add(1)
		m.log.Warn().Stringer("payload_type", itm.PayloadType()).Msg("MD packet is not mission data")
		return
	}
	// Mission-data headers carry no source node; the configured local
	// node id stands in.
	m.router.routeUplinkITM(buf, m.nodeID, itm.DestNode())
}

// SendDownlinkITM queues or defers a bare ITM toward the sink. Executor
// thread only. The buffer must be owned by the caller; it is consumed.
func (m *MDEndpoint) SendDownlinkITM(buf []byte) {
	itm := protocol.ITMHeader(buf)
	d := m.delays.Lookup(m.nodeID, itm.DestNode())
	if d == 0 {
		m.enqueue(buf)
		return
	}
	m.delayed.Insert(m.frame+uint64(d), buf)
}

// OnSokf advances the endpoint frame counter and releases due packets.
// Executor thread only.
func (m *MDEndpoint) OnSokf() {
	m.frame++
	m.delayed.DrainDue(m.frame, m.enqueue)
}

func (m *MDEndpoint) enqueue(buf []byte) {
	m.send(buf, true)
	m.counters.PacketsToMD.Add(1)
}
