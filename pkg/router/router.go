package router

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/kframe"
	"mia-go/pkg/policy"
	"mia-go/pkg/protocol"
	"mia-go/pkg/stats"
)

// Params carries everything the router needs at construction. Destination
// addresses are pre-resolved; nil disables sending to that peer.
type Params struct {
	TPNListen  string
	VMWListen  string
	KBAListen  string
	MDListen   string
	SokfListen string

	CPDest  *net.UDPAddr
	DPDest  *net.UDPAddr
	KBADest *net.UDPAddr
	MDDest  *net.UDPAddr
	TPNDest *net.UDPAddr

	HPLNodeID     uint8
	MDNodeID      uint8
	TPNNodeID     uint8
	BypassTPN     map[uint8]bool
	DefaultDelay  uint32
	QOSForITEData uint8
	UDPChecksum   bool
	DropSeed      int64

	Exec     *executor.Executor
	Log      zerolog.Logger
	Counters *stats.Counters
}

// RouteDelay is one per-route delay override in a config change.
type RouteDelay struct {
	SvNode  uint8  `json:"sv_node"`
	SimNode uint8  `json:"sim_node"`
	Delay   uint32 `json:"delay"`
}

// DropRule is one drop-policy entry in a config change.
type DropRule struct {
	PayloadType uint8  `json:"payload_type"`
	Algorithm   string `json:"algorithm"`
	Interval    uint32 `json:"interval"`
}

// ConfigChange is a partial dynamic-configuration update. Nil fields are
// left untouched.
type ConfigChange struct {
	UDPChecksum *bool        `json:"udp_checksum,omitempty"`
	ItmDelay    *uint32      `json:"itm_delay,omitempty"`
	RouteDelay  []RouteDelay `json:"route_delay,omitempty"`
	ToSimDrop   []DropRule   `json:"to_sim_drop,omitempty"`
	ToSvDrop    []DropRule   `json:"to_sv_drop,omitempty"`
}

// Router owns the five endpoints and every piece of routing state. All
// state lives on the executor thread; exported methods post, unexported
// route methods must already be on it.
type Router struct {
	params   Params
	exec     *executor.Executor
	log      zerolog.Logger
	counters *stats.Counters

	clock  *kframe.Clock
	delays *policy.ItmDelay
	toSim  *policy.DropPolicy
	toSv   *policy.DropPolicy

	tpn  *TPNEndpoint
	vmw  *VMWEndpoint
	kba  *KBAEndpoint
	md   *MDEndpoint
	sokf *SokfEndpoint
}

// New builds the router and binds all five sockets. Nothing is read
// until Start.
func New(p Params) (*Router, error) {
	r := &Router{
		params:   p,
		exec:     p.Exec,
		log:      p.Log,
		counters: p.Counters,
		clock:    &kframe.Clock{},
		delays:   policy.NewItmDelay(p.DefaultDelay),
		toSim:    policy.NewDropPolicy(p.DropSeed),
		toSv:     policy.NewDropPolicy(p.DropSeed + 1),
	}

	var err error
	if r.tpn, err = newTPNEndpoint(p.TPNListen, p.TPNDest, p.Exec, p.Log, r, p.Counters, p.TPNNodeID, p.UDPChecksum); err != nil {
		return nil, fmt.Errorf("router: bind TPN: %w", err)
	}
	if r.vmw, err = newVMWEndpoint(p.VMWListen, p.CPDest, p.DPDest, p.Exec, p.Log, r, p.Counters, p.HPLNodeID, r.toSv.Apply); err != nil {
		r.Close()
		return nil, fmt.Errorf("router: bind VMW: %w", err)
	}
	if r.kba, err = newKBAEndpoint(p.KBAListen, p.KBADest, p.Exec, p.Log, r, p.Counters); err != nil {
		r.Close()
		return nil, fmt.Errorf("router: bind KBA: %w", err)
	}
	if r.md, err = newMDEndpoint(p.MDListen, p.MDDest, p.Exec, p.Log, r, p.Counters, r.delays, p.MDNodeID); err != nil {
		r.Close()
		return nil, fmt.Errorf("router: bind MD: %w", err)
	}
	if r.sokf, err = newSokfEndpoint(p.SokfListen, p.Exec, p.Log, r.clock, p.Counters, r.onSokf); err != nil {
		r.Close()
		return nil, fmt.Errorf("router: bind SOKF: %w", err)
	}
	return r, nil
}

// Start begins reading on all endpoints. Safe to call from any thread.
func (r *Router) Start() {
	r.exec.Post(func() {
		r.tpn.startReading()
		r.vmw.startReading()
		r.kba.startReading()
		r.md.startReading()
		r.sokf.startReading()
		r.log.Info().Msg("router started")
	})
}

// Close shuts every bound socket.
func (r *Router) Close() {
	if r.tpn != nil {
		r.tpn.close()
	}
	if r.vmw != nil {
		r.vmw.close()
	}
	if r.kba != nil {
		r.kba.close()
	}
	if r.md != nil {
		r.md.close()
	}
	if r.sokf != nil {
		r.sokf.close()
	}
}

// ApplyConfigDefaults resets every dynamic setting to the values the
// router was constructed with. Safe to call from any thread.
func (r *Router) ApplyConfigDefaults() {
	r.exec.Post(func() {
		r.delays.Reset(r.params.DefaultDelay)
		r.toSim.Reset()
		r.toSv.Reset()
		r.tpn.SetChecksum(r.params.UDPChecksum)
		r.log.Info().Msg("dynamic config reset to defaults")
	})
}

// ApplyConfig applies the present fields of change. Safe to call from
// any thread.
func (r *Router) ApplyConfig(change ConfigChange) {
	r.exec.Post(func() { r.applyConfig(change) })
}

func (r *Router) applyConfig(change ConfigChange) {
	if change.UDPChecksum != nil {
		r.tpn.SetChecksum(*change.UDPChecksum)
		r.log.Info().Bool("udp_checksum", *change.UDPChecksum).Msg("checksum toggled")
	}
	if change.ItmDelay != nil {
		r.delays.SetDefault(*change.ItmDelay)
		r.log.Info().Uint32("frames", *change.ItmDelay).Msg("default route delay set")
	}
	for _, rd := range change.RouteDelay {
		r.delays.SetRoute(rd.SvNode, rd.SimNode, rd.Delay)
		r.log.Info().Uint8("sv", rd.SvNode).Uint8("sim", rd.SimNode).Uint32("frames", rd.Delay).Msg("route delay set")
	}
	r.applyDropRules(r.toSim, "to_sim", change.ToSimDrop)
	r.applyDropRules(r.toSv, "to_sv", change.ToSvDrop)
}

func (r *Router) applyDropRules(p *policy.DropPolicy, family string, rules []DropRule) {
	for _, rule := range rules {
		alg, err := policy.ParseAlgorithm(rule.Algorithm)
		if err != nil {
			r.log.Error().Err(err).Str("family", family).Msg("rejecting drop rule")
			continue
		}
		if err := p.Set(protocol.PayloadType(rule.PayloadType), alg, rule.Interval); err != nil {
			r.log.Error().Err(err).Str("family", family).Msg("rejecting drop rule")
			continue
		}
		r.log.Info().Str("family", family).Uint8("payload_type", rule.PayloadType).
			Stringer("algorithm", alg).Uint32("interval", rule.Interval).Msg("drop rule set")
	}
}

// Delays exposes the route-delay table for display surfaces. Read it
// only from the executor thread.
func (r *Router) Delays() *policy.ItmDelay { return r.delays }

// DropEntries reports the configured entry for pt in both families.
// Executor thread only.
func (r *Router) DropEntries(pt protocol.PayloadType) (simAlg policy.Algorithm, simN uint32, svAlg policy.Algorithm, svN uint32) {
	simAlg, simN = r.toSim.Entry(pt)
	svAlg, svN = r.toSv.Entry(pt)
	return
}

// Frame reports the current K-frame. Executor thread only.
func (r *Router) Frame() uint64 { return r.clock.Current() }

// onSokf runs on every valid timing datagram, after the clock advanced.
func (r *Router) onSokf() {
	r.tpn.OnSokf()
	r.vmw.OnSokf()
	r.md.OnSokf()
}

// routeUplinkPassthrough forwards an opaque KBA batch to the VMW control
// plane. Executor thread only; buf is a transient window.
func (r *Router) routeUplinkPassthrough(buf []byte) {
	if r.vmw.cpDest == nil {
		r.counters.DroppedNoDestination.Add(1)
		return
	}
	r.vmw.SendPassthrough(ownedCopy(buf))
}

// routeUplinkITM wraps a bare ITM in MPLS and schedules it per the
// (src,dst) route delay. Executor thread only; buf is a transient
// window.
func (r *Router) routeUplinkITM(buf []byte, src, dst uint8) {
	pkt, err := protocol.NewUplinkITM(buf, r.params.QOSForITEData)
	if err != nil {
		r.counters.DroppedMalformed.Add(1)
		r.log.Warn().Err(err).Msg("uplink ITM rejected")
		return
	}
	r.vmw.EnqueueUplink(pkt, r.delays.Lookup(src, dst))
}

// routeUplinkMPLS schedules a pre-wrapped MPLS packet per the (src,dst)
// route delay. Executor thread only; buf is a transient window.
func (r *Router) routeUplinkMPLS(buf []byte, src, dst uint8) {
	pkt, err := protocol.NewUplinkMPLS(buf)
	if err != nil {
		r.counters.DroppedMalformed.Add(1)
		r.log.Warn().Err(err).Msg("uplink MPLS packet rejected")
		return
	}
	r.vmw.EnqueueUplink(pkt, r.delays.Lookup(src, dst))
}

// routeDownlinkPassthrough forwards a whole downlink batch to KBA.
// Executor thread only; buf is a transient window.
func (r *Router) routeDownlinkPassthrough(buf []byte) {
	if r.kba.remote == nil {
		r.counters.DroppedNoDestination.Add(1)
		return
	}
	r.kba.SendPassthrough(ownedCopy(buf))
}

// routeDownlinkMPLS dispatches one downlink MPLS sub-packet: bypass
// destinations carrying mission data lose their label and go to MD,
// everything else faces the toSim drop policy and goes intact to TPN.
// Executor thread only; sub is a transient window.
func (r *Router) routeDownlinkMPLS(sub []byte) {
	itm, err := protocol.SubPacketITM(sub)
	if err != nil {
		r.counters.DroppedMalformed.Add(1)
		r.log.Warn().Err(err).Msg("downlink sub-packet rejected")
		return
	}
	pt := itm.PayloadType()
	if r.params.BypassTPN[itm.DestNode()] && pt.IsMissionData() {
		if r.md.remote == nil {
			r.counters.DroppedNoDestination.Add(1)
			return
		}
		r.md.SendDownlinkITM(ownedCopy(sub[protocol.MPLSHeaderSize:]))
		return
	}
	if r.toSim.Apply(pt) {
		r.counters.DroppedByPolicy.Add(1)
		return
	}
	if r.tpn.remote == nil {
		r.counters.DroppedNoDestination.Add(1)
		return
	}
	r.tpn.SendMPLS(ownedCopy(sub))
}
