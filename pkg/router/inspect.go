package router

import (
	"net"
	"sort"

	"mia-go/pkg/protocol"
)

// RouteDelayView is one override row in a RoutesView.
type RouteDelayView struct {
	SvNode  uint8  `json:"sv_node"`
	SimNode uint8  `json:"sim_node"`
	Frames  uint32 `json:"frames"`
}

// DropRuleView is one configured drop entry.
type DropRuleView struct {
	PayloadType uint8  `json:"payload_type"`
	Algorithm   string `json:"algorithm"`
	Interval    uint32 `json:"interval"`
}

// RoutesView is a snapshot of the dynamic routing configuration.
type RoutesView struct {
	Frame        uint64           `json:"frame"`
	DefaultDelay uint32           `json:"default_delay_frames"`
	Overrides    []RouteDelayView `json:"overrides"`
	UDPChecksum  bool             `json:"udp_checksum"`
	ToSimDrop    []DropRuleView   `json:"to_sim_drop"`
	ToSvDrop     []DropRuleView   `json:"to_sv_drop"`
}

// RoutesSnapshot captures the dynamic configuration. Safe to call from
// any thread; it runs on the executor and blocks until done.
func (r *Router) RoutesSnapshot() RoutesView {
	var view RoutesView
	done := make(chan struct{})
	r.exec.Post(func() {
		defer close(done)
		view.Frame = r.clock.Current()
		view.DefaultDelay = r.delays.Default()
		view.UDPChecksum = r.tpn.checksum
		for route, frames := range r.delays.Overrides() {
			view.Overrides = append(view.Overrides, RouteDelayView{
				SvNode:  route.Src,
				SimNode: route.Dst,
				Frames:  frames,
			})
		}
		sort.Slice(view.Overrides, func(i, j int) bool {
			a, b := view.Overrides[i], view.Overrides[j]
			if a.SvNode != b.SvNode {
				return a.SvNode < b.SvNode
			}
			return a.SimNode < b.SimNode
		})
		for pt := protocol.PayloadType(0); pt < protocol.NumPayloadTypes; pt++ {
			if alg, n := r.toSim.Entry(pt); alg != 0 {
				view.ToSimDrop = append(view.ToSimDrop, DropRuleView{
					PayloadType: uint8(pt), Algorithm: alg.String(), Interval: n,
				})
			}
			if alg, n := r.toSv.Entry(pt); alg != 0 {
				view.ToSvDrop = append(view.ToSvDrop, DropRuleView{
					PayloadType: uint8(pt), Algorithm: alg.String(), Interval: n,
				})
			}
		}
	})
	<-done
	return view
}

// EndpointAddrs reports each endpoint's bound listen address, keyed by
// name. Useful for the topology rendering and tests binding port 0.
func (r *Router) EndpointAddrs() map[string]string {
	return map[string]string{
		"tpn":  r.tpn.localAddr().String(),
		"vmw":  r.vmw.localAddr().String(),
		"kba":  r.kba.localAddr().String(),
		"md":   r.md.localAddr().String(),
		"sokf": r.sokf.localAddr().String(),
	}
}

// DestAddrs reports the configured destination addresses; disabled peers
// map to the empty string.
func (r *Router) DestAddrs() map[string]string {
	str := func(a *net.UDPAddr) string {
		if a == nil {
			return ""
		}
		return a.String()
	}
	return map[string]string{
		"cp_vmw": str(r.vmw.cpDest),
		"dp_vmw": str(r.vmw.dpDest),
		"kba":    str(r.kba.remote),
		"md":     str(r.md.remote),
		"tpn":    str(r.tpn.remote),
	}
}
