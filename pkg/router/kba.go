package router

import (
	"net"

	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/stats"
)

// KBAEndpoint relays opaque MPLS batches between the key-band adapter
// and VMW. Content is never inspected in either direction.
type KBAEndpoint struct {
	*endpoint
	router   *Router
	counters *stats.Counters
}

func newKBAEndpoint(listen string, remote *net.UDPAddr, exec *executor.Executor, log zerolog.Logger, r *Router, counters *stats.Counters) (*KBAEndpoint, error) {
	base, err := newEndpoint("kba", listen, remote, exec, log)
	if err != nil {
		return nil, err
	}
	k := &KBAEndpoint{
		endpoint: base,
		router:   r,
		counters: counters,
	}
	base.handle = k.handleRead
	return k, nil
}

func (k *KBAEndpoint) handleRead(buf []byte) {
	if len(buf) == 0 {
		return
	}
	k.router.routeUplinkPassthrough(buf)
}

// SendPassthrough queues a whole downlink batch toward the adapter.
// Executor thread only. The buffer must be owned by the caller.
func (k *KBAEndpoint) SendPassthrough(buf []byte) {
	k.send(buf, true)
	k.counters.DownlinkPassthroughs.Add(1)
}
