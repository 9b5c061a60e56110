// Package router implements the adapter's five UDP endpoints and the
// central dispatcher that moves packets between them. Every mutation of
// routing state happens on the executor thread; reader goroutines only
// post closures.
package router

import (
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"mia-go/pkg/buffers"
	"mia-go/pkg/executor"
	"mia-go/pkg/protocol"
)

// writeItem is one queued send: an owned buffer and its destination.
type writeItem struct {
	buf    []byte
	addr   *net.UDPAddr
	pooled bool
}

// endpoint is the base shared by all five UDP endpoints. It owns the
// socket, the single read buffer and the serialized write queue. The
// write queue is touched only from the executor thread; at most one send
// is in flight at any time.
type endpoint struct {
	name   string
	conn   *net.UDPConn
	remote *net.UDPAddr
	exec   *executor.Executor
	log    zerolog.Logger
	closed atomic.Bool

	// handle runs on the executor thread with a window into the read
	// buffer; it must copy anything it keeps.
	handle func(buf []byte)

	queue []writeItem
}

func newEndpoint(name, listen string, remote *net.UDPAddr, exec *executor.Executor, log zerolog.Logger) (*endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp4", listen)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return &endpoint{
		name:   name,
		conn:   conn,
		remote: remote,
		exec:   exec,
		log:    log.With().Str("endpoint", name).Logger(),
	}, nil
}

// startReading launches the reader goroutine. Each datagram is handed to
// the executor thread before the next receive is posted, so handle calls
// never overlap.
func (e *endpoint) startReading() {
	go func() {
		buf := make([]byte, protocol.MaxIPPacketSize)
		for {
			n, _, err := e.conn.ReadFromUDP(buf)
			if err != nil {
				if e.closed.Load() || errors.Is(err, net.ErrClosed) {
					e.log.Debug().Msg("read loop stopped")
					return
				}
				e.log.WithLevel(zerolog.FatalLevel).Err(err).Msg("socket receive failed")
				return
			}
			done := make(chan struct{})
			pkt := buf[:n]
			e.exec.Post(func() {
				e.handle(pkt)
				close(done)
			})
			<-done
		}
	}()
}

// send queues buf for the endpoint's configured remote. Executor thread
// only. A nil remote drops the buffer.
func (e *endpoint) send(buf []byte, pooled bool) {
	e.sendTo(buf, e.remote, pooled)
}

// sendTo queues buf for addr. Executor thread only. A send is initiated
// only when the queue transitions from empty to non-empty.
func (e *endpoint) sendTo(buf []byte, addr *net.UDPAddr, pooled bool) {
	if addr == nil {
		if pooled {
			buffers.DatagramBufferPool.Put(buf)
		}
		return
	}
	e.queue = append(e.queue, writeItem{buf: buf, addr: addr, pooled: pooled})
	if len(e.queue) == 1 {
		e.startWrite()
	}
}

func (e *endpoint) startWrite() {
	it := e.queue[0]
	go func() {
		_, err := e.conn.WriteToUDP(it.buf, it.addr)
		e.exec.Post(func() { e.finishWrite(err) })
	}()
}

func (e *endpoint) finishWrite(err error) {
	it := e.queue[0]
	e.queue = e.queue[1:]
	if it.pooled {
		buffers.DatagramBufferPool.Put(it.buf)
	}
	if err != nil {
		if e.closed.Load() || errors.Is(err, net.ErrClosed) {
			return
		}
		e.log.WithLevel(zerolog.FatalLevel).Err(err).Msg("socket send failed")
		return
	}
	if len(e.queue) > 0 {
		e.startWrite()
	}
}

// queueLen reports the number of queued sends. Executor thread only.
func (e *endpoint) queueLen() int { return len(e.queue) }

// close shuts the socket, unblocking the reader goroutine.
func (e *endpoint) close() {
	if e.closed.CompareAndSwap(false, true) {
		_ = e.conn.Close()
	}
}

// localAddr reports the bound address, useful when the configured listen
// port is 0.
func (e *endpoint) localAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// ownedCopy clones a read-buffer window into a pool buffer sized to the
// window.
func ownedCopy(b []byte) []byte {
	out := buffers.DatagramBufferPool.Get()[:len(b)]
	copy(out, b)
	return out
}
