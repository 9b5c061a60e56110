// Package buffers pools the byte slices that carry received datagrams
// from an endpoint's read window to a write queue.
package buffers

import (
	"sync"

	"mia-go/pkg/protocol"
)

const (
	// DatagramBufferSize holds the largest UDP payload an endpoint can
	// receive.
	DatagramBufferSize = protocol.MaxIPPacketSize

	// BatchBufferSize fits a full uplink batch: outer header, count and
	// the maximum sub-packet payload.
	BatchBufferSize = protocol.VMWHeaderSize + protocol.VMWCountSize + protocol.MaxMPLSBatchSize
)

// BufferPool hands out fixed-size byte slices backed by a sync.Pool.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a pool whose buffers are size bytes long.
func NewBufferPool(size int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
		size: size,
	}
}

// Get retrieves a buffer sliced to the pool's full size.
func (p *BufferPool) Get() []byte {
	buf := *(p.pool.Get().(*[]byte))
	if cap(buf) < p.size {
		buf = make([]byte, p.size)
	}
	return buf[:p.size]
}

// Put returns a buffer to the pool. Undersized buffers are discarded.
func (p *BufferPool) Put(buf []byte) {
	if buf == nil || cap(buf) < p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

var (
	// DatagramBufferPool backs every endpoint read loop.
	DatagramBufferPool = NewBufferPool(DatagramBufferSize)
)
