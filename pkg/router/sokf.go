package router

import (
	"github.com/rs/zerolog"

	"mia-go/pkg/executor"
	"mia-go/pkg/kframe"
	"mia-go/pkg/protocol"
	"mia-go/pkg/stats"
)

// sokfState names the synchronization states of the timing listener.
type sokfState uint8

const (
	sokfSynchronizing sokfState = iota
	sokfSynchronized
)

// SokfEndpoint listens for the 12-byte start-of-K-frame datagrams that
// pace the adapter. Each valid message advances the frame clock and fans
// out to the registered tick callback.
type SokfEndpoint struct {
	*endpoint
	clock    *kframe.Clock
	counters *stats.Counters
	onTick   func()

	state sokfState
	prev  uint32
}

func newSokfEndpoint(listen string, exec *executor.Executor, log zerolog.Logger, clock *kframe.Clock, counters *stats.Counters, onTick func()) (*SokfEndpoint, error) {
	base, err := newEndpoint("sokf", listen, nil, exec, log)
	if err != nil {
		return nil, err
	}
	s := &SokfEndpoint{
		endpoint: base,
		clock:    clock,
		counters: counters,
		onTick:   onTick,
		state:    sokfSynchronizing,
	}
	base.handle = s.handleRead
	return s, nil
}

func (s *SokfEndpoint) handleRead(buf []byte) {
	if len(buf) != protocol.SokfMsgSize {
		s.log.Warn().Int("size", len(buf)).Msg("ignoring short SOKF datagram")
		return
	}
	var msg protocol.SokfMessage
	if err := msg.UnmarshalBinary(buf); err != nil {
		s.log.Warn().Err(err).Msg("ignoring unreadable SOKF datagram")
		return
	}
	if msg.MsgID != protocol.SokfMsgID {
		s.log.WithLevel(zerolog.FatalLevel).Uint32("msg_id", msg.MsgID).Msg("SOKF message id mismatch")
		s.close()
		return
	}
	if msg.MsgLen != protocol.SokfMsgSize {
		s.log.WithLevel(zerolog.FatalLevel).Uint32("msg_len", msg.MsgLen).Msg("SOKF message length mismatch")
		s.close()
		return
	}
	if msg.KFrameOffset > protocol.MaxKFrameOffset {
		s.log.WithLevel(zerolog.FatalLevel).Uint32("offset", msg.KFrameOffset).Msg("SOKF offset out of range")
		s.close()
		return
	}

	switch s.state {
	case sokfSynchronizing:
		s.state = sokfSynchronized
	case sokfSynchronized:
		elapsed := s.elapsedFrom(msg.KFrameOffset)
		if elapsed > 1 {
			s.counters.TotalSokfMissed.Add(uint64(elapsed - 1))
			s.log.Warn().Uint32("missed", elapsed-1).Uint32("offset", msg.KFrameOffset).Msg("missed SOKF frames")
		}
	}
	s.prev = msg.KFrameOffset

	s.clock.Advance()
	if s.onTick != nil {
		s.onTick()
	}
}

func (s *SokfEndpoint) elapsedFrom(offset uint32) uint32 {
	if offset > s.prev {
		return offset - s.prev
	}
	return (protocol.NumKFrameOffsets - s.prev) + offset
}
