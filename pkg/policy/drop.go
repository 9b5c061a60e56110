// Package policy holds the configurable packet-treatment tables owned by
// the router thread: the stochastic/deterministic drop policies and the
// per-route frame-delay table.
package policy

import (
	"fmt"
	"math/rand"
	"strings"

	"mia-go/pkg/protocol"
)

// Algorithm enumerates the recognized drop algorithms.
type Algorithm uint8

const (
	AlgorithmNone Algorithm = iota
	AlgorithmEveryN
	AlgorithmSkipN
	AlgorithmRandomOneInN
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmEveryN:
		return "every-n"
	case AlgorithmSkipN:
		return "skip-n"
	case AlgorithmRandomOneInN:
		return "random-one-in-n"
	}
	return "unknown"
}

// ParseAlgorithm maps a config/management token to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return AlgorithmNone, nil
	case "every-n", "everyn":
		return AlgorithmEveryN, nil
	case "skip-n", "skipn":
		return AlgorithmSkipN, nil
	case "random-one-in-n", "random":
		return AlgorithmRandomOneInN, nil
	}
	return AlgorithmNone, fmt.Errorf("policy: unknown drop algorithm %q", s)
}

type dropEntry struct {
	alg      Algorithm
	interval uint32
	counter  uint32
}

// DropPolicy maps payload type to a drop algorithm with an interval
// parameter. Two instances exist: one for the toSim direction and one for
// the toSv direction. Not safe for concurrent use.
type DropPolicy struct {
	entries [protocol.NumPayloadTypes]dropEntry
	rng     *rand.Rand
}

// NewDropPolicy creates a policy with every payload type set to None.
func NewDropPolicy(seed int64) *DropPolicy {
	return &DropPolicy{rng: rand.New(rand.NewSource(seed))}
}

// Set configures the entry for pt and resets its counter.
func (p *DropPolicy) Set(pt protocol.PayloadType, alg Algorithm, interval uint32) error {
	if pt >= protocol.NumPayloadTypes {
		return fmt.Errorf("policy: payload type %d out of range", pt)
	}
	if alg != AlgorithmNone && interval == 0 {
		return fmt.Errorf("policy: %s needs interval >= 1", alg)
	}
	p.entries[pt] = dropEntry{alg: alg, interval: interval}
	return nil
}

// Reset returns every entry to None.
func (p *DropPolicy) Reset() {
	p.entries = [protocol.NumPayloadTypes]dropEntry{}
}

// Apply reports whether the packet of the given payload type must be
// dropped, advancing the entry's counter for deterministic algorithms.
func (p *DropPolicy) Apply(pt protocol.PayloadType) bool {
	if pt >= protocol.NumPayloadTypes {
		return false
	}
	e := &p.entries[pt]
	switch e.alg {
	case AlgorithmEveryN:
		e.counter++
		if e.counter >= e.interval {
			e.counter = 0
			return true
		}
		return false
	case AlgorithmSkipN:
		e.counter++
		if e.counter > e.interval {
			e.counter = 0
			return true
		}
		return false
	case AlgorithmRandomOneInN:
		return p.rng.Intn(int(e.interval)) == 0
	}
	return false
}

// Entry reports the configured algorithm and interval for pt.
func (p *DropPolicy) Entry(pt protocol.PayloadType) (Algorithm, uint32) {
	if pt >= protocol.NumPayloadTypes {
		return AlgorithmNone, 0
	}
	return p.entries[pt].alg, p.entries[pt].interval
}
