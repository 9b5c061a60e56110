package policy

import (
	"testing"

	"mia-go/pkg/protocol"
)

func TestParseAlgorithm(t *testing.T) {
	cases := map[string]Algorithm{
		"none":            AlgorithmNone,
		"":                AlgorithmNone,
		"every-n":         AlgorithmEveryN,
		"EveryN":          AlgorithmEveryN,
		"skip-n":          AlgorithmSkipN,
		"random":          AlgorithmRandomOneInN,
		"random-one-in-n": AlgorithmRandomOneInN,
	}
	for in, want := range cases {
		got, err := ParseAlgorithm(in)
		if err != nil {
			t.Errorf("ParseAlgorithm(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseAlgorithm("bogus"); err == nil {
		t.Error("Expected error for unknown algorithm")
	}
}

func TestDropEveryN(t *testing.T) {
	p := NewDropPolicy(1)
	if err := p.Set(protocol.PayloadVoice, AlgorithmEveryN, 3); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, p.Apply(protocol.PayloadVoice))
	}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("every-n pattern %v, want %v", got, want)
		}
	}
	// Other payload types are untouched.
	if p.Apply(protocol.PayloadStatus) {
		t.Error("Unconfigured payload type dropped")
	}
}

func TestDropSkipN(t *testing.T) {
	p := NewDropPolicy(1)
	if err := p.Set(protocol.PayloadStatus, AlgorithmSkipN, 2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, p.Apply(protocol.PayloadStatus))
	}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("skip-n pattern %v, want %v", got, want)
		}
	}
}

func TestDropRandomIntervalOne(t *testing.T) {
	p := NewDropPolicy(42)
	if err := p.Set(protocol.PayloadTest, AlgorithmRandomOneInN, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	// Interval 1 means one-in-one: always dropped.
	for i := 0; i < 10; i++ {
		if !p.Apply(protocol.PayloadTest) {
			t.Fatal("random-one-in-n with interval 1 let a packet through")
		}
	}
}

func TestDropSetValidation(t *testing.T) {
	p := NewDropPolicy(1)
	if err := p.Set(protocol.PayloadVoice, AlgorithmEveryN, 0); err == nil {
		t.Error("Expected error for interval 0")
	}
	if err := p.Set(protocol.NumPayloadTypes, AlgorithmNone, 0); err == nil {
		t.Error("Expected error for out-of-range payload type")
	}
	if err := p.Set(protocol.PayloadVoice, AlgorithmNone, 0); err != nil {
		t.Errorf("None with interval 0 rejected: %v", err)
	}
}

func TestDropReset(t *testing.T) {
	p := NewDropPolicy(1)
	if err := p.Set(protocol.PayloadVoice, AlgorithmEveryN, 1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !p.Apply(protocol.PayloadVoice) {
		t.Fatal("every-n interval 1 did not drop")
	}
	p.Reset()
	if alg, n := p.Entry(protocol.PayloadVoice); alg != AlgorithmNone || n != 0 {
		t.Errorf("Entry after reset: %v/%d", alg, n)
	}
	if p.Apply(protocol.PayloadVoice) {
		t.Error("Dropped after reset")
	}
}

func TestItmDelayLookup(t *testing.T) {
	d := NewItmDelay(2)
	if got := d.Lookup(1, 2); got != 2 {
		t.Errorf("Default lookup = %d, want 2", got)
	}
	d.SetRoute(1, 2, 7)
	if got := d.Lookup(1, 2); got != 7 {
		t.Errorf("Override lookup = %d, want 7", got)
	}
	// The reverse direction keeps the default.
	if got := d.Lookup(2, 1); got != 2 {
		t.Errorf("Reverse lookup = %d, want 2", got)
	}
	d.SetDefault(5)
	if got := d.Lookup(3, 4); got != 5 {
		t.Errorf("New default lookup = %d, want 5", got)
	}
	if got := d.Lookup(1, 2); got != 7 {
		t.Errorf("Override lost on SetDefault: %d", got)
	}

	d.Reset(0)
	if got := d.Lookup(1, 2); got != 0 {
		t.Errorf("Lookup after reset = %d, want 0", got)
	}
	if len(d.Overrides()) != 0 {
		t.Error("Overrides survived reset")
	}
}
