package protocol

import (
	"testing"
)

// makeFixedITM builds a complete fixed-size ITM packet.
func makeFixedITM(pt PayloadType, dest, src uint8) []byte {
	b := make([]byte, ITMHeaderSize+FixedITMPayloadSize)
	hdr := ITMHeader(b)
	hdr.SetPayloadType(pt)
	hdr.SetVITM(false)
	hdr.SetDestNode(dest)
	hdr.SetSourceNode(src)
	return b
}

// makeVITM builds a VITM packet with the given payload bytes.
func makeVITM(pt PayloadType, dest, src uint8, payload []byte) []byte {
	b := make([]byte, ITMHeaderSize+len(payload))
	hdr := ITMHeader(b)
	hdr.SetPayloadType(pt)
	hdr.SetVITM(true)
	hdr.SetDestNode(dest)
	hdr.SetSourceNode(src)
	copy(b[ITMHeaderSize:], payload)
	return b
}

func TestITMHeaderFields(t *testing.T) {
	// hop 5, payload type control (2), vitm clear
	b := []byte{5<<4 | 2<<1, 0x42, 0x07, 0x03, 0x09}
	hdr, err := ParseITMHeader(b)
	if err != nil {
		t.Fatalf("ParseITMHeader failed: %v", err)
	}
	if hdr.HopCount() != 5 {
		t.Errorf("Expected hop count 5, got %d", hdr.HopCount())
	}
	if hdr.PayloadType() != PayloadControl {
		t.Errorf("Expected payload type control, got %v", hdr.PayloadType())
	}
	if hdr.IsVITM() {
		t.Error("Expected fixed ITM, got VITM")
	}
	if hdr.DestNode() != 0x42 {
		t.Errorf("Expected dest node 0x42, got 0x%02x", hdr.DestNode())
	}
	if hdr.SourceNode() != 0x07 {
		t.Errorf("Expected source node 0x07, got 0x%02x", hdr.SourceNode())
	}
	if hdr.SAPI() != 0x03 {
		t.Errorf("Expected SAPI 3, got %d", hdr.SAPI())
	}
	if hdr.SoftwareVersion() != 0x09 {
		t.Errorf("Expected software version 9, got %d", hdr.SoftwareVersion())
	}
}

func TestITMHeaderSetters(t *testing.T) {
	b := make([]byte, ITMHeaderSize)
	hdr := ITMHeader(b)
	hdr.SetHopCount(12)
	hdr.SetPayloadType(PayloadVoice)
	hdr.SetVITM(true)
	hdr.SetDestNode(0x33)
	hdr.SetLCN(0xBEEF)

	if hdr.HopCount() != 12 {
		t.Errorf("hop count round trip: got %d", hdr.HopCount())
	}
	if hdr.PayloadType() != PayloadVoice {
		t.Errorf("payload type round trip: got %v", hdr.PayloadType())
	}
	if !hdr.IsVITM() {
		t.Error("vitm bit round trip: got clear")
	}
	if hdr.DestNode() != 0x33 {
		t.Errorf("dest node round trip: got 0x%02x", hdr.DestNode())
	}
	if hdr.LCN() != 0xBEEF {
		t.Errorf("LCN round trip: got 0x%04x", hdr.LCN())
	}

	// Clearing the VITM bit must not disturb the payload type bits.
	hdr.SetVITM(false)
	if hdr.PayloadType() != PayloadVoice {
		t.Errorf("payload type after clearing vitm: got %v", hdr.PayloadType())
	}
}

func TestParseITMHeaderShort(t *testing.T) {
	if _, err := ParseITMHeader([]byte{1, 2, 3, 4}); err == nil {
		t.Fatal("Expected error for 4-byte header")
	}
}

func TestMissionDataClassification(t *testing.T) {
	for pt := PayloadType(0); pt < NumPayloadTypes; pt++ {
		want := pt == 0 || pt == 1 || pt == 3
		if got := pt.IsMissionData(); got != want {
			t.Errorf("payload type %d: IsMissionData = %v, want %v", pt, got, want)
		}
	}
}

func TestValidateITMLength(t *testing.T) {
	if err := ValidateITMLength(makeFixedITM(PayloadVoice, 1, 2)); err != nil {
		t.Errorf("valid fixed ITM rejected: %v", err)
	}
	short := makeFixedITM(PayloadVoice, 1, 2)
	if err := ValidateITMLength(short[:len(short)-1]); err == nil {
		t.Error("fixed ITM with short payload accepted")
	}

	if err := ValidateITMLength(makeVITM(PayloadControl, 1, 2, nil)); err != nil {
		t.Errorf("empty VITM rejected: %v", err)
	}
	if err := ValidateITMLength(makeVITM(PayloadControl, 1, 2, make([]byte, MaxVITMPayloadSize))); err != nil {
		t.Errorf("max VITM rejected: %v", err)
	}
	if err := ValidateITMLength(makeVITM(PayloadControl, 1, 2, make([]byte, MaxVITMPayloadSize+1))); err == nil {
		t.Error("oversized VITM accepted")
	}
}

func TestITEHeader(t *testing.T) {
	b := make([]byte, ITECommonHeaderSize)
	hdr, err := ParseITEHeader(b)
	if err != nil {
		t.Fatalf("ParseITEHeader failed: %v", err)
	}
	if hdr.IsData() {
		t.Error("zeroed header reported as data message")
	}
	hdr.SetData(true)
	hdr.SetSourceNode(0x21)
	if !hdr.IsData() {
		t.Error("data bit round trip: got clear")
	}
	if hdr.SourceNode() != 0x21 {
		t.Errorf("source node round trip: got 0x%02x", hdr.SourceNode())
	}
	if _, err := ParseITEHeader([]byte{1}); err == nil {
		t.Error("Expected error for 1-byte ITE header")
	}
}
