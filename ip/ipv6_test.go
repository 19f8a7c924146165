package ip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net/netip"
	"testing"
)

// buildIPv6 constructs a raw IPv6 datagram with the payload-length field
// derived from payload.
func buildIPv6(t *testing.T, src, dst [16]byte, nextHeader uint8, payload []byte) []byte {
	t.Helper()

	pkt := make([]byte, 40+len(payload))
	pkt[0] = 0x60
	binary.BigEndian.PutUint16(pkt[4:6], uint16(len(payload)))
	pkt[6] = nextHeader
	pkt[7] = 64 // hop limit
	copy(pkt[8:24], src[:])
	copy(pkt[24:40], dst[:])
	copy(pkt[40:], payload)
	return pkt
}

func addr16(t *testing.T, s string) [16]byte {
	t.Helper()
	return netip.MustParseAddr(s).As16()
}

func TestDecodeIPv6Basic(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	pkt := buildIPv6(t, addr16(t, "2001:db8::1"), addr16(t, "2001:db8::2"), 17, payload)

	h, err := DecodeIPv6(pkt)
	if err != nil {
		t.Fatalf("DecodeIPv6 failed: %v", err)
	}

	if h.Version() != V6 {
		t.Errorf("Version = %d, want 6", h.Version())
	}
	if h.TrafficClass() != 0 {
		t.Errorf("TrafficClass = %d, want 0", h.TrafficClass())
	}
	if h.FlowLabel() != 0 {
		t.Errorf("FlowLabel = %d, want 0", h.FlowLabel())
	}
	if h.PayloadLength() != 4 {
		t.Errorf("PayloadLength = %d, want 4", h.PayloadLength())
	}
	if h.NextHeader() != UDP {
		t.Errorf("NextHeader = %d, want 17", h.NextHeader())
	}
	if h.HopLimit() != 64 {
		t.Errorf("HopLimit = %d, want 64", h.HopLimit())
	}
	if want := netip.MustParseAddr("2001:db8::1"); h.Source() != want {
		t.Errorf("Source = %v, want %v", h.Source(), want)
	}
	if want := netip.MustParseAddr("2001:db8::2"); h.Destination() != want {
		t.Errorf("Destination = %v, want %v", h.Destination(), want)
	}
	if !bytes.Equal(h.Payload(), payload) {
		t.Errorf("Payload = % x, want % x", h.Payload(), payload)
	}
	if &h.Payload()[0] != &pkt[40] {
		t.Error("payload does not alias the input buffer")
	}
}

func TestDecodeIPv6TrafficClassFlowLabel(t *testing.T) {
	pkt := buildIPv6(t, addr16(t, "2001:db8::1"), addr16(t, "2001:db8::2"), 6, nil)

	// Version 6, traffic class 0xAB, flow label 0xCDE12.
	pkt[0] = 0x6A
	pkt[1] = 0xBC
	pkt[2] = 0xDE
	pkt[3] = 0x12

	h, err := DecodeIPv6(pkt)
	if err != nil {
		t.Fatalf("DecodeIPv6 failed: %v", err)
	}
	if h.TrafficClass() != 0xAB {
		t.Errorf("TrafficClass = %#02x, want 0xab", h.TrafficClass())
	}
	if h.FlowLabel() != 0xCDE12 {
		t.Errorf("FlowLabel = %#05x, want 0xcde12", h.FlowLabel())
	}
}

func TestDecodeIPv6Truncated(t *testing.T) {
	data := make([]byte, 39)
	data[0] = 0x60

	_, err := DecodeIPv6(data)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeIPv6WrongVersion(t *testing.T) {
	pkt := buildIPv6(t, addr16(t, "::1"), addr16(t, "::2"), 6, nil)
	pkt[0] = 0x40

	_, err := DecodeIPv6(pkt)
	if !errors.Is(err, ErrWrongVersion) {
		t.Errorf("err = %v, want ErrWrongVersion", err)
	}
}

func TestDecodeIPv6LengthMismatch(t *testing.T) {
	pkt := buildIPv6(t, addr16(t, "::1"), addr16(t, "::2"), 6, []byte{1, 2, 3, 4})

	binary.BigEndian.PutUint16(pkt[4:6], 3)
	if _, err := DecodeIPv6(pkt); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("short declaration: err = %v, want ErrLengthMismatch", err)
	}

	binary.BigEndian.PutUint16(pkt[4:6], 5)
	if _, err := DecodeIPv6(pkt); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("long declaration: err = %v, want ErrLengthMismatch", err)
	}
}

func TestDecodeIPv6Idempotent(t *testing.T) {
	pkt := buildIPv6(t, addr16(t, "2001:db8::10"), addr16(t, "2001:db8::20"), 6, []byte("segment"))

	a, err := DecodeIPv6(pkt)
	if err != nil {
		t.Fatalf("first decode failed: %v", err)
	}
	b, err := DecodeIPv6(pkt)
	if err != nil {
		t.Fatalf("second decode failed: %v", err)
	}
	if !a.Equal(b) {
		t.Error("decoding the same buffer twice produced unequal headers")
	}
}

func TestIPv6TransportChecksumICMPv6(t *testing.T) {
	// Echo request with a zeroed checksum field.
	msg := []byte{128, 0, 0, 0, 0, 1, 0, 1, 0x70, 0x69, 0x6E, 0x67}
	pkt := buildIPv6(t, addr16(t, "fe80::1"), addr16(t, "fe80::2"), uint8(ICMPv6), msg)

	h, err := DecodeIPv6(pkt)
	if err != nil {
		t.Fatalf("DecodeIPv6 failed: %v", err)
	}

	sum, err := h.TransportChecksum(h.Payload())
	if err != nil {
		t.Fatalf("TransportChecksum failed: %v", err)
	}
	binary.BigEndian.PutUint16(h.Payload()[2:4], sum)

	ok, err := h.VerifyTransportChecksum(h.Payload())
	if err != nil {
		t.Fatalf("VerifyTransportChecksum failed: %v", err)
	}
	if !ok {
		t.Error("ICMPv6 checksum did not verify after insertion")
	}
}

func TestIPv6TransportChecksumUnsupported(t *testing.T) {
	// Next header 0 (hop-by-hop) has no pseudo-header variant here.
	pkt := buildIPv6(t, addr16(t, "::1"), addr16(t, "::2"), 0, []byte{0, 0})

	h, err := DecodeIPv6(pkt)
	if err != nil {
		t.Fatalf("DecodeIPv6 failed: %v", err)
	}
	if _, err := h.TransportChecksum(h.Payload()); !errors.Is(err, ErrUnsupportedProtocol) {
		t.Errorf("err = %v, want ErrUnsupportedProtocol", err)
	}
}
