package ip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/netpacket/bitfield"
	"firestige.xyz/netpacket/checksum"
)

const ipv6HeaderLen = 40

// IPv6Header is a decoded RFC 8200 fixed header. Extension headers are not
// walked; NextHeader is surfaced uninterpreted. The payload is borrowed
// from the buffer passed to DecodeIPv6 under the same lifetime rule as
// IPv4Header.
type IPv6Header struct {
	trafficClass uint8
	flowLabel    uint32
	payloadLen   uint16
	nextHeader   Protocol
	hopLimit     uint8
	src, dst     netip.Addr
	raw          []byte
}

// DecodeIPv6 decodes and validates one IPv6 datagram. buf must hold
// exactly the fixed header plus the declared payload length.
func DecodeIPv6(buf []byte) (IPv6Header, error) {
	if len(buf) < ipv6HeaderLen {
		return IPv6Header{}, fmt.Errorf("netpacket: ipv6 header: need %d bytes, have %d: %w",
			ipv6HeaderLen, len(buf), ErrTruncated)
	}

	// First word: version(4) traffic-class(8) flow-label(20). The traffic
	// class straddles bytes 0 and 1.
	version, tcHi := bitfield.SplitNibble(buf[0])
	if version != 6 {
		return IPv6Header{}, fmt.Errorf("netpacket: ipv6 header: version nibble %d: %w",
			version, ErrWrongVersion)
	}
	tcLo, flHi := bitfield.SplitNibble(buf[1])

	h := IPv6Header{raw: buf}
	h.trafficClass = bitfield.JoinNibble(tcHi, tcLo)
	h.flowLabel = uint32(flHi)<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	h.payloadLen = binary.BigEndian.Uint16(buf[4:6])
	h.nextHeader = Protocol(buf[6])
	h.hopLimit = buf[7]
	h.src = netip.AddrFrom16([16]byte(buf[8:24]))
	h.dst = netip.AddrFrom16([16]byte(buf[24:40]))

	if len(buf)-ipv6HeaderLen != int(h.payloadLen) {
		return IPv6Header{}, fmt.Errorf("netpacket: ipv6 header: payload length %d, buffer holds %d: %w",
			h.payloadLen, len(buf)-ipv6HeaderLen, ErrLengthMismatch)
	}

	return h, nil
}

func (h IPv6Header) Version() Version { return V6 }

func (h IPv6Header) TrafficClass() uint8 { return h.trafficClass }

// FlowLabel returns the 20-bit flow label.
func (h IPv6Header) FlowLabel() uint32 { return h.flowLabel }

func (h IPv6Header) PayloadLength() uint16 { return h.payloadLen }

// NextHeader returns the next-header number, uninterpreted.
func (h IPv6Header) NextHeader() Protocol { return h.nextHeader }

func (h IPv6Header) HopLimit() uint8 { return h.hopLimit }

func (h IPv6Header) Source() netip.Addr { return h.src }

func (h IPv6Header) Destination() netip.Addr { return h.dst }

// Payload returns the bytes after the fixed header, borrowed from the
// decode buffer.
func (h IPv6Header) Payload() []byte {
	if h.raw == nil {
		return nil
	}
	return h.raw[ipv6HeaderLen:]
}

// Bytes returns the entire datagram as passed to DecodeIPv6.
func (h IPv6Header) Bytes() []byte { return h.raw }

// TransportChecksum computes the pseudo-header checksum for a TCP, UDP, or
// ICMPv6 segment under this header's addresses and next-header number. The
// segment's own checksum field must hold zero.
func (h IPv6Header) TransportChecksum(segment []byte) (uint16, error) {
	switch h.nextHeader {
	case TCP, UDP:
		return checksum.TransportV6(h.src, h.dst, uint8(h.nextHeader), segment), nil
	case ICMPv6:
		return checksum.ICMPv6(h.src, h.dst, segment), nil
	default:
		return 0, fmt.Errorf("netpacket: ipv6 transport checksum: next header %d: %w",
			h.nextHeader, ErrUnsupportedProtocol)
	}
}

// VerifyTransportChecksum reports whether segment, with its stored checksum
// left in place, sums to the all-ones total under this header's
// pseudo-header.
func (h IPv6Header) VerifyTransportChecksum(segment []byte) (bool, error) {
	switch h.nextHeader {
	case TCP, UDP:
		return checksum.VerifyTransportV6(h.src, h.dst, uint8(h.nextHeader), segment), nil
	case ICMPv6:
		return checksum.VerifyICMPv6(h.src, h.dst, segment), nil
	default:
		return false, fmt.Errorf("netpacket: ipv6 transport checksum: next header %d: %w",
			h.nextHeader, ErrUnsupportedProtocol)
	}
}

// Equal reports value equality over every decoded field and the payload
// bytes.
func (h IPv6Header) Equal(o IPv6Header) bool {
	return h.trafficClass == o.trafficClass && h.flowLabel == o.flowLabel &&
		h.payloadLen == o.payloadLen && h.nextHeader == o.nextHeader &&
		h.hopLimit == o.hopLimit && h.src == o.src && h.dst == o.dst &&
		bytes.Equal(h.Payload(), o.Payload())
}
