// Package checksum implements the Internet checksum (RFC 1071) and the
// pseudo-header variants that bind a TCP, UDP, or ICMPv6 segment to its
// enclosing IP header.
//
// Pseudo-headers are built as transient stack arrays for the duration of a
// single computation; no caller data is ever modified, and an odd-length
// segment is padded with a zero byte for summing only.
package checksum

import (
	"encoding/binary"
	"net/netip"
)

// protoICMPv6 is the next-header number fixed in the ICMPv6 pseudo-header.
const protoICMPv6 = 58

// Sum accumulates data into a running one's-complement sum of big-endian
// 16-bit words. A trailing odd byte is treated as the high byte of a final
// zero-padded word.
func Sum(data []byte, sum uint32) uint32 {
	i := 0
	for ; i+1 < len(data); i += 2 {
		sum += uint32(data[i])<<8 | uint32(data[i+1])
	}
	if i < len(data) {
		sum += uint32(data[i]) << 8
	}
	return sum
}

// Fold reduces a running sum to 16 bits with end-around carry.
func Fold(sum uint32) uint16 {
	for sum > 0xFFFF {
		sum = (sum >> 16) + (sum & 0xFFFF)
	}
	return uint16(sum)
}

// Checksum returns the Internet checksum of data seeded with an initial
// running sum (usually a pseudo-header sum, or 0).
func Checksum(data []byte, initial uint32) uint16 {
	return ^Fold(Sum(data, initial))
}

// pseudoV4 is the RFC 793/768 pseudo-header:
// src(32) dst(32) zero(8) protocol(8) transport-length(16).
func pseudoV4(src, dst netip.Addr, proto uint8, length uint16) [12]byte {
	var p [12]byte
	s, d := src.As4(), dst.As4()
	copy(p[0:4], s[:])
	copy(p[4:8], d[:])
	p[9] = proto
	binary.BigEndian.PutUint16(p[10:12], length)
	return p
}

// pseudoV6 is the RFC 8200 §8.1 pseudo-header:
// src(128) dst(128) transport-length(32) zero(24) next-header(8).
func pseudoV6(src, dst netip.Addr, next uint8, length uint32) [40]byte {
	var p [40]byte
	s, d := src.As16(), dst.As16()
	copy(p[0:16], s[:])
	copy(p[16:32], d[:])
	binary.BigEndian.PutUint32(p[32:36], length)
	p[39] = next
	return p
}

// TransportV4 computes the TCP/UDP checksum of segment (header plus
// payload) under the IPv4 pseudo-header for src and dst. The segment's own
// checksum field must hold zero when computing a value to store. Note that
// a UDP checksum that computes to zero is transmitted as 0xFFFF per
// RFC 768; that substitution is the caller's concern.
func TransportV4(src, dst netip.Addr, proto uint8, segment []byte) uint16 {
	p := pseudoV4(src, dst, proto, uint16(len(segment)))
	return Checksum(segment, Sum(p[:], 0))
}

// VerifyTransportV4 reports whether segment, with its stored checksum left
// in place, sums to the all-ones total under the IPv4 pseudo-header.
func VerifyTransportV4(src, dst netip.Addr, proto uint8, segment []byte) bool {
	return TransportV4(src, dst, proto, segment) == 0
}

// TransportV6 computes the TCP/UDP checksum of segment under the IPv6
// pseudo-header for src and dst.
func TransportV6(src, dst netip.Addr, next uint8, segment []byte) uint16 {
	p := pseudoV6(src, dst, next, uint32(len(segment)))
	return Checksum(segment, Sum(p[:], 0))
}

// VerifyTransportV6 reports whether segment, with its stored checksum left
// in place, sums to the all-ones total under the IPv6 pseudo-header.
func VerifyTransportV6(src, dst netip.Addr, next uint8, segment []byte) bool {
	return TransportV6(src, dst, next, segment) == 0
}

// ICMPv6 computes the checksum of an ICMPv6 message under the IPv6
// pseudo-header with the next-header value fixed at 58.
func ICMPv6(src, dst netip.Addr, message []byte) uint16 {
	return TransportV6(src, dst, protoICMPv6, message)
}

// VerifyICMPv6 reports whether message, with its stored checksum left in
// place, sums to the all-ones total.
func VerifyICMPv6(src, dst netip.Addr, message []byte) bool {
	return ICMPv6(src, dst, message) == 0
}

// HeaderV4 computes the IPv4 header checksum over the full header bytes
// (IHL×4 of them) with the stored checksum field at offset 10 skipped, so
// the caller's buffer is never written.
func HeaderV4(header []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(header); i += 2 {
		if i == 10 {
			continue
		}
		sum += uint32(header[i])<<8 | uint32(header[i+1])
	}
	return ^Fold(sum)
}
