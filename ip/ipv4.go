package ip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"

	"firestige.xyz/netpacket/bitfield"
	"firestige.xyz/netpacket/checksum"
)

const (
	ipv4MinWords     = 5
	ipv4HeaderMinLen = 20
)

// Flag bits of the 3-bit IPv4 flags field.
const (
	FlagMoreFragments uint8 = 1 << 0
	FlagDontFragment  uint8 = 1 << 1
)

// IPv4Header is a decoded RFC 791 header. Options and payload are borrowed
// from the buffer passed to DecodeIPv4: the buffer must stay valid and
// unmutated for as long as the header (or any slice obtained from it) is in
// use.
type IPv4Header struct {
	ihl      uint8
	dscp     uint8
	ecn      uint8
	totalLen uint16
	id       uint16
	flags    uint8
	fragOff  uint16
	ttl      uint8
	proto    Protocol
	cksum    uint16
	src, dst netip.Addr
	options  Options
	raw      []byte
}

// DecodeIPv4 decodes and validates one IPv4 datagram. buf must hold exactly
// the declared datagram: the total-length field has to equal len(buf), so
// callers holding link-layer-padded buffers should slice down to the
// declared length first. Decoding fails fast on the first violated
// invariant and never returns a partial header.
func DecodeIPv4(buf []byte) (IPv4Header, error) {
	if len(buf) < ipv4HeaderMinLen {
		return IPv4Header{}, fmt.Errorf("netpacket: ipv4 header: need %d bytes, have %d: %w",
			ipv4HeaderMinLen, len(buf), ErrTruncated)
	}

	version, ihl := bitfield.SplitNibble(buf[0])
	if version != 4 {
		return IPv4Header{}, fmt.Errorf("netpacket: ipv4 header: version nibble %d: %w",
			version, ErrWrongVersion)
	}
	if ihl < ipv4MinWords {
		return IPv4Header{}, fmt.Errorf("netpacket: ipv4 header: IHL %d words, minimum %d: %w",
			ihl, ipv4MinWords, ErrLengthMismatch)
	}

	h := IPv4Header{ihl: ihl, raw: buf}
	h.dscp, h.ecn = bitfield.Split(buf[1], 6)
	h.totalLen = binary.BigEndian.Uint16(buf[2:4])
	h.id = binary.BigEndian.Uint16(buf[4:6])
	h.flags, h.fragOff = bitfield.SplitFlagsOffset(binary.BigEndian.Uint16(buf[6:8]))
	h.ttl = buf[8]
	h.proto = Protocol(buf[9])
	h.cksum = binary.BigEndian.Uint16(buf[10:12])
	h.src = netip.AddrFrom4([4]byte(buf[12:16]))
	h.dst = netip.AddrFrom4([4]byte(buf[16:20]))

	if ihl > ipv4MinWords {
		opts, _, err := ParseOptions(buf[ipv4HeaderMinLen:], ihl)
		if err != nil {
			return IPv4Header{}, err
		}
		h.options = opts
	}

	if int(h.totalLen) != len(buf) {
		return IPv4Header{}, fmt.Errorf("netpacket: ipv4 header: total length %d, buffer %d: %w",
			h.totalLen, len(buf), ErrLengthMismatch)
	}

	return h, nil
}

func (h IPv4Header) Version() Version { return V4 }

// IHL returns the header length in 32-bit words.
func (h IPv4Header) IHL() uint8 { return h.ihl }

// HeaderLength returns the header length in bytes, options included.
func (h IPv4Header) HeaderLength() int { return int(h.ihl) * optionWordSize }

func (h IPv4Header) DSCP() uint8 { return h.dscp }

func (h IPv4Header) ECN() uint8 { return h.ecn }

// TOS returns the original type-of-service byte, DSCP and ECN repacked.
func (h IPv4Header) TOS() uint8 { return bitfield.Join(h.dscp, h.ecn, 6) }

func (h IPv4Header) TotalLength() uint16 { return h.totalLen }

func (h IPv4Header) Identification() uint16 { return h.id }

// Flags returns the raw 3-bit flags field.
func (h IPv4Header) Flags() uint8 { return h.flags }

func (h IPv4Header) DontFragment() bool { return h.flags&FlagDontFragment != 0 }

func (h IPv4Header) MoreFragments() bool { return h.flags&FlagMoreFragments != 0 }

// FragmentOffset returns the raw 13-bit field, in units of 8 bytes.
func (h IPv4Header) FragmentOffset() uint16 { return h.fragOff }

func (h IPv4Header) TTL() uint8 { return h.ttl }

func (h IPv4Header) Protocol() Protocol { return h.proto }

// Checksum returns the stored header checksum field.
func (h IPv4Header) Checksum() uint16 { return h.cksum }

func (h IPv4Header) Source() netip.Addr { return h.src }

func (h IPv4Header) Destination() netip.Addr { return h.dst }

func (h IPv4Header) Options() Options { return h.options }

// Payload returns the bytes after the header, borrowed from the decode
// buffer.
func (h IPv4Header) Payload() []byte { return h.raw[h.HeaderLength():] }

// Bytes returns the entire datagram as passed to DecodeIPv4.
func (h IPv4Header) Bytes() []byte { return h.raw }

// VerifyChecksum recomputes the header checksum with the stored field
// treated as zero and compares it to the stored value. The underlying
// buffer is not written.
func (h IPv4Header) VerifyChecksum() bool {
	return checksum.HeaderV4(h.raw[:h.HeaderLength()]) == h.cksum
}

// TransportChecksum computes the pseudo-header checksum for a TCP or UDP
// segment under this header's addresses and protocol. The segment's own
// checksum field must hold zero.
func (h IPv4Header) TransportChecksum(segment []byte) (uint16, error) {
	switch h.proto {
	case TCP, UDP:
		return checksum.TransportV4(h.src, h.dst, uint8(h.proto), segment), nil
	default:
		return 0, fmt.Errorf("netpacket: ipv4 transport checksum: protocol %d: %w",
			h.proto, ErrUnsupportedProtocol)
	}
}

// VerifyTransportChecksum reports whether segment, with its stored checksum
// left in place, sums to the all-ones total under this header's
// pseudo-header.
func (h IPv4Header) VerifyTransportChecksum(segment []byte) (bool, error) {
	switch h.proto {
	case TCP, UDP:
		return checksum.VerifyTransportV4(h.src, h.dst, uint8(h.proto), segment), nil
	default:
		return false, fmt.Errorf("netpacket: ipv4 transport checksum: protocol %d: %w",
			h.proto, ErrUnsupportedProtocol)
	}
}

// Equal reports value equality over every decoded field, options and
// payload bytes included.
func (h IPv4Header) Equal(o IPv4Header) bool {
	return h.ihl == o.ihl && h.dscp == o.dscp && h.ecn == o.ecn &&
		h.totalLen == o.totalLen && h.id == o.id &&
		h.flags == o.flags && h.fragOff == o.fragOff &&
		h.ttl == o.ttl && h.proto == o.proto && h.cksum == o.cksum &&
		h.src == o.src && h.dst == o.dst &&
		bytes.Equal(h.options, o.options) &&
		bytes.Equal(h.Payload(), o.Payload())
}
