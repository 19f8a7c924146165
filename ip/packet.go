package ip

import (
	"fmt"
	"net/netip"
)

// Packet is a closed tagged union over the two supported IP versions.
// Exactly one variant is active at a time. All version dispatch in the
// library lives in this type's switch arms; supporting a new IP version
// means a new variant and a new arm here.
type Packet struct {
	version Version
	v4      IPv4Header
	v6      IPv6Header
}

// Decode sniffs the version nibble of buf and delegates to the matching
// header decoder.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < 1 {
		return Packet{}, fmt.Errorf("netpacket: packet: empty buffer: %w", ErrTruncated)
	}
	switch v := DetectVersion(buf); v {
	case V4:
		h, err := DecodeIPv4(buf)
		if err != nil {
			return Packet{}, err
		}
		return Packet{version: V4, v4: h}, nil
	case V6:
		h, err := DecodeIPv6(buf)
		if err != nil {
			return Packet{}, err
		}
		return Packet{version: V6, v6: h}, nil
	default:
		return Packet{}, fmt.Errorf("netpacket: packet: ip version %d: %w", v, ErrUnsupportedVersion)
	}
}

// Version returns the active variant's version.
func (p Packet) Version() Version { return p.version }

// V4 returns the IPv4 variant; ok is false when the packet is not IPv4.
func (p Packet) V4() (IPv4Header, bool) { return p.v4, p.version == V4 }

// V6 returns the IPv6 variant; ok is false when the packet is not IPv6.
func (p Packet) V6() (IPv6Header, bool) { return p.v6, p.version == V6 }

// Payload returns the active variant's payload, borrowed from the decode
// buffer.
func (p Packet) Payload() []byte {
	switch p.version {
	case V4:
		return p.v4.Payload()
	case V6:
		return p.v6.Payload()
	}
	return nil
}

// Bytes returns the entire datagram as passed to Decode.
func (p Packet) Bytes() []byte {
	switch p.version {
	case V4:
		return p.v4.Bytes()
	case V6:
		return p.v6.Bytes()
	}
	return nil
}

// Source returns the active variant's source address.
func (p Packet) Source() netip.Addr {
	switch p.version {
	case V4:
		return p.v4.Source()
	case V6:
		return p.v6.Source()
	}
	return netip.Addr{}
}

// Destination returns the active variant's destination address.
func (p Packet) Destination() netip.Addr {
	switch p.version {
	case V4:
		return p.v4.Destination()
	case V6:
		return p.v6.Destination()
	}
	return netip.Addr{}
}

// Protocol returns the IPv4 protocol number or the IPv6 next-header number.
func (p Packet) Protocol() Protocol {
	switch p.version {
	case V4:
		return p.v4.Protocol()
	case V6:
		return p.v6.NextHeader()
	}
	return 0
}

// TransportChecksum forwards to the active variant.
func (p Packet) TransportChecksum(segment []byte) (uint16, error) {
	switch p.version {
	case V4:
		return p.v4.TransportChecksum(segment)
	case V6:
		return p.v6.TransportChecksum(segment)
	}
	return 0, fmt.Errorf("netpacket: packet: no active variant: %w", ErrUnsupportedVersion)
}

// VerifyTransportChecksum forwards to the active variant.
func (p Packet) VerifyTransportChecksum(segment []byte) (bool, error) {
	switch p.version {
	case V4:
		return p.v4.VerifyTransportChecksum(segment)
	case V6:
		return p.v6.VerifyTransportChecksum(segment)
	}
	return false, fmt.Errorf("netpacket: packet: no active variant: %w", ErrUnsupportedVersion)
}
