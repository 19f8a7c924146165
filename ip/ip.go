package ip

import "firestige.xyz/netpacket/bitfield"

// Version is an IP version nibble.
type Version uint8

const (
	V4 Version = 4
	V6 Version = 6
)

// Protocol is an IANA protocol (IPv4) or next-header (IPv6) number.
type Protocol uint8

const (
	ICMP   Protocol = 1
	TCP    Protocol = 6
	UDP    Protocol = 17
	ICMPv6 Protocol = 58
)

// MaxDatagramSize is the largest datagram either version can declare.
const MaxDatagramSize = 65535

// DetectVersion returns the version nibble of the first byte without
// consuming it, or 0 for an empty buffer.
func DetectVersion(b []byte) Version {
	if len(b) < 1 {
		return 0
	}
	hi, _ := bitfield.SplitNibble(b[0])
	return Version(hi)
}
