package pcapfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket/layers"
)

const (
	ethernetHeaderLen = 14
	vlanHeaderLen     = 4
	nullHeaderLen     = 4

	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
	etherTypeVLAN = 0x8100
	etherTypeQinQ = 0x88A8
)

// ErrUnsupportedLinkType is returned by Open for capture files whose link
// framing this package cannot strip.
var ErrUnsupportedLinkType = errors.New("netpacket: unsupported link type")

var (
	errNotIP      = errors.New("not an IP frame")
	errShortFrame = errors.New("frame too short")
)

// stripLink removes the link-layer framing for the given link type, leaving
// the IP datagram. The returned slice aliases data.
func stripLink(linkType layers.LinkType, data []byte) ([]byte, error) {
	switch linkType {
	case layers.LinkTypeEthernet:
		return stripEthernet(data)
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		return data, nil
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		if len(data) < nullHeaderLen {
			return nil, errShortFrame
		}
		return data[nullHeaderLen:], nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLinkType, linkType)
	}
}

// stripEthernet removes the Ethernet header plus any stacked VLAN tags.
// Frames carrying a non-IP EtherType (ARP, LLDP) fail with errNotIP.
func stripEthernet(data []byte) ([]byte, error) {
	if len(data) < ethernetHeaderLen {
		return nil, errShortFrame
	}

	etherType := binary.BigEndian.Uint16(data[12:14])
	offset := ethernetHeaderLen

	for etherType == etherTypeVLAN || etherType == etherTypeQinQ {
		if len(data) < offset+vlanHeaderLen {
			return nil, errShortFrame
		}
		etherType = binary.BigEndian.Uint16(data[offset+2 : offset+4])
		offset += vlanHeaderLen
	}

	if etherType != etherTypeIPv4 && etherType != etherTypeIPv6 {
		return nil, errNotIP
	}
	return data[offset:], nil
}
