// Package pcapfile reads IP datagrams out of pcap capture files.
//
// The reader strips the link-layer framing recorded in the file, so Next
// hands back whole IP datagrams ready for decoding. Non-IP frames (ARP,
// LLDP) are skipped with a debug log line rather than surfaced as errors.
package pcapfile

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"
)

// Source reads datagrams from one capture file.
type Source struct {
	f        *os.File
	r        *pcapgo.Reader
	linkType layers.LinkType
	log      *logrus.Logger
}

// Open opens a pcap file and checks that its link type is one the package
// can strip.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("netpacket: open capture: %w", err)
	}
	r, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("netpacket: read capture header: %w", err)
	}

	linkType := r.LinkType()
	switch linkType {
	case layers.LinkTypeEthernet, layers.LinkTypeRaw, layers.LinkTypeIPv4,
		layers.LinkTypeIPv6, layers.LinkTypeNull, layers.LinkTypeLoop:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLinkType, linkType)
	}

	return &Source{
		f:        f,
		r:        r,
		linkType: linkType,
		log:      logrus.StandardLogger(),
	}, nil
}

// SetLogger replaces the logger used for skipped-frame reporting.
func (s *Source) SetLogger(log *logrus.Logger) {
	if log != nil {
		s.log = log
	}
}

// LinkType returns the link type recorded in the file header.
func (s *Source) LinkType() layers.LinkType { return s.linkType }

// Next returns the next IP datagram and its capture metadata. Frames that
// carry no IP datagram are skipped. Returns io.EOF when the file is
// exhausted. The returned slice is owned by the caller until the following
// Next call.
func (s *Source) Next() ([]byte, gopacket.CaptureInfo, error) {
	for {
		data, ci, err := s.r.ReadPacketData()
		if err != nil {
			if err == io.EOF {
				return nil, gopacket.CaptureInfo{}, io.EOF
			}
			return nil, gopacket.CaptureInfo{}, fmt.Errorf("netpacket: read frame: %w", err)
		}

		datagram, err := stripLink(s.linkType, data)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"file":   s.f.Name(),
				"length": len(data),
				"reason": err,
			}).Debug("skipping frame")
			continue
		}
		return datagram, ci, nil
	}
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.f.Close()
}
