// Package ip decodes and validates IPv4 and IPv6 packet headers without
// copying their payloads.
package ip

import "errors"

// Sentinel decode errors. Call sites wrap them with the offending offsets
// and lengths; match with errors.Is.
var (
	// ErrTruncated reports a buffer shorter than a length implied by a
	// header field (fixed header, declared options region, or declared
	// payload length).
	ErrTruncated = errors.New("netpacket: buffer truncated")

	// ErrWrongVersion reports a version nibble that does not match the
	// chosen decode path.
	ErrWrongVersion = errors.New("netpacket: wrong ip version")

	// ErrUnsupportedVersion reports a top-level version nibble that is
	// neither 4 nor 6.
	ErrUnsupportedVersion = errors.New("netpacket: unsupported ip version")

	// ErrLengthMismatch reports a length field that disagrees with the
	// actual buffer size.
	ErrLengthMismatch = errors.New("netpacket: length field mismatch")

	// ErrUnsupportedProtocol reports a transport protocol with no
	// pseudo-header checksum variant.
	ErrUnsupportedProtocol = errors.New("netpacket: unsupported transport protocol")
)
