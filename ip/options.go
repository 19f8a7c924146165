package ip

import "fmt"

// Options is the raw IPv4 options-plus-padding region. Option kinds (the
// type/length/value triplets) are not interpreted here; callers that care
// walk the span themselves.
type Options []byte

// Len returns the region length in bytes.
func (o Options) Len() int { return len(o) }

const optionWordSize = 4

// ParseOptions consumes the options region declared by ihl from b, which
// must start immediately after the 20-byte fixed header. The region is
// (ihl-5)×4 bytes, padding included, so the consumed length is already
// aligned to a 32-bit boundary. Fails with ErrTruncated when b is short of
// the declared region.
func ParseOptions(b []byte, ihl uint8) (Options, int, error) {
	if ihl <= ipv4MinWords {
		return nil, 0, nil
	}
	declared := int(ihl-ipv4MinWords) * optionWordSize
	if len(b) < declared {
		return nil, 0, fmt.Errorf("netpacket: ipv4 options: declared %d bytes, have %d: %w",
			declared, len(b), ErrTruncated)
	}
	return Options(b[:declared]), declared, nil
}
