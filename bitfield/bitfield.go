// Package bitfield extracts sub-byte integer fields from packed wire bytes.
//
// IP headers pack several fields below byte granularity (version/IHL,
// DSCP/ECN, flags/fragment-offset). These helpers are pure shift/mask
// arithmetic: total functions over fixed-width integers with no error
// conditions and no state.
package bitfield

// SplitNibble returns the high and low 4 bits of b.
func SplitNibble(b byte) (hi, lo byte) {
	return b >> 4, b & 0x0F
}

// JoinNibble is the inverse of SplitNibble.
func JoinNibble(hi, lo byte) byte {
	return hi<<4 | lo&0x0F
}

// Split divides b at a bit boundary counted from the most significant bit:
// Split(b, 6) returns the top 6 bits and the bottom 2 bits. at must be in
// [0, 8].
func Split(b byte, at uint) (hi, lo byte) {
	return b >> (8 - at), b & (1<<(8-at) - 1)
}

// Join is the inverse of Split.
func Join(hi, lo byte, at uint) byte {
	return hi<<(8-at) | lo&(1<<(8-at)-1)
}

// SplitFlagsOffset splits the IPv4 flags/fragment-offset word into the top
// 3 flag bits and the 13-bit fragment offset.
func SplitFlagsOffset(v uint16) (flags uint8, offset uint16) {
	return uint8(v >> 13), v & 0x1FFF
}

// JoinFlagsOffset is the inverse of SplitFlagsOffset.
func JoinFlagsOffset(flags uint8, offset uint16) uint16 {
	return uint16(flags)<<13 | offset&0x1FFF
}
