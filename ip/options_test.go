package ip

import (
	"errors"
	"testing"
)

func TestParseOptionsNone(t *testing.T) {
	opts, n, err := ParseOptions([]byte{1, 2, 3, 4}, 5)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}
	if opts != nil || n != 0 {
		t.Errorf("ParseOptions = (%v, %d), want (nil, 0)", opts, n)
	}
}

func TestParseOptionsSpan(t *testing.T) {
	// IHL 7 declares two option words.
	buf := []byte{
		0x94, 0x04, 0x00, 0x00, // router alert
		0x01, 0x01, 0x01, 0x00, // noops + eol padding
		0xDE, 0xAD, // trailing payload, not options
	}

	opts, n, err := ParseOptions(buf, 7)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}
	if n != 8 {
		t.Errorf("consumed = %d, want 8", n)
	}
	if opts.Len() != 8 {
		t.Errorf("Len = %d, want 8", opts.Len())
	}
	if &opts[0] != &buf[0] {
		t.Error("options do not alias the input buffer")
	}
}

func TestParseOptionsTruncated(t *testing.T) {
	_, _, err := ParseOptions(make([]byte, 3), 6)
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("err = %v, want ErrTruncated", err)
	}
}

func TestParseOptionsMaxIHL(t *testing.T) {
	// IHL 15 declares the maximum 40-byte region.
	buf := make([]byte, 40)

	opts, n, err := ParseOptions(buf, 15)
	if err != nil {
		t.Fatalf("ParseOptions failed: %v", err)
	}
	if n != 40 || opts.Len() != 40 {
		t.Errorf("ParseOptions = (len %d, %d), want (40, 40)", opts.Len(), n)
	}
}
