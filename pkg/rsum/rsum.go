// Package rsum implements the weak rolling checksum used by zsync 0.6.
//
// The digest is made of two 16-bit accumulators: a is the plain byte sum and
// b weights every byte by the number of bytes left in the block, counting the
// current one. Both wrap modulo 65536. The digest stores a then b, each in
// network byte order.
package rsum

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// Size is the length of a digest in bytes.
const Size = 4

// MaxLen is the largest input Sum accepts. zsync reads the block length
// into a signed 32-bit int.
const MaxLen = math.MaxInt32

// ErrInputTooLarge is returned by Sum for inputs longer than MaxLen.
var ErrInputTooLarge = errors.New("rsum: input too large")

// InputTooLargeError carries the rejected length. It unwraps to ErrInputTooLarge.
type InputTooLargeError struct {
	Len int64
}

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("rsum: input of %d bytes exceeds %d", e.Len, MaxLen)
}

func (e *InputTooLargeError) Unwrap() error { return ErrInputTooLarge }

// Digest is the 4 byte rsum value.
type Digest [Size]byte

func newDigest(a, b uint16) Digest {
	var d Digest
	binary.BigEndian.PutUint16(d[0:2], a)
	binary.BigEndian.PutUint16(d[2:4], b)
	return d
}

// A returns the byte sum.
func (d Digest) A() uint16 { return binary.BigEndian.Uint16(d[0:2]) }

// B returns the weighted sum.
func (d Digest) B() uint16 { return binary.BigEndian.Uint16(d[2:4]) }

// Uint32 reads the digest as one big-endian word, a in the high half.
func (d Digest) Uint32() uint32 { return binary.BigEndian.Uint32(d[:]) }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

func (d Digest) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(Size))
	hex.Encode(out, d[:])
	return out, nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(Size) {
		return fmt.Errorf("rsum: digest must be %d hex characters, got %d", hex.EncodedLen(Size), len(text))
	}
	var tmp Digest
	if _, err := hex.Decode(tmp[:], text); err != nil {
		return fmt.Errorf("rsum: invalid digest %q: %w", text, err)
	}
	*d = tmp
	return nil
}

// Sum computes the rsum of data. It fails only when data is longer than MaxLen.
func Sum(data []byte) (Digest, error) {
	if err := checkLen(int64(len(data))); err != nil {
		return Digest{}, err
	}
	return Checksum(data), nil
}

func checkLen(n int64) error {
	if n > MaxLen {
		return &InputTooLargeError{Len: n}
	}
	return nil
}

// Checksum computes the rsum of data without a length limit.
func Checksum(data []byte) Digest {
	var a, b uint16
	// remaining is kept mod 65536; the product is reduced mod 65536 anyway,
	// so this matches a full-width multiply bit for bit.
	remaining := uint16(len(data))
	for _, c := range data {
		a += uint16(c)
		b += remaining * uint16(c)
		remaining--
	}
	return newDigest(a, b)
}
