package rsum

import "hash"

// digest is the streaming form of Checksum. Summing the running byte sum after
// every byte gives the same b as weighting each byte by the bytes remaining.
type digest struct {
	a, b uint16
}

// New returns a hash.Hash32 whose Sum matches Checksum over everything written.
func New() hash.Hash32 {
	return &digest{}
}

func (d *digest) Write(p []byte) (int, error) {
	a, b := d.a, d.b
	for _, c := range p {
		a += uint16(c)
		b += a
	}
	d.a, d.b = a, b
	return len(p), nil
}

// Sum appends the current digest to in. It does not change the state.
func (d *digest) Sum(in []byte) []byte {
	s := newDigest(d.a, d.b)
	return append(in, s[:]...)
}

func (d *digest) Sum32() uint32 { return newDigest(d.a, d.b).Uint32() }

func (d *digest) Reset() { d.a, d.b = 0, 0 }

func (d *digest) Size() int { return Size }

func (d *digest) BlockSize() int { return 1 }
