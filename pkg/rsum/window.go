package rsum

// Window keeps the rsum of a fixed-size block while it slides over a stream.
// It cannot be used concurrently.
type Window struct {
	a, b uint16
	n    uint16
	size int
}

// NewWindow initializes the window over block. The window size is len(block).
func NewWindow(block []byte) *Window {
	d := Checksum(block)
	return &Window{
		a:    d.A(),
		b:    d.B(),
		n:    uint16(len(block)),
		size: len(block),
	}
}

// Roll moves the window one byte forward: out leaves at the front, in enters
// at the back.
func (w *Window) Roll(out, in byte) {
	w.a += uint16(in) - uint16(out)
	w.b += w.a - w.n*uint16(out)
}

// Digest returns the rsum of the bytes currently in the window.
func (w *Window) Digest() Digest {
	return newDigest(w.a, w.b)
}

// Len returns the window size.
func (w *Window) Len() int {
	return w.size
}
