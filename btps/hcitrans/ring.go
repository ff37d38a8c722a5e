package hcitrans

// ring is a byte ring addressed by index. in and out are positions in buf and
// free is the unused byte count; in == out is both empty and full, so free
// disambiguates. Callers hold the interrupt lock around index updates.
type ring struct {
	buf  []byte
	in   int
	out  int
	free int
}

func newRing(size int) ring {
	return ring{buf: make([]byte, size), free: size}
}

func (r *ring) size() int { return len(r.buf) }

func (r *ring) used() int { return len(r.buf) - r.free }

func (r *ring) reset() {
	r.in, r.out, r.free = 0, 0, len(r.buf)
}

// writable returns the contiguous free run starting at in.
func (r *ring) writable() []byte {
	n := min(r.free, len(r.buf)-r.in)
	return r.buf[r.in : r.in+n]
}

// readable returns the contiguous used run starting at out.
func (r *ring) readable() []byte {
	n := min(r.used(), len(r.buf)-r.out)
	return r.buf[r.out : r.out+n]
}

func (r *ring) produced(n int) {
	r.in = (r.in + n) % len(r.buf)
	r.free -= n
}

func (r *ring) consumed(n int) {
	r.out = (r.out + n) % len(r.buf)
	r.free += n
}
