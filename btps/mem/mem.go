// Package mem holds the byte and string helpers the kernel exposes to the
// protocol stack. Each mirrors its C runtime counterpart on Go slices.
package mem

import "bytes"

// Copy copies min(len(dst), len(src)) bytes and returns the count.
// Overlapping slices are handled like Move.
func Copy(dst, src []byte) int { return copy(dst, src) }

// Move copies src into dst; the slices may overlap.
func Move(dst, src []byte) int { return copy(dst, src) }

// Set fills dst with v.
func Set(dst []byte, v byte) {
	for i := range dst {
		dst[i] = v
	}
}

// Compare compares the first n bytes of a and b and returns -1, 0 or 1.
// Slices shorter than n compare as if truncated.
func Compare(a, b []byte, n int) int {
	return bytes.Compare(prefix(a, n), prefix(b, n))
}

// CompareFold is Compare with ASCII letters folded to upper case. Bytes
// outside 'a'..'z' compare unchanged.
func CompareFold(a, b []byte, n int) int {
	a, b = prefix(a, n), prefix(b, n)
	for i := 0; i < len(a) && i < len(b); i++ {
		x, y := upper(a[i]), upper(b[i])
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// StringCopy copies the NUL-terminated string in src, terminator included,
// into dst and returns the bytes copied. The copy is cut short if dst is
// too small; a cut copy is not terminated.
func StringCopy(dst, src []byte) int {
	n := StringLength(src)
	if n < len(src) {
		n++
	}
	return copy(dst, src[:n])
}

// StringLength returns the number of bytes before the first NUL, or len(s)
// if there is none.
func StringLength(s []byte) int {
	if i := bytes.IndexByte(s, 0); i >= 0 {
		return i
	}
	return len(s)
}

func prefix(b []byte, n int) []byte {
	if n < len(b) {
		return b[:max(n, 0)]
	}
	return b
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}
