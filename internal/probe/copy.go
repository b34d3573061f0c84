package probe

// Lorem is the fixed source string of the buffer copy probe.
const Lorem = "Lorem ipsum dolor sit amet, consectetur adipiscing elit."

// CopyLorem copies Lorem plus a NUL terminator into dst and returns the
// string length (terminator not counted). dst must hold at least
// len(Lorem)+1 bytes; the copy is deliberately unchecked and an undersized
// buffer panics instead of truncating silently.
func CopyLorem(dst []byte) int {
	n := len(Lorem)
	for i := 0; i < n; i++ {
		dst[i] = Lorem[i]
	}
	dst[n] = 0
	return n
}
