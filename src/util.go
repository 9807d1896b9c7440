package otkernel

import (
	"fmt"
	"runtime"
)

// Because sometimes it's really convenient to have C's ternary ?:
func IfThenElse[T any](x bool, a T, b T) T { //nolint:ireturn
	if x {
		return a
	}

	return b
}

// Can't be "assert" because of conflicts with stretchr/testify/assert, but otherwise, it's compatible enough
func Assert(t bool) {
	if !t {
		_, file, line, _ := runtime.Caller(1)
		panic(fmt.Sprintf("Assertion failed at %s:%d", file, line))
	}
}

// Big endian 16 bit value in b at offset, zero if it doesn't fit.
func be16(b []byte, offset int) int {
	if offset < 0 || offset+2 > len(b) {
		return 0
	}

	return int(b[offset])<<8 | int(b[offset+1])
}
