package otkernel

// Scan timeout codes, as carried in the flags byte of a scan sequence entry.
//
//	bits 4:3  exponent
//	bits 2:0  mantissa
//	bit  6    x1024
//	bit  7    background scan (not part of the timeout)
//
// timeout = (mantissa + 1) * 4^exponent ticks.

const (
	TIMEOUT_CODE_MASK uint8 = 0x1F
	TIMEOUT_X1024     uint8 = 0x40
	SCAN_BACKGROUND   uint8 = 0x80
)

const TIMEOUT_MAX = (8 << 6) * 1024

func CalcTimeout(flags uint8) int {
	var code = flags & TIMEOUT_CODE_MASK
	var exp = int(code >> 3)
	var mant = int(code & 7)

	var t = (mant + 1) << (2 * exp)
	if flags&TIMEOUT_X1024 != 0 {
		t *= 1024
	}

	return t
}

// EncodeTimeout returns the smallest code whose timeout is at least ticks,
// saturating at TIMEOUT_MAX.
func EncodeTimeout(ticks int) uint8 {
	for _, mult := range []uint8{0, TIMEOUT_X1024} {
		for code := uint8(0); code <= TIMEOUT_CODE_MASK; code++ {
			if CalcTimeout(code|mult) >= ticks {
				return code | mult
			}
		}
	}

	return TIMEOUT_CODE_MASK | TIMEOUT_X1024
}
