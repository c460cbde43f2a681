package tmcgo

import "github.com/pkg/errors"

const maxRun = 127

// PackBits appends the TIFF PackBits encoding of src to dst.
func PackBits(dst, src []byte) []byte {
	i := 0
	for i < len(src) {
		switch {
		case i+1 >= len(src):
			// Single byte on the end
			dst = append(dst, 0x00, src[i])
			i++
		case src[i] == src[i+1]:
			i++
			count := 2
			for i < len(src)-1 && src[i] == src[i+1] && count < maxRun {
				i++
				count++
			}
			dst = append(dst, byte(257-count), src[i])
			i++
		default:
			start := i
			i++
			count := 1
			for i < len(src)-1 && src[i] != src[i+1] && count < maxRun {
				i++
				count++
			}
			dst = append(dst, byte(count-1))
			dst = append(dst, src[start:start+count]...)
		}
	}
	return dst
}

// UnpackBits decodes PackBits data until want bytes have been produced
// and returns them with the number of input bytes consumed.
func UnpackBits(src []byte, want int) ([]byte, int, error) {
	dst := make([]byte, 0, want)
	i := 0
	for len(dst) < want {
		if i >= len(src) {
			return dst, i, errors.New("packbits: truncated input")
		}
		n := int(int8(src[i]))
		i++
		switch {
		case n >= 0:
			if i+n+1 > len(src) {
				return dst, i, errors.New("packbits: truncated literal run")
			}
			dst = append(dst, src[i:i+n+1]...)
			i += n + 1
		case n == -128:
			// no-op
		default:
			if i >= len(src) {
				return dst, i, errors.New("packbits: truncated repeat run")
			}
			for j := 0; j < 1-n; j++ {
				dst = append(dst, src[i])
			}
			i++
		}
	}
	if len(dst) > want {
		return dst, i, errors.Errorf("packbits: run overflows %d bytes by %d", want, len(dst)-want)
	}
	return dst, i, nil
}
