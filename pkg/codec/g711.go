// Package codec implements the narrow-band audio transforms used on the
// telephony edge: ITU-T G.711 companding (mu-law and A-law) and linear
// PCM16 resampling between the 8 kHz wire rate and the 16 kHz pipeline rate.
package codec

import "errors"

// ErrOddPCMLength is returned when PCM16 input does not contain a whole
// number of 16-bit samples. Truncating would silently corrupt audio, so
// callers must treat this as a hard failure.
var ErrOddPCMLength = errors.New("codec: pcm16 data must be an even number of bytes")

const (
	ulawBias = 0x84
	ulawClip = 32635

	alawClip = 32635
)

// ULawToPCM16 expands G.711 mu-law bytes to little-endian PCM16.
// Output is always exactly twice the input length.
func ULawToPCM16(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		s := decodeULawSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// ALawToPCM16 expands G.711 A-law bytes to little-endian PCM16.
func ALawToPCM16(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		s := decodeALawSample(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// PCM16ToULaw compresses little-endian PCM16 to G.711 mu-law.
// Returns ErrOddPCMLength if pcm does not hold whole samples.
func PCM16ToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCMLength
	}
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = encodeULawSample(s)
	}
	return out, nil
}

// PCM16ToALaw compresses little-endian PCM16 to G.711 A-law.
// Returns ErrOddPCMLength if pcm does not hold whole samples.
func PCM16ToALaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCMLength
	}
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = encodeALawSample(s)
	}
	return out, nil
}

// decodeULawSample expands one mu-law byte per ITU-T G.711.
func decodeULawSample(u byte) int16 {
	u = ^u
	t := int32((uint32(u)&0x0f)<<3) + ulawBias
	t <<= (u & 0x70) >> 4
	if u&0x80 != 0 {
		return int16(ulawBias - t)
	}
	return int16(t - ulawBias)
}

// encodeULawSample compresses one linear sample to mu-law per ITU-T G.711.
func encodeULawSample(s int16) byte {
	var sign byte
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > ulawClip {
		v = ulawClip
	}
	v += ulawBias

	exponent := byte(7)
	for mask := int32(0x4000); v&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(v>>(exponent+3)) & 0x0f
	return ^(sign | exponent<<4 | mantissa)
}

// decodeALawSample expands one A-law byte per ITU-T G.711.
func decodeALawSample(a byte) int16 {
	a ^= 0x55
	t := int32(a&0x0f) << 4
	seg := (a & 0x70) >> 4
	switch seg {
	case 0:
		t += 8
	case 1:
		t += 0x108
	default:
		t += 0x108
		t <<= seg - 1
	}
	if a&0x80 != 0 {
		return int16(t)
	}
	return int16(-t)
}

// encodeALawSample compresses one linear sample to A-law per ITU-T G.711.
func encodeALawSample(s int16) byte {
	var mask byte = 0xd5
	v := int32(s)
	if v < 0 {
		mask = 0x55
		v = -v - 1
	}
	if v > alawClip {
		v = alawClip
	}
	v >>= 3

	var seg byte
	for seg = 0; seg < 8; seg++ {
		if v <= alawSegEnd[seg] {
			break
		}
	}
	if seg >= 8 {
		return 0x7f ^ mask
	}

	aval := seg << 4
	if seg < 2 {
		aval |= byte(v>>1) & 0x0f
	} else {
		aval |= byte(v>>seg) & 0x0f
	}
	return aval ^ mask
}

var alawSegEnd = [8]int32{0x1f, 0x3f, 0x7f, 0xff, 0x1ff, 0x3ff, 0x7ff, 0xfff}
