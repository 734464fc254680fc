package chunk

// Variable length integer layout:
// first byte  - bit0 continue, bit1 sign, bits2..7 low 6 bits of magnitude
// next bytes  - bit0 continue, bits1..7 next 7 bits of magnitude
const maxVarIntBytes = 6

func appendVarInt(b []byte, v int32) []byte {
	mag := int64(v)
	var sign byte
	if mag < 0 {
		mag = -mag
		sign = 2
	}

	bits := byte(mag<<2) | sign
	mag >>= 6
	if mag != 0 {
		bits |= 1
	}
	b = append(b, bits)

	for mag != 0 {
		bits = byte(mag << 1)
		mag >>= 7
		if mag != 0 {
			bits |= 1
		}
		b = append(b, bits)
	}
	return b
}

// decodeVarInt decodes value from bytes returned by next.
func decodeVarInt(next func() (byte, error)) (int32, error) {
	bits, err := next()
	if err != nil {
		return 0, err
	}
	negative := bits&2 != 0
	value := int64(bits >> 2)
	shift := uint(6)

	for n := 1; bits&1 != 0; n++ {
		if n >= maxVarIntBytes {
			return 0, FormatErrorf("varint is longer than %d bytes", maxVarIntBytes)
		}
		if bits, err = next(); err != nil {
			return 0, err
		}
		value |= int64(bits>>1) << shift
		shift += 7
	}

	if negative {
		value = -value
	}
	if value > 1<<31-1 || value < -(1<<31) {
		return 0, FormatErrorf("varint value %d overflows int32", value)
	}
	return int32(value), nil
}
