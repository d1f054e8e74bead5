package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	signMask uint64 = 0x8000000000000000

	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

var pads = make([]byte, encGroupSize)

// EncodeBytes guarantees the encoded value is in ascending order for comparison,
// encoding with the following rule:
//  [group1][marker1]...[groupN][markerN]
//  group is 8 bytes slice which is padding with 0.
//  marker is `0xFF - padding 0 count`
// For example:
//   [] -> [0, 0, 0, 0, 0, 0, 0, 0, 247]
//   [1, 2, 3] -> [1, 2, 3, 0, 0, 0, 0, 0, 250]
//   [1, 2, 3, 0] -> [1, 2, 3, 0, 0, 0, 0, 0, 251]
//   [1, 2, 3, 4, 5, 6, 7, 8] -> [1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247]
// Refer: https://github.com/facebook/mysql-5.6/wiki/MyRocks-record-format#memcomparable-format
func EncodeBytes(b []byte, data []byte) []byte {
	dLen := len(data)
	if cap(b)-len(b) < (dLen/encGroupSize+1)*(encGroupSize+1) {
		nb := make([]byte, len(b), len(b)+(dLen/encGroupSize+1)*(encGroupSize+1))
		copy(nb, b)
		b = nb
	}
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			b = append(b, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			b = append(b, data[idx:]...)
			b = append(b, pads[:padCount]...)
		}
		b = append(b, encMarker-byte(padCount))
	}
	return b
}

// DecodeBytes decodes bytes which is encoded by EncodeBytes before,
// returns the leftover bytes and decoded value if no error.
func DecodeBytes(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}

		groupBytes := b[:encGroupSize+1]
		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]

		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", groupBytes)
		}

		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]

		if padCount != 0 {
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", groupBytes)
				}
			}
			break
		}
	}
	return b, data, nil
}

// EncodeInt appends the memcomparable form of v: big endian with the sign bit flipped, so negative
// primary keys sort before positive ones.
func EncodeInt(b []byte, v int64) []byte {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], uint64(v)^signMask)
	return append(b, data[:]...)
}

// DecodeInt decodes a value written by EncodeInt and returns the leftover bytes.
func DecodeInt(b []byte) ([]byte, int64, error) {
	if len(b) < 8 {
		return nil, 0, errors.New("insufficient bytes to decode value")
	}
	u := binary.BigEndian.Uint64(b[:8]) ^ signMask
	return b[8:], int64(u), nil
}
