package tcp

import "encoding/binary"

// OptionKind identifies a TCP option. This core parses/emits a single kind:
// the Maximum Segment Size option carried on SYN segments (spec §4.D); any
// other option kind encountered on the wire is skipped over, not parsed.
type OptionKind uint8

const (
	OptEnd            OptionKind = 0
	OptNop             OptionKind = 1
	OptMaxSegmentSize OptionKind = 2
)

// sizeMSSOption is the on-wire size, in bytes, of a Maximum Segment Size
// option: kind(1) + length(1) + value(2).
const sizeMSSOption = 4

// PutMSSOption writes a Maximum Segment Size option announcing mss at the
// start of dst, returning the number of bytes written (always 4).
func PutMSSOption(dst []byte, mss uint16) int {
	dst[0] = byte(OptMaxSegmentSize)
	dst[1] = sizeMSSOption
	binary.BigEndian.PutUint16(dst[2:4], mss)
	return sizeMSSOption
}

// ParseMSSOption scans a TCP options buffer for a Maximum Segment Size
// option and returns its value. ok is false if no MSS option is present or
// the buffer is malformed; callers treat that as "peer didn't advertise
// one", not a fatal parse error (spec §7: malformed input is dropped, not
// fatal).
func ParseMSSOption(opts []byte) (mss uint16, ok bool) {
	off := 0
	for off < len(opts) {
		kind := OptionKind(opts[off])
		if kind == OptEnd {
			break
		}
		if kind == OptNop {
			off++
			continue
		}
		if off+1 >= len(opts) {
			break
		}
		size := int(opts[off+1])
		if size < 2 || off+size > len(opts) {
			break
		}
		if kind == OptMaxSegmentSize && size == sizeMSSOption {
			return binary.BigEndian.Uint16(opts[off+2 : off+4]), true
		}
		off += size
	}
	return 0, false
}
