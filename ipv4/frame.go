package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/soypat/easyweb"
)

// NewFrame returns a Frame with data set to buf. An error is returned if the
// buffer is smaller than the 20-byte fixed header (this core never emits or
// expects IP options).
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an IPv4 datagram and provides methods
// for manipulating, validating and retrieving its fields and payload. IHL is
// always 5 (no options) on frames this core builds. See [RFC 791].
//
// [RFC 791]: https://tools.ietf.org/html/rfc791
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (ifrm Frame) RawData() []byte { return ifrm.buf }

func (ifrm Frame) ihl() uint8 { return ifrm.buf[0] & 0xf }

// HeaderLength returns the header length in bytes, derived from the IHL nibble.
func (ifrm Frame) HeaderLength() int { return int(ifrm.ihl()) * 4 }

// VersionAndIHL returns the version and IHL nibbles of the first header byte.
func (ifrm Frame) VersionAndIHL() (version, ihl uint8) {
	v := ifrm.buf[0]
	return v >> 4, v & 0xf
}

// SetVersionAndIHL sets the first header byte.
func (ifrm Frame) SetVersionAndIHL(version, ihl uint8) { ifrm.buf[0] = version<<4 | ihl&0xf }

// TotalLength is the entire datagram size in bytes, header included.
func (ifrm Frame) TotalLength() uint16 { return binary.BigEndian.Uint16(ifrm.buf[2:4]) }

// SetTotalLength sets the TotalLength field.
func (ifrm Frame) SetTotalLength(tl uint16) { binary.BigEndian.PutUint16(ifrm.buf[2:4], tl) }

// ID is the datagram identification field, used to group fragments. This
// core always emits 0 (it never fragments).
func (ifrm Frame) ID() uint16 { return binary.BigEndian.Uint16(ifrm.buf[4:6]) }

// SetID sets the ID field.
func (ifrm Frame) SetID(id uint16) { binary.BigEndian.PutUint16(ifrm.buf[4:6], id) }

// Flags returns the flags+fragment-offset field.
func (ifrm Frame) Flags() Flags { return Flags(binary.BigEndian.Uint16(ifrm.buf[6:8])) }

// SetFlags sets the flags+fragment-offset field.
func (ifrm Frame) SetFlags(flags Flags) { binary.BigEndian.PutUint16(ifrm.buf[6:8], uint16(flags)) }

// TTL is the time-to-live hop count.
func (ifrm Frame) TTL() uint8 { return ifrm.buf[8] }

// SetTTL sets the TTL field.
func (ifrm Frame) SetTTL(ttl uint8) { ifrm.buf[8] = ttl }

// Protocol identifies the transport protocol carried in the payload.
func (ifrm Frame) Protocol() easyweb.IPProto { return easyweb.IPProto(ifrm.buf[9]) }

// SetProtocol sets the Protocol field.
func (ifrm Frame) SetProtocol(proto easyweb.IPProto) { ifrm.buf[9] = uint8(proto) }

// CRC returns the header checksum field.
func (ifrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(ifrm.buf[10:12]) }

// SetCRC sets the header checksum field.
func (ifrm Frame) SetCRC(cs uint16) { binary.BigEndian.PutUint16(ifrm.buf[10:12], cs) }

// CalculateHeaderCRC computes the IPv4 header checksum treating the CRC
// field itself as zero, per RFC 791.
func (ifrm Frame) CalculateHeaderCRC() uint16 {
	hl := ifrm.HeaderLength()
	var crc easyweb.CRC791
	crc.Write(ifrm.buf[0:10])
	crc.Write(ifrm.buf[12:hl])
	return crc.Sum16()
}

// SourceAddr returns a pointer to the 4-byte source address.
func (ifrm Frame) SourceAddr() *[4]byte { return (*[4]byte)(ifrm.buf[12:16]) }

// DestinationAddr returns a pointer to the 4-byte destination address.
func (ifrm Frame) DestinationAddr() *[4]byte { return (*[4]byte)(ifrm.buf[16:20]) }

// Payload returns the datagram payload (after the header, up to TotalLength).
func (ifrm Frame) Payload() []byte {
	hl := ifrm.HeaderLength()
	tl := ifrm.TotalLength()
	return ifrm.buf[hl:tl]
}

// ClearHeader zeros out the fixed header contents.
func (ifrm Frame) ClearHeader() {
	for i := range ifrm.buf[:sizeHeader] {
		ifrm.buf[i] = 0
	}
}

//
// Validation API.
//

var (
	errShort  = errors.New("ipv4: short buffer")
	errBadTL  = errors.New("ipv4: bad total length")
	errBadIHL = errors.New("ipv4: bad IHL")
)

// ValidateSize checks the TotalLength and IHL fields are consistent with the
// buffer actually available.
func (ifrm Frame) ValidateSize(v *easyweb.Validator) {
	ihl := ifrm.ihl()
	tl := ifrm.TotalLength()
	if tl < sizeHeader || int(tl) > len(ifrm.buf) {
		v.AddError(errBadTL)
	}
	if ihl < 5 {
		v.AddError(errBadIHL)
	}
}

func (ifrm Frame) String() string {
	src := netip.AddrFrom4(*ifrm.SourceAddr())
	dst := netip.AddrFrom4(*ifrm.DestinationAddr())
	return fmt.Sprintf("IP %s SRC=%s DST=%s LEN=%d TTL=%d ID=%d",
		ifrm.Protocol(), src, dst, ifrm.TotalLength(), ifrm.TTL(), ifrm.ID())
}
