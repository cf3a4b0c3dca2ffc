package tcp

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/soypat/easyweb"
)

var errShort = errors.New("tcp: short buffer")

// NewFrame returns a Frame with data set to buf. An error is returned if buf
// is shorter than the 20-byte fixed header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeader {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of a TCP segment and provides methods for
// manipulating, validating and retrieving its fields and payload. See
// [RFC 9293].
//
// [RFC 9293]: https://datatracker.ietf.org/doc/html/rfc9293
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (tfrm Frame) RawData() []byte { return tfrm.buf }

// SourcePort identifies the sending port.
func (tfrm Frame) SourcePort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[0:2]) }

func (tfrm Frame) SetSourcePort(p uint16) { binary.BigEndian.PutUint16(tfrm.buf[0:2], p) }

// DestinationPort identifies the receiving port.
func (tfrm Frame) DestinationPort() uint16 { return binary.BigEndian.Uint16(tfrm.buf[2:4]) }

func (tfrm Frame) SetDestinationPort(p uint16) { binary.BigEndian.PutUint16(tfrm.buf[2:4], p) }

// Seq is the sequence number of the first data octet in this segment
// (or, if SYN is set, the Initial Sequence Number).
func (tfrm Frame) Seq() Value { return Value(binary.BigEndian.Uint32(tfrm.buf[4:8])) }

func (tfrm Frame) SetSeq(v Value) { binary.BigEndian.PutUint32(tfrm.buf[4:8], uint32(v)) }

// Ack is the next sequence number the sender of this segment expects to receive.
func (tfrm Frame) Ack() Value { return Value(binary.BigEndian.Uint32(tfrm.buf[8:12])) }

func (tfrm Frame) SetAck(v Value) { binary.BigEndian.PutUint32(tfrm.buf[8:12], uint32(v)) }

// OffsetAndFlags returns the data-offset (in 32-bit words) and flags fields.
func (tfrm Frame) OffsetAndFlags() (offset uint8, flags Flags) {
	v := binary.BigEndian.Uint16(tfrm.buf[12:14])
	return uint8(v >> 12), Flags(v).Mask()
}

func (tfrm Frame) SetOffsetAndFlags(offset uint8, flags Flags) {
	v := uint16(offset)<<12 | uint16(flags.Mask())
	binary.BigEndian.PutUint16(tfrm.buf[12:14], v)
}

// HeaderLength is the total TCP header length in bytes, options included,
// derived from the data-offset field.
func (tfrm Frame) HeaderLength() int {
	offset, _ := tfrm.OffsetAndFlags()
	return 4 * int(offset)
}

func (tfrm Frame) WindowSize() uint16 { return binary.BigEndian.Uint16(tfrm.buf[14:16]) }

func (tfrm Frame) SetWindowSize(v uint16) { binary.BigEndian.PutUint16(tfrm.buf[14:16], v) }

// CRC returns the checksum field.
func (tfrm Frame) CRC() uint16 { return binary.BigEndian.Uint16(tfrm.buf[16:18]) }

func (tfrm Frame) SetCRC(cs uint16) { binary.BigEndian.PutUint16(tfrm.buf[16:18], cs) }

func (tfrm Frame) UrgentPtr() uint16 { return binary.BigEndian.Uint16(tfrm.buf[18:20]) }

func (tfrm Frame) SetUrgentPtr(up uint16) { binary.BigEndian.PutUint16(tfrm.buf[18:20], up) }

// Options returns the TCP options portion of the header. May be zero length.
func (tfrm Frame) Options() []byte { return tfrm.buf[sizeHeader:tfrm.HeaderLength()] }

// Payload returns the segment payload, after header and options.
func (tfrm Frame) Payload() []byte { return tfrm.buf[tfrm.HeaderLength():] }

// ClearHeader zeros out the fixed header contents (not options).
func (tfrm Frame) ClearHeader() {
	for i := range tfrm.buf[:sizeHeader] {
		tfrm.buf[i] = 0
	}
}

// CalculateCRC computes the TCP checksum over the header (options included)
// and payload, seeded with the pseudo-header, treating the checksum field
// itself as zero, per RFC 9293 §3.1.
func (tfrm Frame) CalculateCRC(srcIP, dstIP [4]byte) uint16 {
	var crc easyweb.CRC791
	crc.WriteTCPPseudoHeader(srcIP, dstIP, uint16(len(tfrm.buf)), uint8(easyweb.IPProtoTCP))
	crc.Write(tfrm.buf[0:16])
	crc.Write(tfrm.buf[18:])
	return crc.Sum16()
}

func (tfrm Frame) String() string {
	off, flags := tfrm.OffsetAndFlags()
	return fmt.Sprintf("TCP :%d -> :%d <SEQ=%d><ACK=%d><WND=%d>%s HDR=%dB",
		tfrm.SourcePort(), tfrm.DestinationPort(), tfrm.Seq(), tfrm.Ack(),
		tfrm.WindowSize(), flags, int(off)*4)
}
