// Package icmp implements the 8-byte ICMPv4 header, specialized to the
// echo request/reply pair (types 8 and 0) this core answers. Other ICMP
// message types are out of scope — the frame dispatcher never routes them
// here.
package icmp

import (
	"encoding/binary"
	"errors"

	"github.com/soypat/easyweb"
)

type Type uint8

const (
	TypeEchoReply Type = 0
	TypeEcho      Type = 8
)

var errShort = errors.New("icmp: short frame")

// NewFrame returns a Frame with data set to buf. An error is returned if buf
// is shorter than the 8-byte echo header.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < 8 {
		return Frame{}, errShort
	}
	return Frame{buf: buf}, nil
}

// Frame encapsulates the raw data of an ICMP echo request/reply packet.
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (frm Frame) RawData() []byte { return frm.buf }

func (frm Frame) Type() Type     { return Type(frm.buf[0]) }
func (frm Frame) SetType(t Type) { frm.buf[0] = uint8(t) }

func (frm Frame) Code() uint8        { return frm.buf[1] }
func (frm Frame) SetCode(code uint8) { frm.buf[1] = code }

// CRC returns the checksum field.
func (frm Frame) CRC() uint16 { return binary.BigEndian.Uint16(frm.buf[2:4]) }

// SetCRC sets the checksum field.
func (frm Frame) SetCRC(crc uint16) { binary.BigEndian.PutUint16(frm.buf[2:4], crc) }

// Identifier is the echo identifier field, used to match replies to requests.
func (frm Frame) Identifier() uint16 { return binary.BigEndian.Uint16(frm.buf[4:6]) }

func (frm Frame) SetIdentifier(id uint16) { binary.BigEndian.PutUint16(frm.buf[4:6], id) }

// SequenceNumber is the echo sequence number field.
func (frm Frame) SequenceNumber() uint16 { return binary.BigEndian.Uint16(frm.buf[6:8]) }

func (frm Frame) SetSequenceNumber(seq uint16) { binary.BigEndian.PutUint16(frm.buf[6:8], seq) }

// Data returns the echo payload (bytes beyond identifier/sequence).
func (frm Frame) Data() []byte { return frm.buf[8:] }

// CalculateCRC computes the ICMP checksum (type/code/id/seq/data), treating
// the checksum field itself as zero, per RFC 792.
func (frm Frame) CalculateCRC() uint16 {
	var crc easyweb.CRC791
	crc.AddUint16(binary.BigEndian.Uint16(frm.buf[0:2]))
	crc.Write(frm.buf[4:])
	return crc.Sum16()
}
