package arp

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/soypat/easyweb"
	"github.com/soypat/easyweb/ethernet"
)

// NewFrame returns a Frame with data set to buf. An error is returned if the
// buffer is shorter than the 28-byte IPv4-over-Ethernet ARP body.
func NewFrame(buf []byte) (Frame, error) {
	if len(buf) < sizeHeaderv4 {
		return Frame{}, errShortARP
	}
	return Frame{buf: buf[:sizeHeaderv4]}, nil
}

// Frame encapsulates the raw data of an IPv4-over-Ethernet ARP packet and
// provides methods for manipulating and retrieving its fields. See [RFC 826].
//
// [RFC 826]: https://tools.ietf.org/html/rfc826
type Frame struct {
	buf []byte
}

// RawData returns the underlying slice with which the frame was created.
func (afrm Frame) RawData() []byte { return afrm.buf }

// SetHeader writes the fixed hardware=Ethernet/protocol=IPv4 header fields
// common to both ARP requests and replies.
func (afrm Frame) SetHeader(op Operation) {
	const hwEthernet = 1
	binary.BigEndian.PutUint16(afrm.buf[0:2], hwEthernet)
	binary.BigEndian.PutUint16(afrm.buf[2:4], uint16(ethernet.TypeIPv4))
	afrm.buf[4] = 6 // hardware address length
	afrm.buf[5] = 4 // protocol address length
	binary.BigEndian.PutUint16(afrm.buf[6:8], uint16(op))
}

// Operation returns the ARP opcode field.
func (afrm Frame) Operation() Operation { return Operation(binary.BigEndian.Uint16(afrm.buf[6:8])) }

// Sender returns pointers to the sender hardware and protocol addresses.
func (afrm Frame) Sender() (hw *[6]byte, proto *[4]byte) {
	return (*[6]byte)(afrm.buf[8:14]), (*[4]byte)(afrm.buf[14:18])
}

// Target returns pointers to the target hardware and protocol addresses.
func (afrm Frame) Target() (hw *[6]byte, proto *[4]byte) {
	return (*[6]byte)(afrm.buf[18:24]), (*[4]byte)(afrm.buf[24:28])
}

// SwapSenderTarget mirrors sender into target and vice-versa, the first step
// in turning a received request into a reply.
func (afrm Frame) SwapSenderTarget() {
	sh, sp := afrm.Sender()
	th, tp := afrm.Target()
	*sh, *th = *th, *sh
	*sp, *tp = *tp, *sp
}

// ClearHeader zeros out the whole 28-byte packet, addresses included.
func (afrm Frame) ClearHeader() {
	for i := range afrm.buf {
		afrm.buf[i] = 0
	}
}

//
// Validation API.
//

// ValidateSize checks the frame buffer is at least the fixed 28-byte size.
func (afrm Frame) ValidateSize(v *easyweb.Validator) {
	if len(afrm.buf) < sizeHeaderv4 {
		v.AddError(errShortARP)
	}
}

func (afrm Frame) String() string {
	sh, sp := afrm.Sender()
	th, tp := afrm.Target()
	return fmt.Sprintf("ARP %s SENDER=(%s,%s) TARGET=(%s,%s)",
		afrm.Operation(), net.HardwareAddr(sh[:]), netip.AddrFrom4(*sp),
		net.HardwareAddr(th[:]), netip.AddrFrom4(*tp))
}
