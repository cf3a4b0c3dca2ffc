package nic

import "sync"

// SimNIC is an in-memory loopback Nic: two FIFOs of whole frames, one
// for frames arriving from the simulated wire (RX) and one for frames
// the engine transmits (TX). Tests inject RX frames with PushRX and
// assert on transmitted frames with PopTX; the CLI demo uses a single
// SimNIC the same way, pushing the simulated peer's frames with PushRX.
//
// SimNIC ignores the register-port methods (WriteReg/ReadReg/
// ReadRegHBFirst): a simulated controller has no registers to
// configure. They are still part of the interface so SimNIC satisfies
// Nic, and are harmless no-ops here.
type SimNIC struct {
	mu      sync.Mutex
	rx      [][]byte
	rxStats []uint16
	cur     []byte // current RX frame being streamed out
	curStat uint16
	tx      [][]byte
	pending []byte
	rdy     bool
}

// NewSimNIC returns a SimNIC ready to accept pushed RX frames and
// report itself ready for transmission.
func NewSimNIC() *SimNIC {
	return &SimNIC{rdy: true}
}

// PushRX enqueues frame (raw Ethernet bytes, destination address
// included) to be returned by the next RxEvent/ReadFrameWord*/
// CopyFromFrame calls. stat is the RX status word RxEvent should
// report for this frame (RXOK|RXIndividualAddr or RXOK|RXBroadcast).
//
// The reference controller's frame FIFO prefixes every received frame
// with a status word and a 16-bit little-endian length before the
// Ethernet bytes (spec.md §4.E step 1, "discard NIC RX-status word;
// read 16-bit frame length"); PushRX adds that prefix so callers only
// ever deal in raw frame bytes.
func (s *SimNIC) PushRX(frame []byte, stat uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, 4+len(frame))
	cp[0] = byte(stat)
	cp[1] = byte(stat >> 8)
	cp[2] = byte(len(frame))
	cp[3] = byte(len(frame) >> 8)
	copy(cp[4:], frame)
	s.rx = append(s.rx, cp)
	s.rxStats = append(s.rxStats, stat)
}

// PopTX removes and returns the oldest transmitted frame, or nil if
// none is queued.
func (s *SimNIC) PopTX() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tx) == 0 {
		return nil
	}
	frame := s.tx[0]
	s.tx = s.tx[1:]
	return frame
}

// SetReady controls what RdyForTx reports, for exercising the
// ERR_ETHERNET path (spec.md §4.G "transmit path").
func (s *SimNIC) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rdy = ready
}

func (s *SimNIC) WriteReg(addr uint8, value uint16) {}
func (s *SimNIC) ReadReg(addr uint8) uint16          { return 0 }
func (s *SimNIC) ReadRegHBFirst(addr uint8) uint16   { return 0 }

func (s *SimNIC) CopyToFrame(buf []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, buf...)
}

func (s *SimNIC) RequestSend(size uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rdy {
		s.pending = nil
		return false
	}
	frame := make([]byte, size)
	copy(frame, s.pending)
	s.tx = append(s.tx, frame)
	s.pending = nil
	return true
}

func (s *SimNIC) RdyForTx() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rdy
}

func (s *SimNIC) RxEvent() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		// Previous frame not fully drained; the reference controller's
		// skip-on-read semantics discard whatever was left.
		s.cur = nil
	}
	if len(s.rx) == 0 {
		return 0
	}
	s.cur = s.rx[0]
	s.curStat = s.rxStats[0]
	s.rx = s.rx[1:]
	s.rxStats = s.rxStats[1:]
	return s.curStat
}

func (s *SimNIC) ReadFrameWordLE() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cur) < 2 {
		s.cur = nil
		return 0
	}
	v := uint16(s.cur[0]) | uint16(s.cur[1])<<8
	s.cur = s.cur[2:]
	return v
}

func (s *SimNIC) ReadFrameWordBE() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cur) < 2 {
		s.cur = nil
		return 0
	}
	v := uint16(s.cur[0])<<8 | uint16(s.cur[1])
	s.cur = s.cur[2:]
	return v
}

func (s *SimNIC) CopyFromFrame(dst []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := copy(dst, s.cur)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	if n >= len(s.cur) {
		s.cur = nil
	} else {
		s.cur = s.cur[n:]
	}
}

func (s *SimNIC) DummyReadFrame(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n >= len(s.cur) {
		s.cur = nil
	} else {
		s.cur = s.cur[n:]
	}
}
