package ipv4

const sizeHeader = 20

// Flags holds the flags+fragment-offset field of an IPv4 header (16 bits).
type Flags uint16

// DontFragment reports the Don't Fragment bit. This core never fragments
// outbound IP datagrams and sets DF unconditionally on transmit.
func (f Flags) DontFragment() bool { return f&0x4000 != 0 }

// MoreFragments reports the More Fragments bit. Any inbound datagram with MF
// set, or a non-zero FragmentOffset, belongs to a fragmented datagram this
// core cannot reassemble and must be dropped (spec: fragment reassembly is
// an explicit non-goal).
func (f Flags) MoreFragments() bool { return f&0x2000 != 0 }

// FragmentOffset specifies the offset, in 8-byte units, of this fragment
// relative to the start of the original unfragmented datagram.
func (f Flags) FragmentOffset() uint16 { return uint16(f) & 0x1fff }
