// Package tcpstack implements the easyWEB connection engine: a
// single-connection TCP state machine (RFC 793 subset) driving an
// external Nic and Clock. All mutable connection state — state,
// sequence numbers, flags, buffers — lives in one Engine value, so the
// single-connection contract of the original design is kept while
// still permitting tests to construct as many independent Engines as
// they like, each against its own nic.SimNIC and fake clockwork.Clock.
//
// Engine owns exactly the responsibilities of spec sections 4.D
// through 4.H: frame builders, the frame parser/dispatcher, the ARP
// resolver, the TCP state machine, and the socket API
// (LowLevelInit/PassiveOpen/ActiveOpen/Close/TransmitTxBuffer/
// ReleaseRxBuffer/Poll).
package tcpstack
