// Package connection implements picoNet's Connection state machine:
// handshake, sequencing, selective ACK, RTT estimation, and
// retransmission, per SPEC_FULL.md §4.6 and §3.
//
// The field layout and the split-mutex discipline are grounded in the
// teacher's source/protocol/raknet.go Session type: one mutex guards
// connection state (State, sequence counters, RTT, timestamps), a
// second, independent mutex guards the pending-ACK/dedup/received-queue
// data so that socket I/O never happens while either lock is held
// (Design Note §9, "guard the unacked table, the dedup window, and the
// received-payload queue with a single lock held only during
// enqueue/dequeue -- not across socket I/O").
package connection

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"roguevault/internal/netcode/metrics"
	"roguevault/internal/netcode/packet"
	"roguevault/pkg/logger"
)

// State is the connection's position in its handshake/liveness state
// machine (§3, "Connection").
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

const (
	handshakeResendInterval = 1 * time.Second
	handshakeTotalTimeout   = 5 * time.Second
	idleTimeout             = 5 * time.Second
	minRTT                  = 1 * time.Millisecond
	initialRTT              = 100 * time.Millisecond
	minRetransmit           = 100 * time.Millisecond
	dedupWindowSize         = 32
)

var (
	// ErrNotConnected is returned by Send when the connection is not
	// in the CONNECTED state (§4.6, "Send. Only legal in CONNECTED.").
	ErrNotConnected = errors.New("picoNet: connection not in CONNECTED state")
	// ErrHandshakeTimeout marks a handshake that exceeded its 5s budget.
	ErrHandshakeTimeout = errors.New("picoNet: handshake timeout")
	// ErrIdleTimeout marks a connection that exceeded the 5s idle budget.
	ErrIdleTimeout = errors.New("picoNet: idle timeout")
)

type unackedEntry struct {
	sendTime time.Time
	packed   []byte
}

// Connection owns a UDP socket exclusively (§5, "shared resources").
type Connection struct {
	socket     *net.UDPConn
	protocolID uint32
	collector  *metrics.ConnectionCollector

	// connMu guards state-machine fields.
	connMu            sync.RWMutex
	state             State
	remote            *net.UDPAddr
	nextSequence      uint16
	latestRemoteSeq   uint16
	haveReceivedAny   bool
	ackBitfield       uint16
	rtt               time.Duration
	lastReceive       time.Time
	handshakeStart    time.Time
	lastChallengeSent time.Time

	// pendingMu guards the unacked table, dedup window, and received
	// queue -- never held across socket I/O.
	pendingMu sync.Mutex
	unacked   map[uint16]unackedEntry
	dedup     []uint16
	received  [][]byte
}

// New wraps an already-bound UDP socket. protocolID is the 32-bit
// constant both peers must agree on (§6). collector may be nil.
func New(socket *net.UDPConn, protocolID uint32, collector *metrics.ConnectionCollector) *Connection {
	return &Connection{
		socket:     socket,
		protocolID: protocolID,
		collector:  collector,
		state:      Disconnected,
		rtt:        initialRTT,
		unacked:    make(map[uint16]unackedEntry),
	}
}

// State returns the connection's current state.
func (c *Connection) State() State {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.state
}

// RTT returns the current smoothed RTT estimate.
func (c *Connection) RTT() time.Duration {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.rtt
}

// Connect initiates a handshake toward remote (§4.6). Either side may
// call Connect; the handshake is symmetric.
func (c *Connection) Connect(remote *net.UDPAddr) error {
	c.connMu.Lock()
	c.remote = remote
	c.state = Connecting
	now := time.Now()
	c.handshakeStart = now
	c.lastChallengeSent = now
	c.connMu.Unlock()

	return c.sendRaw(remote, packet.HandshakeChallenge)
}

// Send serializes and transmits an application payload. Only legal
// while CONNECTED (§4.6).
func (c *Connection) Send(payload []byte) error {
	c.connMu.Lock()
	if c.state != Connected {
		c.connMu.Unlock()
		return ErrNotConnected
	}
	seq := c.nextSequence
	remote := c.remote
	hdr := packet.Header{
		ProtocolID:  c.protocolID,
		Sequence:    uint32(seq),
		Ack:         c.latestRemoteSeq,
		AckBitfield: c.ackBitfield,
	}
	c.nextSequence++ // uint16: wraps modulo 2^16
	c.connMu.Unlock()

	packed := packet.Pack(packet.Packet{Header: hdr, Payload: payload})
	if err := c.sendRaw(remote, packed); err != nil {
		return err
	}

	c.pendingMu.Lock()
	c.unacked[seq] = unackedEntry{sendTime: time.Now(), packed: packed}
	c.pendingMu.Unlock()
	if c.collector != nil {
		c.collector.IncSent()
	}
	return nil
}

// SendAckOnly transmits an empty-payload packet (sequence 0) carrying
// the current ack state, without recording it in the unacked table
// (§4.6). Used to keep ACK flow going when the application has
// nothing to send.
func (c *Connection) SendAckOnly() error {
	c.connMu.Lock()
	if c.state != Connected {
		c.connMu.Unlock()
		return ErrNotConnected
	}
	remote := c.remote
	hdr := packet.Header{
		ProtocolID:  c.protocolID,
		Sequence:    0,
		Ack:         c.latestRemoteSeq,
		AckBitfield: c.ackBitfield,
	}
	c.connMu.Unlock()

	packed := packet.Pack(packet.Packet{Header: hdr, Payload: nil})
	return c.sendRaw(remote, packed)
}

// Recv pops the oldest undelivered payload for the application, or
// returns ok=false if none is queued.
func (c *Connection) Recv() (payload []byte, ok bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.received) == 0 {
		return nil, false
	}
	payload = c.received[0]
	c.received = c.received[1:]
	return payload, true
}

func (c *Connection) sendRaw(remote *net.UDPAddr, data []byte) error {
	if remote == nil {
		return fmt.Errorf("picoNet: no remote address configured")
	}
	_, err := c.socket.WriteToUDP(data, remote)
	if err != nil {
		return fmt.Errorf("picoNet: write failed: %w", err)
	}
	return nil
}

// Update is the single progression point (§5): it drains the socket
// (non-blocking), advances handshake/idle timers, and retransmits
// stale unacked packets. Call regularly (typical cadence 10-100 Hz).
func (c *Connection) Update() {
	c.checkHandshakeTimers()
	c.drainSocket()
	c.checkIdleTimeout()
	c.retransmitStale()
}

func (c *Connection) checkHandshakeTimers() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.state != Connecting {
		return
	}
	now := time.Now()
	if now.Sub(c.handshakeStart) > handshakeTotalTimeout {
		c.state = Disconnected
		logger.Warn("picoNet: handshake timed out after %s", handshakeTotalTimeout)
		return
	}
	if now.Sub(c.lastChallengeSent) >= handshakeResendInterval {
		c.lastChallengeSent = now
		remote := c.remote
		c.connMu.Unlock()
		_ = c.sendRaw(remote, packet.HandshakeChallenge)
		c.connMu.Lock()
	}
}

func (c *Connection) checkIdleTimeout() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.state != Connected {
		return
	}
	if time.Since(c.lastReceive) > idleTimeout {
		c.state = Disconnected
		logger.Warn("picoNet: connection idle timeout after %s", idleTimeout)
	}
}

// drainSocket performs non-blocking reads: each attempt sets a read
// deadline one millisecond out so the read returns almost at once with
// either a datagram or a timeout ("no data") error, per §5's mandate
// against blocking the update thread on network I/O. (A deadline of
// exactly now has already expired when the read starts, so it would
// never return a datagram.)
func (c *Connection) drainSocket() {
	buf := make([]byte, 2048)
	for {
		if err := c.socket.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			return
		}
		n, from, err := c.socket.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		c.handleRaw(data, from)
	}
}

func (c *Connection) handleRaw(data []byte, from *net.UDPAddr) {
	switch {
	case packet.IsHandshakeChallenge(data):
		c.handleChallenge(from)
	case packet.IsHandshakeResponse(data):
		c.handleResponse(from)
	default:
		c.handleApplicationPacket(data, from)
	}
}

// handleChallenge implements §4.6's three challenge-arrival cases.
func (c *Connection) handleChallenge(from *net.UDPAddr) {
	c.connMu.Lock()
	switch c.state {
	case Disconnected:
		c.adoptRemoteLocked(from)
		c.state = Connected
		c.lastReceive = time.Now()
		c.connMu.Unlock()
		c.resetReliabilityState()
		_ = c.sendRaw(from, packet.HandshakeResponse)
		return
	case Connecting:
		if !sameAddr(c.remote, from) {
			c.connMu.Unlock()
			return
		}
		c.state = Connected
		c.lastReceive = time.Now()
		c.connMu.Unlock()
		c.resetReliabilityState()
		_ = c.sendRaw(from, packet.HandshakeResponse)
		return
	case Connected:
		if !sameAddr(c.remote, from) {
			c.connMu.Unlock()
			return
		}
		c.connMu.Unlock()
		_ = c.sendRaw(from, packet.HandshakeResponse)
		return
	}
	c.connMu.Unlock()
}

func (c *Connection) handleResponse(from *net.UDPAddr) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.state == Connecting && sameAddr(c.remote, from) {
		c.state = Connected
		c.lastReceive = time.Now()
	}
}

func (c *Connection) adoptRemoteLocked(from *net.UDPAddr) {
	c.remote = from
}

func (c *Connection) resetReliabilityState() {
	c.connMu.Lock()
	c.nextSequence = 0
	c.latestRemoteSeq = 0
	c.haveReceivedAny = false
	c.ackBitfield = 0
	c.connMu.Unlock()

	c.pendingMu.Lock()
	c.unacked = make(map[uint16]unackedEntry)
	c.dedup = nil
	c.received = nil
	c.pendingMu.Unlock()
}

func (c *Connection) handleApplicationPacket(data []byte, from *net.UDPAddr) {
	c.connMu.RLock()
	connected := c.state == Connected
	remote := c.remote
	c.connMu.RUnlock()
	if !connected || !sameAddr(remote, from) {
		return
	}

	p, err := packet.Unpack(data)
	if err != nil {
		return // protocol error: too small, silently dropped (§7)
	}
	if p.Header.ProtocolID != c.protocolID {
		return // protocol error: mismatched protocol id, silently dropped (§7)
	}

	c.connMu.Lock()
	c.lastReceive = time.Now()
	c.connMu.Unlock()

	c.processIncomingAck(p.Header.Ack, p.Header.AckBitfield)
	c.processIncomingSequence(uint16(p.Header.Sequence), p.Payload)
}

// processIncomingAck removes every acknowledged sequence from the
// unacked table (the direct ack plus each set bit in the bitfield) and
// folds each removal's age into the RTT EWMA (§3, §4.6).
func (c *Connection) processIncomingAck(ack uint16, bitfield uint16) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	c.removeUnackedLocked(ack)
	for i := 0; i < 16; i++ {
		if bitfield&(1<<uint(i)) != 0 {
			seq := ack - 1 - uint16(i)
			c.removeUnackedLocked(seq)
		}
	}
}

func (c *Connection) removeUnackedLocked(seq uint16) {
	entry, ok := c.unacked[seq]
	if !ok {
		return
	}
	delete(c.unacked, seq)
	sample := time.Since(entry.sendTime)

	c.connMu.Lock()
	c.rtt = time.Duration(0.9*float64(c.rtt) + 0.1*float64(sample))
	if c.rtt < minRTT {
		c.rtt = minRTT
	}
	c.connMu.Unlock()
	if c.collector != nil {
		c.collector.ObserveRTT(c.RTT())
	}
}

// processIncomingSequence applies the dedup window and the bitfield
// update rules from §4.6.
func (c *Connection) processIncomingSequence(seq uint16, payload []byte) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for _, s := range c.dedup {
		if s == seq {
			if c.collector != nil {
				c.collector.IncDuplicateDropped()
			}
			return // idempotent delivery: drop duplicate
		}
	}
	c.dedup = append(c.dedup, seq)
	if len(c.dedup) > dedupWindowSize {
		c.dedup = c.dedup[len(c.dedup)-dedupWindowSize:]
	}

	delivered := make([]byte, len(payload))
	copy(delivered, payload)
	c.received = append(c.received, delivered)
	if c.collector != nil {
		c.collector.IncReceived()
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if !c.haveReceivedAny || packet.IsSequenceGreater(seq, c.latestRemoteSeq) {
		diff := int(seq) - int(c.latestRemoteSeq)
		if !c.haveReceivedAny {
			diff = 0
		} else if diff < 0 {
			diff += 65536
		}
		if diff > 16 {
			c.ackBitfield = 0
		} else if diff > 0 {
			c.ackBitfield = (c.ackBitfield << uint(diff)) | (1 << uint(diff-1))
		}
		c.latestRemoteSeq = seq
		c.haveReceivedAny = true
		return
	}

	diff := int(c.latestRemoteSeq) - int(seq)
	if diff < 0 {
		diff += 65536
	}
	if diff >= 1 && diff <= 16 {
		c.ackBitfield |= 1 << uint(diff-1)
	}
}

// retransmitStale resends every unacked entry older than
// max(100ms, 1.5*rtt), refreshing its send-time (§3, §4.6).
func (c *Connection) retransmitStale() {
	if c.State() != Connected {
		return
	}
	threshold := c.retransmitThreshold()

	c.pendingMu.Lock()
	var toResend []unackedEntry
	now := time.Now()
	for seq, entry := range c.unacked {
		if now.Sub(entry.sendTime) > threshold {
			toResend = append(toResend, entry)
			entry.sendTime = now
			c.unacked[seq] = entry
		}
	}
	c.pendingMu.Unlock()

	c.connMu.RLock()
	remote := c.remote
	c.connMu.RUnlock()

	for _, entry := range toResend {
		_ = c.sendRaw(remote, entry.packed)
		if c.collector != nil {
			c.collector.IncRetransmitted()
		}
	}
}

func (c *Connection) retransmitThreshold() time.Duration {
	rtt := c.RTT()
	threshold := time.Duration(1.5 * float64(rtt))
	if threshold < minRetransmit {
		return minRetransmit
	}
	return threshold
}

// PendingCount reports how many packets are currently unacknowledged;
// exposed for metrics and tests.
func (c *Connection) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.unacked)
}

func sameAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
