package tcp

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Acteus/vib-OS-sub000/pkg/common"
)

const (
	// MaxConnections is the fixed size of the connection pool.
	MaxConnections = 256

	// BufferCapacity is the capacity of each connection's send and
	// receive buffer.
	BufferCapacity = 65536

	// DefaultWindow is the advertised receive window and the assumed
	// send window. It never changes; there is no window update logic.
	DefaultWindow = 65535

	// Ephemeral port range for active opens, half-open: ports are drawn
	// from [EphemeralPortMin, EphemeralPortMax) by a wrapping counter.
	EphemeralPortMin = 49152
	EphemeralPortMax = 65000
)

// Sentinel errors returned by the caller-facing operations. Everything
// encountered while processing inbound segments is absorbed and logged,
// never returned.
var (
	// ErrConnectionPoolFull means no free slot exists in the connection pool.
	ErrConnectionPoolFull = errors.New("tcp: connection pool full")

	// ErrInvalidConnection means the connection id does not name an
	// in-use slot.
	ErrInvalidConnection = errors.New("tcp: invalid connection")

	// ErrNotEstablished means the operation requires the ESTABLISHED state.
	ErrNotEstablished = errors.New("tcp: connection not established")

	// ErrSendBufferFull means queuing the payload would exceed the
	// send buffer capacity.
	ErrSendBufferFull = errors.New("tcp: send buffer full")
)

// Connection is one slot in the pool. A connection is identified by its
// 4-tuple while in use; at most one in-use connection holds a given
// 4-tuple. Exported fields are informational; all mutation goes through
// the Table.
type Connection struct {
	LocalIP    common.IPv4Address
	LocalPort  uint16
	RemoteIP   common.IPv4Address
	RemotePort uint16

	State State
	Seq   uint32 // next sequence number to send
	Ack   uint32 // next sequence number expected from the peer

	RecvWindow uint32
	SendWindow uint32

	recvBuf []byte
	sendBuf []byte
	inUse   bool
}

// SegmentSender transmits an outbound segment between the given
// addresses. The Table never holds its lock across a call, so a slow
// transmit does not block unrelated table users.
type SegmentSender func(local, remote common.IPv4Address, seg *Segment) error

// Table is the fixed pool of 256 connection slots plus the ephemeral
// port counter and ISN generator. One mutex guards the whole table; it
// is held for lookups and mutations only, never across a transmit.
type Table struct {
	mu       sync.Mutex
	conns    [MaxConnections]Connection
	nextPort uint16
	isn      isnGenerator

	send SegmentSender
	log  logrus.FieldLogger
}

// NewTable creates an empty connection table that transmits through send.
func NewTable(send SegmentSender, log logrus.FieldLogger) *Table {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Table{
		nextPort: EphemeralPortMin,
		isn:      newISNGenerator(),
		send:     send,
		log:      log.WithField("proto", "tcp"),
	}
}

// Reset invalidates every slot and restarts the port counter and ISN
// generator, as done at stack initialization.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.conns {
		t.conns[i] = Connection{}
	}
	t.nextPort = EphemeralPortMin
	t.isn = newISNGenerator()
}

// Active returns the number of in-use slots.
func (t *Table) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.conns {
		if t.conns[i].inUse {
			n++
		}
	}
	return n
}

// Get returns a snapshot of the connection in slot id. The snapshot's
// buffer contents are not included.
func (t *Table) Get(id int) (Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= MaxConnections || !t.conns[id].inUse {
		return Connection{}, false
	}
	c := t.conns[id]
	c.recvBuf = nil
	c.sendBuf = nil
	return c, true
}

// Connect performs an active open: it claims the first free slot,
// assigns localIP and the next ephemeral port, generates an ISN,
// transmits a SYN, advances the sequence number past the SYN, and
// leaves the connection in SYN_SENT. It returns the connection id.
func (t *Table) Connect(localIP, remoteIP common.IPv4Address, remotePort uint16) (int, error) {
	t.mu.Lock()

	id := -1
	for i := range t.conns {
		if !t.conns[i].inUse {
			id = i
			break
		}
	}
	if id == -1 {
		t.mu.Unlock()
		return -1, ErrConnectionPoolFull
	}

	port := t.nextPort
	t.nextPort++
	if t.nextPort >= EphemeralPortMax {
		t.nextPort = EphemeralPortMin
	}

	isn := t.isn.next()
	conn := &t.conns[id]
	*conn = Connection{
		LocalIP:    localIP,
		LocalPort:  port,
		RemoteIP:   remoteIP,
		RemotePort: remotePort,
		State:      StateSynSent,
		Seq:        isn + 1, // the SYN consumes one sequence number
		RecvWindow: DefaultWindow,
		SendWindow: DefaultWindow,
		recvBuf:    make([]byte, 0, BufferCapacity),
		sendBuf:    make([]byte, 0, BufferCapacity),
		inUse:      true,
	}

	syn := NewSegment(conn.LocalPort, conn.RemotePort, isn, 0, FlagSYN, uint16(conn.RecvWindow), nil)
	local, remote := conn.LocalIP, conn.RemoteIP
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{
		"remote": remote,
		"port":   remotePort,
		"seq":    isn,
	}).Info("connecting")

	if err := t.send(local, remote, syn); err != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.release(id)
		return -1, err
	}
	return id, nil
}

// Send queues data on an ESTABLISHED connection and immediately
// transmits it as a single PSH+ACK segment; there is no MTU
// segmentation. On successful transmission the sequence number advances
// by the payload length and the number of bytes queued is returned. In
// any other state nothing is queued.
func (t *Table) Send(id int, data []byte) (int, error) {
	t.mu.Lock()

	conn, err := t.checkConn(id)
	if err != nil {
		t.mu.Unlock()
		return -1, err
	}
	if conn.State != StateEstablished {
		if conn.State == StateTimeWait {
			t.release(id)
		}
		t.mu.Unlock()
		return -1, ErrNotEstablished
	}
	if len(conn.sendBuf)+len(data) > BufferCapacity {
		t.mu.Unlock()
		return -1, ErrSendBufferFull
	}

	conn.sendBuf = append(conn.sendBuf, data...)

	payload := make([]byte, len(data))
	copy(payload, data)
	seg := NewSegment(conn.LocalPort, conn.RemotePort, conn.Seq, conn.Ack, FlagPSH|FlagACK, uint16(conn.RecvWindow), payload)
	local, remote := conn.LocalIP, conn.RemoteIP
	// The payload consumes sequence space whether or not the transmit
	// succeeds; there is no retransmission to resend it.
	conn.Seq += uint32(len(data))
	t.mu.Unlock()

	if err := t.send(local, remote, seg); err != nil {
		return -1, err
	}
	return len(data), nil
}

// Recv copies up to len(buf) bytes from the front of the receive
// buffer and compacts the remainder. It returns 0 when the buffer is
// empty. A connection lingering in TIME_WAIT is released on the attempt.
func (t *Table) Recv(id int, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.checkConn(id)
	if err != nil {
		return 0, err
	}
	if conn.State == StateTimeWait {
		t.release(id)
		return 0, nil
	}
	if len(conn.recvBuf) == 0 {
		return 0, nil
	}

	n := copy(buf, conn.recvBuf)
	remaining := copy(conn.recvBuf, conn.recvBuf[n:])
	conn.recvBuf = conn.recvBuf[:remaining]
	return n, nil
}

// Close initiates or completes connection teardown. From ESTABLISHED it
// sends FIN+ACK and enters FIN_WAIT_1 (active close); from CLOSE_WAIT it
// sends FIN+ACK and enters LAST_ACK (passive close completion); in
// SYN_SENT or LISTEN the slot is released with no segment sent. Any
// other state is a no-op, so Close is idempotent.
func (t *Table) Close(id int) error {
	t.mu.Lock()

	conn, err := t.checkConn(id)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	var fin *Segment
	switch conn.State {
	case StateEstablished:
		conn.State = StateFinWait1
		fin = NewSegment(conn.LocalPort, conn.RemotePort, conn.Seq, conn.Ack, FlagFIN|FlagACK, uint16(conn.RecvWindow), nil)
		conn.Seq++ // the FIN consumes one sequence number
	case StateCloseWait:
		conn.State = StateLastAck
		fin = NewSegment(conn.LocalPort, conn.RemotePort, conn.Seq, conn.Ack, FlagFIN|FlagACK, uint16(conn.RecvWindow), nil)
		conn.Seq++
	case StateSynSent, StateListen:
		t.release(id)
		t.mu.Unlock()
		return nil
	case StateTimeWait:
		t.release(id)
		t.mu.Unlock()
		return nil
	default:
		// Teardown already in progress.
		t.mu.Unlock()
		return nil
	}

	newState := conn.State
	local, remote := conn.LocalIP, conn.RemoteIP
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{"remote": remote, "state": newState}).Debug("sent FIN")

	// Best-effort: teardown proceeds even if the FIN never made it out.
	if err := t.send(local, remote, fin); err != nil {
		t.log.WithError(err).Warn("FIN transmit failed")
	}
	return nil
}

// checkConn validates id and returns the slot. Caller holds t.mu.
func (t *Table) checkConn(id int) (*Connection, error) {
	if id < 0 || id >= MaxConnections || !t.conns[id].inUse {
		return nil, ErrInvalidConnection
	}
	return &t.conns[id], nil
}

// release frees a slot. Caller holds t.mu.
func (t *Table) release(id int) {
	t.conns[id] = Connection{}
}

// HandleSegment advances the state machine for the connection matching
// the segment's 4-tuple. Segments for unknown connections are dropped
// and, unless they carry RST, logged; no connection is ever created here
// (the core has no passive open). Outbound ACKs generated by a
// transition are transmitted after the table lock is released.
func (t *Table) HandleSegment(src, dst common.IPv4Address, seg *Segment) {
	t.mu.Lock()

	id := t.lookupLocked(dst, seg.DestinationPort, src, seg.SourcePort)
	if id == -1 {
		t.mu.Unlock()
		if !seg.HasFlag(FlagRST) {
			t.log.WithFields(logrus.Fields{
				"src":   src,
				"sport": seg.SourcePort,
				"dport": seg.DestinationPort,
			}).Debug("segment for unknown connection dropped")
		}
		return
	}

	conn := &t.conns[id]
	var out []*Segment
	emitACK := func() {
		out = append(out, NewSegment(conn.LocalPort, conn.RemotePort, conn.Seq, conn.Ack, FlagACK, uint16(conn.RecvWindow), nil))
	}
	payloadLen := uint32(len(seg.Data))

	switch conn.State {
	case StateSynSent:
		switch {
		case seg.HasFlag(FlagSYN) && seg.HasFlag(FlagACK):
			conn.Ack = seg.SequenceNumber + 1
			conn.State = StateEstablished
			emitACK()
			t.log.WithFields(logrus.Fields{"remote": conn.RemoteIP, "port": conn.RemotePort}).Info("connection established")
		case seg.HasFlag(FlagRST):
			t.log.WithField("remote", conn.RemoteIP).Info("connection refused")
			t.release(id)
		}

	case StateEstablished:
		switch {
		case seg.HasFlag(FlagFIN):
			conn.Ack = seg.SequenceNumber + payloadLen + 1
			conn.State = StateCloseWait
			emitACK()
		case payloadLen > 0:
			if len(conn.recvBuf)+len(seg.Data) <= BufferCapacity {
				conn.recvBuf = append(conn.recvBuf, seg.Data...)
				conn.Ack = seg.SequenceNumber + payloadLen
				emitACK()
			}
		case seg.HasFlag(FlagACK):
			// Acknowledged bytes are never trimmed from the send
			// buffer. See the capacity note in README.md.
		}

	case StateFinWait1:
		if seg.HasFlag(FlagACK) {
			conn.State = StateFinWait2
		}
		if seg.HasFlag(FlagFIN) {
			conn.Ack = seg.SequenceNumber + 1
			emitACK()
			if conn.State == StateFinWait2 {
				conn.State = StateTimeWait
			} else {
				conn.State = StateClosing
			}
		}

	case StateFinWait2:
		if seg.HasFlag(FlagFIN) {
			conn.Ack = seg.SequenceNumber + 1
			emitACK()
			conn.State = StateTimeWait
		}

	case StateClosing:
		if seg.HasFlag(FlagACK) {
			conn.State = StateTimeWait
		}

	case StateLastAck:
		if seg.HasFlag(FlagACK) {
			t.log.WithField("remote", conn.RemoteIP).Debug("connection closed")
			t.release(id)
		}

	case StateTimeWait:
		// No 2xMSL timer; the slot is reclaimed on the next segment.
		t.release(id)
	}

	local, remote := dst, src
	t.mu.Unlock()

	for _, s := range out {
		if err := t.send(local, remote, s); err != nil {
			t.log.WithError(err).Warn("ACK transmit failed")
		}
	}
}

// lookupLocked finds the in-use slot matching the exact 4-tuple.
// Caller holds t.mu.
func (t *Table) lookupLocked(localIP common.IPv4Address, localPort uint16, remoteIP common.IPv4Address, remotePort uint16) int {
	for i := range t.conns {
		c := &t.conns[i]
		if c.inUse &&
			c.LocalIP == localIP && c.LocalPort == localPort &&
			c.RemoteIP == remoteIP && c.RemotePort == remotePort {
			return i
		}
	}
	return -1
}
