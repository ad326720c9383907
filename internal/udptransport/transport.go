package udptransport

import (
	"fmt"
	"net"

	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/pkg/logger"
	"github.com/catid/timesync/timesync"
)

// Clock is the caller-supplied monotonic microsecond clock. Production
// callers pass something backed by time.Now(); tests pass a deterministic
// stub.
type Clock func() timesync.Usec64

// Transport drives a peersync.Manager from a single UDP socket, verifying
// every packet's HMAC tag before any field it carries reaches the engine.
type Transport struct {
	conn    *net.UDPConn
	key     []byte
	manager *peersync.Manager
	clock   Clock
}

// New wires a Transport around an already-bound UDP socket.
func New(conn *net.UDPConn, key []byte, manager *peersync.Manager, clock Clock) *Transport {
	return &Transport{conn: conn, key: key, manager: manager, clock: clock}
}

// SendData transmits a data packet carrying the current local time to addr.
func (tr *Transport) SendData(addr *net.UDPAddr) error {
	ts := timesync.Trunc24(tr.clock())
	pkt := EncodeData(tr.key, ts)
	if _, err := tr.conn.WriteToUDP(pkt, addr); err != nil {
		return fmt.Errorf("udptransport: send data packet to %s: %w", addr, err)
	}
	return nil
}

// SendSync transmits a sync packet carrying the current local time and
// minDelta to addr, completing the sender's half of the handshake.
func (tr *Transport) SendSync(addr *net.UDPAddr, minDelta timesync.Counter24) error {
	ts := timesync.Trunc24(tr.clock())
	pkt := EncodeSync(tr.key, ts, minDelta)
	if _, err := tr.conn.WriteToUDP(pkt, addr); err != nil {
		return fmt.Errorf("udptransport: send sync packet to %s: %w", addr, err)
	}
	return nil
}

// ServeOnce reads and processes a single incoming packet. It never returns
// an error for a rejected (unauthenticated or malformed) packet — those are
// logged and dropped, since one bad datagram must not stop the loop.
func (tr *Transport) ServeOnce() error {
	buf := make([]byte, SyncPacketLen)
	n, addr, err := tr.conn.ReadFromUDP(buf)
	if err != nil {
		return fmt.Errorf("udptransport: read: %w", err)
	}

	peer := peersync.PeerID(addr.String())
	decoded, err := Decode(tr.key, buf[:n])
	if err != nil {
		logger.Security("unauthenticated_packet", err.Error(), map[string]interface{}{
			"peer": string(peer),
		})
		return nil
	}

	recvLocal := tr.clock()

	switch decoded.Type {
	case PacketData:
		owd, decision := tr.manager.Ingest(peer, decoded.TS24, recvLocal)
		if decision != peersync.Admit {
			logger.Gate(string(peer), decision.String(), nil)
			return nil
		}
		logger.Peer("ingest", string(peer), map[string]interface{}{"owd_usec": owd})

	case PacketSync:
		tr.manager.IngestMinDelta(peer, decoded.MinDelta)
		logger.Peer("ingest_min_delta", string(peer), map[string]interface{}{"min_delta": decoded.MinDelta})

	default:
		logger.Security("unknown_packet_type", "dropped", map[string]interface{}{
			"peer": string(peer),
			"type": int(decoded.Type),
		})
	}

	return nil
}

// Serve reads packets in a loop until the connection is closed or an
// unrecoverable read error occurs.
func (tr *Transport) Serve() error {
	for {
		if err := tr.ServeOnce(); err != nil {
			return err
		}
	}
}
