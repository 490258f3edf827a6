package gossip

import (
	"context"
	"encoding/hex"
	"net"

	"github.com/f3rmion/musig2-node/internal/log"
)

// peerLink is one live connection to a peer, bound to the peer's public key
// after the identity handshake. Reads and writes run on dedicated goroutines;
// a closed connection terminates the read loop and removes the peer.
type peerLink struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	node      *Node
	conn      net.Conn
	key       []byte
	// outbound marks the connection we dialed, as opposed to one accepted
	// from the peer. The duplicate tie-break needs the direction.
	outbound bool
	writeCh  chan Envelope
}

func newPeerLink(ctx context.Context, node *Node, conn net.Conn, key []byte, outbound bool) *peerLink {
	peerCtx, cancel := context.WithCancel(ctx)

	p := &peerLink{
		ctx:       peerCtx,
		ctxCancel: cancel,
		node:      node,
		conn:      conn,
		key:       key,
		outbound:  outbound,
		writeCh:   make(chan Envelope, 32),
	}

	go p.readStream()
	go p.writeStream()

	return p
}

func (p *peerLink) KeyHex() string {
	return hex.EncodeToString(p.key)
}

func (p *peerLink) Close() error {
	p.ctxCancel()
	return p.conn.Close()
}

func (p *peerLink) send(env Envelope) {
	select {
	case p.writeCh <- env:
	case <-p.ctx.Done():
	}
}

func (p *peerLink) readStream() {
	for {
		env, err := readEnvelope(p.conn)
		if err != nil {
			log.Debugw("Peer stream closed",
				"peer", p.KeyHex(),
				"err", err,
			)
			p.node.handlePeerLost(p)
			return
		}
		p.node.dispatch(p, env)
	}
}

func (p *peerLink) writeStream() {
	for {
		select {
		case <-p.ctx.Done():
			return

		case env := <-p.writeCh:
			if err := writeEnvelope(p.conn, env); err != nil {
				log.Errorw("Failed to write to peer",
					"peer", p.KeyHex(),
					"type", env.Type,
					"err", err,
				)
			}
		}
	}
}
