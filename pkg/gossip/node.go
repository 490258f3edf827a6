package gossip

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/musig"
	"github.com/f3rmion/musig2-node/pkg/signing"
)

const defaultRetryDelay = 2 * time.Second

// Result is the outcome of a gossip signing run.
type Result struct {
	Signature     []byte
	AggregatedKey []byte
	Err           error
}

// Node is one participant of the peer-to-peer topology. It accepts inbound
// connections and keeps dialing the configured peer addresses until they are
// reachable. Once it holds links to exactly signers-1 distinct peer keys it
// sorts the union of identities by the canonical order, builds its
// aggregation context exactly once, and runs both exchange barriers by
// pushing to every link and accumulating by sender identity.
type Node struct {
	key        *musig.KeyPair
	message    []byte
	signers    int
	peerAddrs  []string
	retryDelay time.Duration

	listener net.Listener

	mu    sync.Mutex
	links map[string]*peerLink
	// Superseded duplicate connections. They are never closed mid-run:
	// the peer may still be broadcasting on one, and tearing it down
	// would look like a peer loss on the other side.
	strays []*peerLink
	agg    *musig.KeyAggContext
	round  *signing.Round
	// Contributions that outran our own context build are parked here by
	// sender key and replayed once the round exists.
	pendingNonces   map[string][]byte
	pendingPartials map[string][]byte
	finished        bool

	resultCh chan Result
}

// New creates a gossip node signing message with signers total participants.
func New(key *musig.KeyPair, message []byte, signers int, peerAddrs []string, retryDelay time.Duration) *Node {
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Node{
		key:             key,
		message:         append([]byte(nil), message...),
		signers:         signers,
		peerAddrs:       peerAddrs,
		retryDelay:      retryDelay,
		links:           make(map[string]*peerLink),
		pendingNonces:   make(map[string][]byte),
		pendingPartials: make(map[string][]byte),
		resultCh:        make(chan Result, 1),
	}
}

// Start binds the listener and launches the accept loop and one outbound
// connect loop per configured peer. Cancelling ctx shuts the node down.
func (n *Node) Start(ctx context.Context, listenAddr string) error {
	if n.signers < 2 {
		return errors.Errorf("need at least 2 signers, have %d", n.signers)
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return errors.Wrap(err, "bind listener")
	}
	n.listener = ln

	log.Infow("Gossip node listening",
		"addr", ln.Addr().String(),
		"public_key", hex.EncodeToString(n.key.PublicKey()),
		"signers", n.signers,
	)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		n.closeAll()
	}()

	go n.acceptLoop(ctx, ln)
	for _, addr := range n.peerAddrs {
		go n.connectLoop(ctx, addr)
	}
	return nil
}

// Addr returns the bound listen address.
func (n *Node) Addr() string {
	return n.listener.Addr().String()
}

// Wait blocks until the node finalized and verified a signature, or failed.
func (n *Node) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-n.resultCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return &res, nil
	}
}

func (n *Node) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go n.handleInbound(ctx, conn)
	}
}

// handleInbound runs the accepting side of the identity handshake: the dialer
// announces itself first, we answer with our own identity. A connection that
// does not open with an identity is discarded.
func (n *Node) handleInbound(ctx context.Context, conn net.Conn) {
	env, err := readEnvelope(conn)
	if err != nil || env.Type != identityMessage {
		log.Warnw("Discarding connection without identity",
			"remote", conn.RemoteAddr().String(),
		)
		_ = conn.Close()
		return
	}

	key, err := hex.DecodeString(env.Sender)
	if err != nil || musig.ParsePublicKey(key) != nil {
		log.Warnw("Discarding connection with malformed identity",
			"remote", conn.RemoteAddr().String(),
		)
		_ = conn.Close()
		return
	}

	if err := writeEnvelope(conn, n.identity()); err != nil {
		_ = conn.Close()
		return
	}

	n.bindPeer(ctx, conn, key, false)
}

// connectLoop dials addr until a link to the peer behind it is held, and
// resumes dialing whenever that link is gone again. Unreachable peers are
// not fatal; cancellation or a finished run stops the loop.
func (n *Node) connectLoop(ctx context.Context, addr string) {
	dialer := &net.Dialer{}

	var peerKey []byte
	for {
		if ctx.Err() != nil || n.isFinished() {
			return
		}

		// While some link to this peer is up, ours or the one the
		// duplicate tie-break kept, there is nothing to dial.
		if peerKey != nil && n.hasLink(peerKey) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.retryDelay):
			}
			continue
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debugw("Peer not reachable, retrying",
				"addr", addr,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.retryDelay):
			}
			continue
		}

		key, err := n.handshakeOutbound(conn)
		if err != nil {
			log.Warnw("Handshake failed",
				"addr", addr,
				"err", err,
			)
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(n.retryDelay):
			}
			continue
		}

		log.Infow("Connected to peer",
			"addr", addr,
			"peer", hex.EncodeToString(key),
		)
		peerKey = key
		n.bindPeer(ctx, conn, key, true)
	}
}

// handshakeOutbound runs the dialing side of the identity exchange: announce
// first, then read the peer's identity.
func (n *Node) handshakeOutbound(conn net.Conn) ([]byte, error) {
	if err := writeEnvelope(conn, n.identity()); err != nil {
		return nil, err
	}

	env, err := readEnvelope(conn)
	if err != nil {
		return nil, err
	}
	if env.Type != identityMessage {
		return nil, errors.Errorf("expected identity, got %q", env.Type)
	}

	key, err := hex.DecodeString(env.Sender)
	if err != nil {
		return nil, errors.Wrap(err, "decode identity")
	}
	if err := musig.ParsePublicKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func (n *Node) hasLink(key []byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, ok := n.links[string(key)]
	return ok
}

func (n *Node) isFinished() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.finished
}

func (n *Node) identity() Envelope {
	return Envelope{
		Sender: hex.EncodeToString(n.key.PublicKey()),
		Type:   identityMessage,
	}
}

// bindPeer registers a handshaken connection. When two peers list each other
// they dial simultaneously and the same identity surfaces twice, once per
// dialing side. Both ends break the tie the same way, keeping the connection
// dialed by the lexicographically smaller key; the superseded link is parked,
// not closed, since messages may still be in flight on it and dispatch is
// keyed by identity either way. The context build is a check-and-set under
// the node lock so it runs exactly once no matter which link completes the
// mesh.
func (n *Node) bindPeer(ctx context.Context, conn net.Conn, key []byte, outbound bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	link := newPeerLink(ctx, n, conn, key, outbound)

	if existing, ok := n.links[string(key)]; ok {
		preferOutbound := bytes.Compare(n.key.PublicKey(), key) < 0
		if outbound == preferOutbound && existing.outbound != preferOutbound {
			n.links[string(key)] = link
			n.strays = append(n.strays, existing)
		} else {
			n.strays = append(n.strays, link)
		}

		log.Debugw("Duplicate peer connection resolved",
			"peer", link.KeyHex(),
		)
		return
	}

	n.links[string(key)] = link

	log.Infow("Peer bound",
		"peer", link.KeyHex(),
		"peers", len(n.links),
	)

	if len(n.links) == n.signers-1 && n.agg == nil {
		n.initializeContextLocked()
	}
}

// initializeContextLocked builds the aggregation context from the sorted
// union of our key and all peer keys, starts the round, and broadcasts our
// nonce. Every participant applies the identical ordering rule to the
// identical identity set, so all contexts converge without further
// coordination.
func (n *Node) initializeContextLocked() {
	keys := make([][]byte, 0, len(n.links)+1)
	keys = append(keys, n.key.PublicKey())
	for _, link := range n.links {
		keys = append(keys, link.key)
	}

	agg, err := musig.AggregateKeys(musig.SortKeys(keys))
	if err != nil {
		n.failLocked(errors.Wrap(err, "aggregation context"))
		return
	}

	index := agg.IndexOf(n.key.PublicKey())
	round, err := signing.NewRound(agg, n.key, index, n.message)
	if err != nil {
		n.failLocked(err)
		return
	}

	nonce, err := round.Start()
	if err != nil {
		n.failLocked(err)
		return
	}

	n.agg = agg
	n.round = round

	log.Infow("Aggregation context established",
		"participants", agg.NumSigners(),
		"own_index", index,
		"aggregated_pubkey", hex.EncodeToString(agg.AggregatedKey()),
	)

	n.broadcastLocked(Envelope{
		Sender:  hex.EncodeToString(n.key.PublicKey()),
		Type:    nonceMessage,
		Payload: nonce,
	})

	// Replay contributions from peers that finished the mesh before us.
	for sender, pending := range n.pendingNonces {
		n.deliverNonceLocked(sender, pending)
	}
	n.pendingNonces = make(map[string][]byte)
}

func (n *Node) dispatch(link *peerLink, env Envelope) {
	// The sender identity is the handshaken link key, never the envelope's
	// claim.
	sender := link.KeyHex()

	switch env.Type {
	case identityMessage:
		// Already bound.
	case nonceMessage:
		n.onNonce(sender, env.Payload)
	case partialMessage:
		n.onPartial(sender, env.Payload)
	default:
		log.Warnw("Unknown message type",
			"peer", sender,
			"type", env.Type,
		)
	}
}

func (n *Node) onNonce(sender string, nonce []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.round == nil {
		n.pendingNonces[sender] = nonce
		return
	}
	n.deliverNonceLocked(sender, nonce)
}

func (n *Node) deliverNonceLocked(sender string, nonce []byte) {
	index, ok := n.senderIndexLocked(sender)
	if !ok {
		return
	}

	if err := n.round.AddNonce(index, nonce); err != nil {
		n.failLocked(errors.Wrapf(err, "nonce from participant %d", index))
		return
	}

	if n.round.Status() != signing.NoncesCollected {
		return
	}

	partial, err := n.round.FinalizePartial()
	if err != nil {
		n.failLocked(err)
		return
	}

	log.Infow("Nonce barrier complete, broadcasting partial signature",
		"own_index", n.round.Index(),
	)

	n.broadcastLocked(Envelope{
		Sender:  hex.EncodeToString(n.key.PublicKey()),
		Type:    partialMessage,
		Payload: partial,
	})

	for from, pending := range n.pendingPartials {
		n.deliverPartialLocked(from, pending)
	}
	n.pendingPartials = make(map[string][]byte)
}

func (n *Node) onPartial(sender string, partial []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.round == nil || n.round.Status() < signing.PartialReady {
		n.pendingPartials[sender] = partial
		return
	}
	n.deliverPartialLocked(sender, partial)
}

func (n *Node) deliverPartialLocked(sender string, partial []byte) {
	index, ok := n.senderIndexLocked(sender)
	if !ok {
		return
	}

	if err := n.round.AddPartial(index, partial); err != nil {
		n.failLocked(errors.Wrapf(err, "partial signature from participant %d", index))
		return
	}

	if !n.round.PartialsComplete() {
		return
	}

	final, err := n.round.FinalizeSignature()
	if err != nil {
		n.failLocked(err)
		return
	}

	if err := signing.VerifyFinal(final, n.agg.AggregatedKey(), n.message); err != nil {
		n.failLocked(err)
		return
	}

	log.Infow("Final signature verified",
		"signature", hex.EncodeToString(final),
	)

	n.finishLocked(Result{
		Signature:     final,
		AggregatedKey: n.agg.AggregatedKey(),
	})
}

func (n *Node) senderIndexLocked(sender string) (int, bool) {
	key, err := hex.DecodeString(sender)
	if err != nil {
		return 0, false
	}

	index := n.agg.IndexOf(key)
	if index < 0 {
		log.Errorw("Contribution from key outside the context",
			"peer", sender,
		)
		return 0, false
	}
	return index, true
}

func (n *Node) broadcastLocked(env Envelope) {
	for _, link := range n.links {
		link.send(env)
	}
}

func (n *Node) failLocked(err error) {
	log.Errorw("Signing run failed",
		"err", err,
	)
	n.finishLocked(Result{Err: err})
}

func (n *Node) finishLocked(res Result) {
	if n.finished {
		return
	}
	n.finished = true
	n.resultCh <- res
}

func (n *Node) handlePeerLost(link *peerLink) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if current, ok := n.links[string(link.key)]; !ok || current != link {
		return
	}
	delete(n.links, string(link.key))
	_ = link.Close()

	log.Infow("Peer disconnected",
		"peer", link.KeyHex(),
		"peers", len(n.links),
	)

	// There is no partial-participation mode: losing a bound peer mid-session
	// aborts the whole run.
	if n.round != nil && !n.finished {
		n.failLocked(errors.Errorf("peer %s dropped mid-session", link.KeyHex()))
	}
}

func (n *Node) closeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, link := range n.links {
		_ = link.Close()
	}
	for _, link := range n.strays {
		_ = link.Close()
	}
}
