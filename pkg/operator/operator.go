package operator

import (
	"context"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/f3rmion/musig2-node/internal/log"
	"github.com/f3rmion/musig2-node/pkg/client"
	"github.com/f3rmion/musig2-node/pkg/musig"
	"github.com/f3rmion/musig2-node/pkg/registry"
	"github.com/f3rmion/musig2-node/pkg/signing"
)

// Operator is the hub of the star topology: it sequences the two full-barrier
// phases across all registered signers and is the only party that sees
// cross-participant data in transit. It never observes any signer's private
// per-round state.
type Operator struct {
	registry *registry.Registry
	sessions *signing.Manager
	signers  *client.SignerClient
}

// New creates an operator. maxSigners caps registrations; 0 means unbounded.
func New(maxSigners int) *Operator {
	return &Operator{
		registry: registry.New(maxSigners),
		sessions: signing.NewManager(),
		signers:  client.NewSignerClient(),
	}
}

// Register adds a signer to the participant set and returns its index.
func (o *Operator) Register(publicKey []byte, address string) (int, error) {
	if err := musig.ParsePublicKey(publicKey); err != nil {
		return 0, err
	}

	index, err := o.registry.Register(publicKey, address)
	if err != nil {
		return 0, err
	}

	log.Infow("Signer registered",
		"index", index,
		"public_key", hex.EncodeToString(publicKey),
		"address", address,
	)
	return index, nil
}

// Result is the outcome of a completed signing session.
type Result struct {
	SessionID     string
	AggregatedKey []byte
	Signature     []byte
}

// Sign runs one full signing session over message across every registered
// signer. Phases are fully serialized: a phase starts only after every signer
// answered the previous one. Within a phase the requests fan out
// concurrently and the first failure aborts the whole session; the failed
// session's state is simply abandoned and a retry starts from a fresh
// session id.
func (o *Operator) Sign(ctx context.Context, message []byte) (*Result, error) {
	// Snapshot outside any further locking: no registry mutex is held across
	// network calls, so an in-flight round never blocks registrations.
	participants := o.registry.Snapshot()
	if len(participants) < 2 {
		return nil, errors.Errorf("need at least 2 registered signers, have %d", len(participants))
	}

	keys := make([][]byte, len(participants))
	for i, p := range participants {
		keys[i] = p.PublicKey
	}

	sess, err := o.sessions.Create(message, keys)
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}

	log.Infow("Signing session created",
		"session_id", sess.ID,
		"participants", len(participants),
	)

	// Phase 1: collect one public nonce from every signer.
	nonces := make(map[int][]byte, len(participants))
	err = o.fanOut(ctx, participants, "nonce collection", func(ctx context.Context, p registry.Participant) ([]byte, error) {
		return o.signers.RequestNonce(ctx, p.Address, client.NonceRequest{
			SessionID:   sess.ID,
			Message:     sess.Message,
			KeyAggCtx:   sess.Ctx.Bytes(),
			SignerIndex: p.Index,
		})
	}, nonces)
	if err != nil {
		return nil, err
	}

	// Phase 2: fan every signer the other participants' nonces, collect
	// partial signatures.
	partials := make(map[int][]byte, len(participants))
	err = o.fanOut(ctx, participants, "nonce distribution", func(ctx context.Context, p registry.Participant) ([]byte, error) {
		return o.signers.DeliverNonces(ctx, p.Address, client.NoncesRequest{
			SessionID: sess.ID,
			Nonces:    withoutIndex(nonces, p.Index),
		})
	}, partials)
	if err != nil {
		return nil, err
	}

	// Phase 3: fan every signer the other participants' partial signatures,
	// collect candidate final signatures.
	finals := make(map[int][]byte, len(participants))
	err = o.fanOut(ctx, participants, "partial signature distribution", func(ctx context.Context, p registry.Participant) ([]byte, error) {
		return o.signers.DeliverPartialSignatures(ctx, p.Address, client.PartialSignaturesRequest{
			SessionID:         sess.ID,
			PartialSignatures: withoutIndex(partials, p.Index),
		})
	}, finals)
	if err != nil {
		return nil, err
	}

	// Consistency check: all candidates byte-identical and valid under the
	// aggregated key.
	aggregatedKey := sess.Ctx.AggregatedKey()
	signature, err := signing.VerifyConsensus(finals, aggregatedKey, sess.Message)
	if err != nil {
		return nil, errors.Wrapf(err, "consistency check: session %s", sess.ID)
	}

	log.Infow("Signing session finalized",
		"session_id", sess.ID,
		"aggregated_pubkey", hex.EncodeToString(aggregatedKey),
		"signature", hex.EncodeToString(signature),
	)

	return &Result{
		SessionID:     sess.ID,
		AggregatedKey: aggregatedKey,
		Signature:     signature,
	}, nil
}

// fanOut issues one request per participant concurrently and gathers the
// responses by index. The first failure cancels the rest and aborts the
// phase, tagged with the phase name and the failing signer index.
func (o *Operator) fanOut(
	ctx context.Context,
	participants []registry.Participant,
	phase string,
	request func(context.Context, registry.Participant) ([]byte, error),
	out map[int][]byte,
) error {
	results := make([][]byte, len(participants))

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range participants {
		p := p
		g.Go(func() error {
			data, err := request(gctx, p)
			if err != nil {
				return errors.Wrapf(err, "%s phase: signer %d", phase, p.Index)
			}
			results[p.Index] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, data := range results {
		out[i] = data
	}
	return nil
}

// withoutIndex copies all entries except the participant's own.
func withoutIndex(in map[int][]byte, index int) map[int][]byte {
	out := make(map[int][]byte, len(in)-1)
	for i, data := range in {
		if i == index {
			continue
		}
		out[i] = data
	}
	return out
}
