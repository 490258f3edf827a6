package gossip

const (
	identityMessage = "identity"
	nonceMessage    = "nonce"
	partialMessage  = "partial_signature"
)

// Envelope is the one self-describing wire message of the mesh. Sender is the
// hex-encoded public key of the origin; Payload carries the nonce or partial
// signature bytes and is empty for identity announcements.
type Envelope struct {
	Sender  string `json:"sender"`
	Type    string `json:"type"`
	Payload []byte `json:"payload,omitempty"`
}
