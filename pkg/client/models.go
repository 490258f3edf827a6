package client

// Requests and responses of the hub topology. Keys and signatures that are
// meant to be human-readable travel as hex strings; nonce, partial-signature
// and context payloads are raw bytes (base64 in JSON). Coordination code
// routes these bytes without reinterpreting them.

type (
	RegisterRequest struct {
		Address   string `json:"address"`
		PublicKey string `json:"public_key"`
	}

	RegisterResponse struct {
		Index int `json:"index"`
	}

	ParticipantInfo struct {
		Index     int    `json:"index"`
		PublicKey string `json:"public_key"`
		Address   string `json:"address"`
	}

	SignRequest struct {
		Message string `json:"message"`
	}

	SignResponse struct {
		SessionID        string `json:"session_id"`
		AggregatedPubkey string `json:"aggregated_pubkey"`
		FinalSignature   string `json:"final_signature"`
		IsValid          bool   `json:"is_signature_valid"`
	}

	NonceRequest struct {
		SessionID   string `json:"session_id"`
		Message     []byte `json:"message"`
		KeyAggCtx   []byte `json:"key_agg_ctx"`
		SignerIndex int    `json:"signer_index"`
	}

	NonceResponse struct {
		Nonce []byte `json:"nonce"`
	}

	NoncesRequest struct {
		SessionID string         `json:"session_id"`
		Nonces    map[int][]byte `json:"nonces"`
	}

	NoncesResponse struct {
		PartialSignature []byte `json:"partial_signature"`
	}

	PartialSignaturesRequest struct {
		SessionID         string         `json:"session_id"`
		PartialSignatures map[int][]byte `json:"partial_signatures"`
	}

	PartialSignaturesResponse struct {
		FinalSignature []byte `json:"final_signature"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)
