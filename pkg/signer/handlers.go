package signer

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/pkg/api"
	"github.com/f3rmion/musig2-node/pkg/client"
	"github.com/f3rmion/musig2-node/pkg/signing"
)

// Router exposes the per-signer endpoints invoked by the operator.
func (s *Signer) Router() chi.Router {
	router := api.NewRouter()
	router.Post("/nonce", s.handleNonce)
	router.Put("/nonces", s.handleNonces)
	router.Put("/partial-signatures", s.handlePartialSignatures)
	return router
}

func (s *Signer) handleNonce(w http.ResponseWriter, r *http.Request) {
	var req client.NonceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "decode nonce request"))
		return
	}

	nonce, err := s.StartRound(req.SessionID, req.KeyAggCtx, req.SignerIndex, req.Message)
	if err != nil {
		api.ErrResponse(w, http.StatusBadRequest, err)
		return
	}

	api.JsonResponse(w, http.StatusOK, client.NonceResponse{Nonce: nonce})
}

func (s *Signer) handleNonces(w http.ResponseWriter, r *http.Request) {
	var req client.NoncesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "decode nonces"))
		return
	}

	partial, err := s.DeliverNonces(req.SessionID, req.Nonces)
	if err != nil {
		api.ErrResponse(w, statusFor(err), err)
		return
	}

	api.JsonResponse(w, http.StatusOK, client.NoncesResponse{PartialSignature: partial})
}

func (s *Signer) handlePartialSignatures(w http.ResponseWriter, r *http.Request) {
	var req client.PartialSignaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "decode partial signatures"))
		return
	}

	final, err := s.DeliverPartialSignatures(req.SessionID, req.PartialSignatures)
	if err != nil {
		api.ErrResponse(w, statusFor(err), err)
		return
	}

	api.JsonResponse(w, http.StatusOK, client.PartialSignaturesResponse{FinalSignature: final})
}

func statusFor(err error) int {
	if errors.Is(err, signing.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
