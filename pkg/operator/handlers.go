package operator

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/pkg/errors"

	"github.com/f3rmion/musig2-node/pkg/api"
	"github.com/f3rmion/musig2-node/pkg/client"
	"github.com/f3rmion/musig2-node/pkg/registry"
)

// Router exposes the operator's public endpoints.
func (o *Operator) Router() chi.Router {
	router := api.NewRouter()
	router.Post("/register", o.handleRegister)
	router.Post("/sign", o.handleSign)
	router.Get("/participants", o.handleParticipants)
	return router
}

func (o *Operator) handleParticipants(w http.ResponseWriter, r *http.Request) {
	participants := o.registry.Snapshot()

	out := make([]client.ParticipantInfo, len(participants))
	for i, p := range participants {
		out[i] = client.ParticipantInfo{
			Index:     p.Index,
			PublicKey: hex.EncodeToString(p.PublicKey),
			Address:   p.Address,
		}
	}
	api.JsonResponse(w, http.StatusOK, out)
}

func (o *Operator) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req client.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "decode registration"))
		return
	}

	publicKey, err := hex.DecodeString(req.PublicKey)
	if err != nil {
		api.ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "decode public key"))
		return
	}

	index, err := o.Register(publicKey, req.Address)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, registry.ErrSaturated) {
			code = http.StatusConflict
		}
		api.ErrResponse(w, code, err)
		return
	}

	api.JsonResponse(w, http.StatusOK, client.RegisterResponse{Index: index})
}

func (o *Operator) handleSign(w http.ResponseWriter, r *http.Request) {
	var req client.SignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.ErrResponse(w, http.StatusBadRequest, errors.Wrap(err, "decode signing request"))
		return
	}

	result, err := o.Sign(r.Context(), []byte(req.Message))
	if err != nil {
		api.ErrResponse(w, http.StatusBadRequest, err)
		return
	}

	api.JsonResponse(w, http.StatusOK, client.SignResponse{
		SessionID:        result.SessionID,
		AggregatedPubkey: hex.EncodeToString(result.AggregatedKey),
		FinalSignature:   hex.EncodeToString(result.Signature),
		IsValid:          true,
	})
}
