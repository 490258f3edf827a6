package client

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// OperatorClient talks to the operator's public API.
type OperatorClient struct {
	url        string
	httpClient *http.Client
}

func NewOperatorClient(url string) *OperatorClient {
	return &OperatorClient{
		url:        strings.TrimRight(url, "/"),
		httpClient: http.DefaultClient,
	}
}

// Register announces a signer to the operator and returns its assigned index.
func (oc *OperatorClient) Register(ctx context.Context, address string, publicKey []byte) (int, error) {
	req := RegisterRequest{
		Address:   address,
		PublicKey: hex.EncodeToString(publicKey),
	}

	var res RegisterResponse
	err := call(ctx, oc.httpClient, http.MethodPost, oc.url+"/register", req, &res)
	if err != nil {
		return 0, errors.Wrap(err, "register signer")
	}
	return res.Index, nil
}

// Participants lists the currently registered signers in insertion order.
func (oc *OperatorClient) Participants(ctx context.Context) ([]ParticipantInfo, error) {
	var res []ParticipantInfo
	err := call(ctx, oc.httpClient, http.MethodGet, oc.url+"/participants", nil, &res)
	if err != nil {
		return nil, errors.Wrap(err, "list participants")
	}
	return res, nil
}

// Sign asks the operator to run a full signing session over message.
func (oc *OperatorClient) Sign(ctx context.Context, message string) (*SignResponse, error) {
	var res SignResponse
	err := call(ctx, oc.httpClient, http.MethodPost, oc.url+"/sign", SignRequest{Message: message}, &res)
	if err != nil {
		return nil, errors.Wrap(err, "initiate signing")
	}
	return &res, nil
}

// SignerClient is the operator's view of the per-signer endpoints. The target
// address varies per call since the operator fans out to every registered
// signer.
type SignerClient struct {
	httpClient *http.Client
}

func NewSignerClient() *SignerClient {
	return &SignerClient{httpClient: http.DefaultClient}
}

// RequestNonce starts the session at one signer and returns its public nonce.
func (sc *SignerClient) RequestNonce(ctx context.Context, addr string, req NonceRequest) ([]byte, error) {
	var res NonceResponse
	err := call(ctx, sc.httpClient, http.MethodPost, strings.TrimRight(addr, "/")+"/nonce", req, &res)
	if err != nil {
		return nil, err
	}
	return res.Nonce, nil
}

// DeliverNonces hands one signer all other participants' nonces and returns
// its partial signature.
func (sc *SignerClient) DeliverNonces(ctx context.Context, addr string, req NoncesRequest) ([]byte, error) {
	var res NoncesResponse
	err := call(ctx, sc.httpClient, http.MethodPut, strings.TrimRight(addr, "/")+"/nonces", req, &res)
	if err != nil {
		return nil, err
	}
	return res.PartialSignature, nil
}

// DeliverPartialSignatures hands one signer all other participants' partial
// signatures and returns its candidate final signature.
func (sc *SignerClient) DeliverPartialSignatures(ctx context.Context, addr string, req PartialSignaturesRequest) ([]byte, error) {
	var res PartialSignaturesResponse
	err := call(ctx, sc.httpClient, http.MethodPut, strings.TrimRight(addr, "/")+"/partial-signatures", req, &res)
	if err != nil {
		return nil, err
	}
	return res.FinalSignature, nil
}

func call(ctx context.Context, hc *http.Client, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := hc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, url)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return errors.Errorf("%s %s: %s", method, url, apiErr.Error)
		}
		return errors.Errorf("%s %s: unexpected status %d", method, url, res.StatusCode)
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decode response")
}
