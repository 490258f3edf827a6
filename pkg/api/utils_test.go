package api

import (
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestJsonResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	JsonResponse(rec, 200, map[string]int{"index": 2})

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"index": 2}`, rec.Body.String())
}

func TestErrResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	ErrResponse(rec, 400, errors.New("registration failed"))

	assert.Equal(t, 400, rec.Code)
	assert.JSONEq(t, `{"error": "registration failed"}`, rec.Body.String())
}
