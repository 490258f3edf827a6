package api

import (
	"encoding/json"
	"net/http"
)

func JsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	data, _ := json.Marshal(payload)
	_, _ = w.Write(data)
}

func ErrResponse(w http.ResponseWriter, code int, err error) {
	JsonResponse(w, code, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
