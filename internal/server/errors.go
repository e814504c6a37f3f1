package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/e6ai/expense-agent/internal/common"
	"github.com/e6ai/expense-agent/internal/llm"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps domain errors to HTTP statuses and user-facing messages.
// Extraction failures are terminal for the request; nothing is retried.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := errorResponse{Error: "Something went wrong. Please try again."}

	var apiErr *llm.APIError
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		status = http.StatusUnauthorized
		resp.Error = "No API key configured. Add your OpenAI API key in settings."
	case errors.Is(err, llm.ErrEncodingFailed):
		status = http.StatusUnprocessableEntity
		resp.Error = "Could not process the image. Try a different photo."
	case errors.Is(err, llm.ErrExtractionInFlight):
		status = http.StatusConflict
		resp.Error = "An extraction is already running. Wait for it to finish."
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
		resp.Error = "The extraction service returned an error."
		resp.Detail = apiErr.Body
	case errors.Is(err, llm.ErrParseFailed):
		status = http.StatusBadGateway
		resp.Error = "Could not read the extraction response."
		resp.Detail = err.Error()
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "Not found."
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
		resp.Error = "Invalid request."
		resp.Detail = err.Error()
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
