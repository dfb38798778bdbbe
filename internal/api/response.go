// Package api provides HTTP response utilities for ReplyFlow.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/replyflow/replyflow/internal/models"
)

// fallbackErrorResponse is served when a handler response cannot be encoded.
// Built once at startup so the error path itself never marshals.
var fallbackErrorResponse = func() []byte {
	data, err := json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic("api: cannot marshal fallback error response: " + err.Error())
	}
	return data
}()

// writeJSONResponse encodes the response and writes it with the given status.
// Encoding happens before any header is written so a marshal failure can
// still produce a clean 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("api.writeJSONResponse: failed to marshal response", "error", err)
		data = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("api.writeJSONResponse: failed to write response", "error", err)
	}
}
