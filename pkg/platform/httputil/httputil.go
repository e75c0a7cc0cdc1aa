// Package httputil renders JSON responses and the gateway error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	dErrors "healthbff/pkg/domain-errors"
	"healthbff/pkg/requestcontext"
)

const genericInternalMessage = "an internal error occurred"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string         `json:"error"`
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlationId"`
	Timestamp     string         `json:"timestamp"`
	Path          string         `json:"path"`
	Details       map[string]any `json:"details,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","code":"ENCODING_FAILED","message":"` + genericInternalMessage + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError renders err as the error envelope. Errors without a domain code
// are treated as internal and never expose their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	resp := BuildErrorResponse(r, err)
	status := dErrors.ToHTTPStatus(dErrors.Code(resp.Error))

	body, mErr := json.Marshal(resp)
	if mErr != nil {
		body = fallbackBody(resp)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// BuildErrorResponse maps err and request metadata onto the envelope.
func BuildErrorResponse(r *http.Request, err error) ErrorResponse {
	resp := ErrorResponse{
		Error:     string(dErrors.CodeInternal),
		Code:      "INTERNAL_ERROR",
		Message:   genericInternalMessage,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if r != nil {
		resp.CorrelationID = requestcontext.RequestID(r.Context())
		resp.Path = r.URL.Path
		resp.Timestamp = requestcontext.Now(r.Context()).UTC().Format(time.RFC3339Nano)
	}

	var de *dErrors.Error
	if !errors.As(err, &de) || de.Code == dErrors.CodeInternal || de.Code == "" {
		return resp
	}
	resp.Error = string(de.Code)
	resp.Code = de.Reason
	if resp.Code == "" {
		resp.Code = strings.ToUpper(string(de.Code))
	}
	resp.Message = de.Message
	resp.Details = de.Details
	return resp
}

// fallbackBody builds a minimal envelope by hand when details cannot be encoded.
func fallbackBody(resp ErrorResponse) []byte {
	var b strings.Builder
	b.WriteString(`{"error":`)
	b.WriteString(strconv.Quote(resp.Error))
	b.WriteString(`,"code":`)
	b.WriteString(strconv.Quote(resp.Code))
	b.WriteString(`,"message":`)
	b.WriteString(strconv.Quote(resp.Message))
	b.WriteString(`,"correlationId":`)
	b.WriteString(strconv.Quote(resp.CorrelationID))
	b.WriteString(`,"timestamp":`)
	b.WriteString(strconv.Quote(resp.Timestamp))
	b.WriteString(`,"path":`)
	b.WriteString(strconv.Quote(resp.Path))
	b.WriteString(`}`)
	return []byte(b.String())
}
