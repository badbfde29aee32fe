// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes and domain errors translate to HTTP uniformly.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "admission/pkg/domain-errors"
)

type errorResponse struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Fields           map[string]string `json:"fields,omitempty"`
	MissingDocuments []string          `json:"missingDocuments,omitempty"`
}

// WriteError translates err into the JSON error envelope. Internal errors
// suppress their description so infrastructure detail never leaks to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}

	var de *dErrors.DomainError
	if dErrors.HasCode(err, code) {
		de = asDomainError(err)
	}
	if code != dErrors.CodeInternal && de != nil {
		resp.ErrorDescription = de.Message
		resp.Fields = de.Fields
		resp.MissingDocuments = de.Missing
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(resp)
}

// DecodeJSON decodes the request body into T. On malformed input it
// writes a bad_request envelope and reports false; the handler should
// just return.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return v, false
	}
	return v, true
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func asDomainError(err error) *dErrors.DomainError {
	for err != nil {
		if de, ok := err.(*dErrors.DomainError); ok {
			return de
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
