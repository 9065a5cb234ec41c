package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"apisketch/internal/apperrors"
)

const genericMessage = "Something has gone wrong on the server side"

type problem struct {
	Code    apperrors.Code         `json:"code"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: encode response failed: %v", err)
	}
}

// writeError renders err as application/problem+json. Internal faults are
// reported with a fixed message.
func writeError(w http.ResponseWriter, err error) {
	p := problem{Code: apperrors.CodeGeneric, Message: genericMessage}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		p.Code = appErr.Code
		if appErr.Code != apperrors.CodeGeneric {
			p.Message = appErr.Message
			p.Fields = appErr.Fields
		}
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(apperrors.HTTPStatus(p.Code))
	_ = json.NewEncoder(w).Encode(p)
}

func malformedBody(err error) error {
	return &apperrors.Error{
		Code:    apperrors.CodeFieldValidation,
		Message: "Malformed request body",
		Err:     err,
	}
}

// decodeBody reads an optional JSON body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return malformedBody(err)
	}
	return nil
}
