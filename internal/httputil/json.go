package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"sx-futures/internal/engine"
	"sx-futures/internal/model"
	"sx-futures/internal/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes the request body into v, rejecting unknown fields.
func ReadJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteError maps engine error taxonomy to HTTP statuses: validation and
// insufficient-margin faults are 400, lifecycle conflicts 409, unknown or
// foreign ids 404, anything else 500.
func WriteError(w http.ResponseWriter, err error) {
	var verr engine.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Msg})
	case errors.Is(err, model.ErrInsufficientMargin):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "insufficient margin"})
	case errors.Is(err, engine.ErrInvalidState):
		WriteJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	default:
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
