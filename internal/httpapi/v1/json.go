package v1

import (
	"encoding/json"
	"net/http"
)

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeStrict decodes the body rejecting unknown fields, then runs the
// struct validator. Returns false after writing the error response.
func decodeStrict(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error(), Code: "bad_request"})
		return false
	}
	if err := validate.Struct(v); err != nil {
		toJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error"})
		return false
	}
	return true
}
