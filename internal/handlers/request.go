package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jobmatch/credits/internal/middleware"
	"github.com/jobmatch/credits/internal/models"
	"github.com/jobmatch/credits/internal/services"
)

const maxBodyBytes = 1_048_576

var errMultipleObjects = errors.New("request body must only contain a single JSON object")

// decodeJSON reads exactly one JSON object with no unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errMultipleObjects
	}
	return nil
}

func requestAccount(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
	}
	return account, ok
}

func badBody(w http.ResponseWriter, err error) {
	if errors.Is(err, errMultipleObjects) {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
}
