package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jobmatch/credits/internal/models"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`    // machine-readable reason
	Details map[string]string `json:"details,omitempty"` // per-field validation failures
}

// ValidationHelper wraps a validator configured with the credit tags
// (credit_feature, ledger_kind) and JSON field names in its errors.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("credit_feature", func(fl validator.FieldLevel) bool {
		return models.Feature(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("ledger_kind", func(fl validator.FieldLevel) bool {
		return models.TransactionKind(fl.Field().String()).Valid()
	})

	return &ValidationHelper{validator: v}
}

func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes an ErrorResponse. validationErr may be nil; when
// it holds validator errors they are listed per field.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	SendCodedErrorResponse(w, message, "", statusCode, validationErr)
}

func SendCodedErrorResponse(w http.ResponseWriter, message, code string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message, Code: code}

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string, len(fieldErrs))
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

func SendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
