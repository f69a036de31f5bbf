package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"

	"github.com/gemstore/backend/internal/models"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterValidation("offerkind", validOfferKind)
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

func validOfferKind(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.OfferKindDiamondPack, models.OfferKindLevelPack,
		models.OfferKindMembership, models.OfferKindPremiumApp,
		models.OfferKindSpecial:
		return true
	}
	return false
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// isAccountIDCollision reports whether err is a unique violation on a
// generated account_id column, as opposed to a duplicate email.
func isAccountIDCollision(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" &&
		strings.Contains(pqErr.Constraint, "account_id")
}

// lookupAccountID resolves the ledger account for an authenticated user ID
// and reports whether the user is suspended.
func lookupAccountID(db *sql.DB, userID string) (string, bool, error) {
	var accountID string
	var suspended bool
	err := db.QueryRow(`SELECT account_id, suspended FROM users WHERE id = $1::integer`, userID).
		Scan(&accountID, &suspended)
	if err != nil {
		return "", false, err
	}
	return accountID, suspended, nil
}
