package identity

import (
	"errors"
	"fmt"
)

// Identity is the verified (subject, email) pair handed out by the identity
// service. Nothing else about a user is known locally.
type Identity struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email"`
}

type Session struct {
	Identity
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type RegisterInput struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName"`
}

type SignInInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type VerifyTokenInput struct {
	Token string `json:"token"`
}

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnavailable       = errors.New("identity service unavailable")
)

// Provider codes surfaced on registration failures.
const (
	CodeEmailExists   = "EMAIL_EXISTS"
	CodeInvalidEmail  = "INVALID_EMAIL"
	CodeWeakPassword  = "WEAK_PASSWORD"
	CodeMissingFields = "MISSING_FIELDS"
)

// RegistrationError carries the provider's reason for refusing an account.
type RegistrationError struct {
	Code    string
	Message string
}

func (e *RegistrationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("registration failed: %s", e.Code)
	}
	return fmt.Sprintf("registration failed: %s", e.Message)
}
