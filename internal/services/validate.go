package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLength = 6
	// Column sizes of users.username and users.email.
	maxUsernameLength = 64
	maxEmailLength    = 255
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func invalid(message string) error {
	return &ValidationError{Message: message}
}

func validateUsername(username string) error {
	if err := validate.Var(username, fmt.Sprintf("required,max=%d", maxUsernameLength)); err != nil {
		return invalid(fmt.Sprintf("the username must be at most %d characters long", maxUsernameLength))
	}
	return nil
}

func validateEmail(email string) error {
	if err := validate.Var(email, fmt.Sprintf("max=%d", maxEmailLength)); err != nil {
		return invalid(fmt.Sprintf("the email address must be at most %d characters long", maxEmailLength))
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return invalid("the email address is not valid")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return invalid("the password must be at least 6 characters long")
	}
	return nil
}

// normalizeIdentity trims the username and email and checks that both are
// present and the email is well formed.
func normalizeIdentity(username, email string) (string, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return "", "", invalid("username and email are required")
	}
	if err := validateUsername(username); err != nil {
		return "", "", err
	}
	if err := validateEmail(email); err != nil {
		return "", "", err
	}
	return username, email, nil
}
