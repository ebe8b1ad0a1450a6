// Package auth is the authentication collaborator behind the session gate.
package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// Error codes carried by AuthError.
const (
	CodeMissingFields      = "missing_fields"
	CodeInvalidEmail       = "invalid_email"
	CodeWeakPassword       = "weak_password"
	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailInUse         = "email_in_use"
	CodeInternal           = "internal"
)

type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserStore persists credentials. CreateUser returns ErrUserExists for a
// duplicate email and FindUserByEmail returns ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

// Provider signs users in and out and reports session changes.
type Provider interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	// Current returns the signed-in uid, if any.
	Current() (uid string, ok bool)
	// Watch calls fn with the new uid ("" when signed out) after every change.
	Watch(fn func(uid string)) (unwatch func())
}

// AuthError is a failure with a message fit for the user.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message returns the user-facing text of err, or a generic one.
func Message(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "Erro: " + err.Error()
}

func newError(code, msg string, err error) *AuthError {
	return &AuthError{Code: code, Message: msg, Err: err}
}
