// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MaxEmailLen       = 254
	MinPasswordLen    = 6
	MaxDisplayNameLen = 64
)

var (
	ErrEmailInvalid     = errors.New("email invalid")
	ErrPasswordTooShort = errors.New("password too short")
)

type UserID string

type User struct {
	ID           UserID    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  *string   `json:"displayName"`
	PhotoURL     *string   `json:"photoURL"`
	PasswordHash []byte    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the public view of a user.
type Profile struct {
	UID         UserID  `json:"uid"`
	Email       string  `json:"email"`
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

// NewUser validates credentials and assigns a fresh id. Hashing the password
// is left to the identity service.
func NewUser(email, password string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, ErrPasswordTooShort
	}
	return &User{
		ID:        UserID(uuid.NewString()),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > MaxEmailLen {
		return "", ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func (u *User) Profile() Profile {
	return Profile{
		UID:         u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
	}
}
