package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is an authenticated principal.
type Identity struct {
	UID   uuid.UUID `json:"uid"`
	Email string    `json:"email"`
	Token string    `json:"-"`
}

// DisplayName is the local part of the identity's email, or "" when the
// email has no local part.
func (i Identity) DisplayName() string {
	name, _, _ := strings.Cut(i.Email, "@")
	return name
}

// UserProfile is a record in the users collection written at registration.
type UserProfile struct {
	UID       uuid.UUID `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the locally persisted display identity.
type Session struct {
	Username string
	UID      string
}
