package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// UserMetadata is the free-form profile data the auth platform embeds in tokens.
type UserMetadata struct {
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// AccessTokenClaims represents the JWT minted by the hosted auth platform.
type AccessTokenClaims struct {
	Email        string       `json:"email"`
	Role         string       `json:"role,omitempty"`
	SessionID    string       `json:"session_id,omitempty"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserID parses the subject as the platform user id.
func (c *AccessTokenClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// TokenID identifies the token for revocation; falls back to the session id.
func (c *AccessTokenClaims) TokenID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.SessionID
}

// AccessTokenPayload captures the data needed to mint a token locally (tests, seed tooling).
type AccessTokenPayload struct {
	UserID   uuid.UUID
	Email    string
	FullName string
	JTI      string
}
