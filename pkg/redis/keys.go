package redis

import "strings"

// Every key lives under "ch:<kind>:..." so one Redis can be shared with other
// tenants and each kind can be scanned or flushed on its own.
const keyNamespace = "ch"

const (
	kindIdempotency = "idempotency"
	kindProfile     = "profile"
	kindRevoked     = "revoked"
	kindLock        = "lock"
	kindRateLimit   = "rl"
)

// RateLimitKey names a fixed-window counter.
func (c *Client) RateLimitKey(scope, subject string) string {
	return buildKey(kindRateLimit, scope, subject)
}

// IdempotencyKey names a stored response for (scope, client key).
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(kindIdempotency, scope, id)
}

// ProfileKey marks a profile as known to exist.
func (c *Client) ProfileKey(userID string) string {
	return buildKey(kindProfile, userID)
}

// RevokedTokenKey flags a signed-out access token id.
func (c *Client) RevokedTokenKey(tokenID string) string {
	return buildKey(kindRevoked, tokenID)
}

func (c *Client) LockKey(name string) string {
	return buildKey(kindLock, name)
}

// buildKey drops empty parts so optional scopes do not leave "::" gaps.
func buildKey(parts ...string) string {
	clean := make([]string, 0, len(parts)+1)
	clean = append(clean, keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
