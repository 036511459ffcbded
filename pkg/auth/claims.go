package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified claim set extracted from a bearer token. It is
// produced once per request by [Validator.Validate], never persisted, and
// consumed immediately by the identity resolver and middleware.
//
// The named fields cover the claims this layer interprets. Issuer profile
// fields beyond GivenName/Surname/Email pass through untouched in Raw for
// collaborators outside this core.
type Claims struct {
	// Subject is the stable, issuer-assigned identifier for the
	// authenticated principal. It is the platform's user identifier.
	Subject string

	// Audience lists the token's intended recipients.
	Audience []string

	// ExpiresAt is the token's expiry time. Zero if the token carries
	// no exp claim.
	ExpiresAt time.Time

	// NotBefore is the earliest time the token is valid. Zero if the
	// token carries no nbf claim.
	NotBefore time.Time

	// IssuedAt is the token's issue time. Zero if absent.
	IssuedAt time.Time

	// GivenName, Surname, and Email are issuer profile fields. This
	// layer does not interpret them; they are carried for collaborators.
	GivenName string
	Surname   string
	Email     string

	// Raw is the complete claim map as decoded from the token.
	Raw map[string]any
}

// claimsFromMap builds a [*Claims] from verified jwt map claims. Missing or
// mistyped fields yield zero values rather than errors: by the time this
// runs, signature and registered-claim checks have already passed, and
// profile fields are best-effort.
func claimsFromMap(mc jwt.MapClaims) *Claims {
	c := &Claims{
		Raw: make(map[string]any, len(mc)),
	}
	for k, v := range mc {
		c.Raw[k] = v
	}

	c.Subject, _ = mc["sub"].(string)

	if aud, err := mc.GetAudience(); err == nil {
		c.Audience = []string(aud)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if nbf, err := mc.GetNotBefore(); err == nil && nbf != nil {
		c.NotBefore = nbf.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}

	c.GivenName, _ = mc["given_name"].(string)
	c.Surname, _ = mc["family_name"].(string)
	if c.Surname == "" {
		c.Surname, _ = mc["surname"].(string)
	}
	c.Email, _ = mc["email"].(string)
	if c.Email == "" {
		// Some identity providers put the address in upn or
		// preferred_username instead of email.
		c.Email, _ = mc["preferred_username"].(string)
	}

	return c
}
