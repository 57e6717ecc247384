// Package actor parses the optional bearer-token identity an out-of-scope
// MCP/CLI wrapper may attach to AnalysisContext.Actor. Parsed claims are
// for logging and audit display only — authorization decisions stay
// inside the envelope/consent layers, never this package.
package actor

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of a bearer token's payload the oracle cares about.
type Claims struct {
	Subject  string
	Verified bool
}

// ParseClaims extracts Claims from raw, the AnalysisContext.Actor value.
// When raw is not JWT-shaped (not three dot-separated segments) it is
// treated as a plain actor identifier and returned unverified. When secret
// is non-empty, the token's HS256 signature is checked and Verified
// reflects the result; an empty secret parses claims without checking the
// signature, matching the "actor identity only" non-authorization use.
func ParseClaims(raw string, secret []byte) (*Claims, error) {
	if raw == "" {
		return nil, nil
	}
	if strings.Count(raw, ".") != 2 {
		return &Claims{Subject: raw}, nil
	}

	claims := jwt.MapClaims{}
	var token *jwt.Token
	var err error
	if len(secret) > 0 {
		token, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("actor: unexpected signing method")
			}
			return secret, nil
		})
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(raw, claims)
	}
	if err != nil {
		return &Claims{Subject: raw}, err
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		subject = raw
	}
	return &Claims{Subject: subject, Verified: token != nil && token.Valid}, nil
}
