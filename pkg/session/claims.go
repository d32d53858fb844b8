package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"resqnet-web/pkg/models"
)

var (
	// ErrInvalidCredential means the credential could not be decoded.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrExpiredCredential means the credential's exp claim is in the past.
	ErrExpiredCredential = errors.New("credential expired")
)

// Identity is what the session derives from a credential.
type Identity struct {
	Subject string      `json:"subject"`
	Role    models.Role `json:"role"`
	// ExpiresAt is zero when the credential carries no exp claim.
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// RoleStrategy extracts a role from one claim shape.
type RoleStrategy struct {
	Claim   string
	Extract func(raw any) (string, bool)
}

// RoleClaimPrecedence is the order claim shapes are tried in; the first
// strategy that yields a non-empty role wins.
var RoleClaimPrecedence = []RoleStrategy{
	{Claim: "role", Extract: roleFromString},
	{Claim: "roles", Extract: roleFromList},
	{Claim: "authorities", Extract: roleFromList},
}

// ExtractRole applies RoleClaimPrecedence and reports which claim produced the role.
func ExtractRole(claims jwt.MapClaims) (role models.Role, claim string, ok bool) {
	for _, s := range RoleClaimPrecedence {
		raw, present := claims[s.Claim]
		if !present || raw == nil {
			continue
		}
		if v, found := s.Extract(raw); found {
			return normalizeRole(v), s.Claim, true
		}
	}
	return "", "", false
}

func normalizeRole(v string) models.Role {
	if r, ok := models.ParseRole(v); ok {
		return r
	}
	return models.Role(strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(v)), "ROLE_"))
}

func roleFromString(raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// roleFromList takes the first usable element of a list of strings or
// Spring authority objects ({"authority": "ROLE_ADMIN"}).
func roleFromList(raw any) (string, bool) {
	switch list := raw.(type) {
	case []any:
		for _, item := range list {
			switch v := item.(type) {
			case string:
				if strings.TrimSpace(v) != "" {
					return v, true
				}
			case map[string]any:
				for _, key := range []string{"authority", "role", "name"} {
					if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
						return s, true
					}
				}
			}
		}
	case string:
		// Comma separated authorities ("ROLE_ADMIN,ROLE_USER").
		for _, part := range strings.Split(list, ",") {
			if strings.TrimSpace(part) != "" {
				return strings.TrimSpace(part), true
			}
		}
	}
	return "", false
}

// Decode reads a credential's claims without verifying its signature. The
// backend verifies signatures; the client only needs subject, role and expiry.
func Decode(credential string, now time.Time) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Identity{}, fmt.Errorf("%w: empty", ErrInvalidCredential)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	id := Identity{Subject: sub}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad exp claim: %v", ErrInvalidCredential, err)
	}
	if exp != nil {
		id.ExpiresAt = exp.Time
		if !now.Before(exp.Time) {
			return Identity{}, fmt.Errorf("%w at %s", ErrExpiredCredential, exp.Time.UTC().Format(time.RFC3339))
		}
	}

	if role, _, ok := ExtractRole(claims); ok {
		id.Role = role
	}
	return id, nil
}
