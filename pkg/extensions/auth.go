// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the identity extension point. The open source
// server maps static bearer tokens to user IDs; an identity provider can be
// plugged in by implementing AuthProvider.
package extensions

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo is the identity of an authenticated caller.
type AuthInfo struct {
	// UserID is the only required field and must never be empty.
	UserID string

	Email string
	Roles []string
}

func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates a bearer token and returns the caller's identity.
//
// Validate returns ErrUnauthorized (or a wrapped form) for unknown tokens
// and other errors for provider failures.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// TokenAuthProvider maps static bearer tokens to user IDs.
//
// # Description
//
// Tokens are held as SHA-256 digests and compared in constant time.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type TokenAuthProvider struct {
	users map[[sha256.Size]byte]string
}

// NewTokenAuthProvider builds a provider from a token → user ID map.
func NewTokenAuthProvider(tokens map[string]string) *TokenAuthProvider {
	users := make(map[[sha256.Size]byte]string, len(tokens))
	for tok, user := range tokens {
		tok, user = strings.TrimSpace(tok), strings.TrimSpace(user)
		if tok == "" || user == "" {
			continue
		}
		users[sha256.Sum256([]byte(tok))] = user
	}
	return &TokenAuthProvider{users: users}
}

// ParseTokenList parses "token:user,token2:user2".
func ParseTokenList(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		tok, user, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(tok) == "" || strings.TrimSpace(user) == "" {
			return nil, fmt.Errorf("invalid token entry %q: want token:user", redact(pair))
		}
		out[strings.TrimSpace(tok)] = strings.TrimSpace(user)
	}
	return out, nil
}

func redact(pair string) string {
	if _, user, ok := strings.Cut(pair, ":"); ok {
		return "***:" + user
	}
	return "***"
}

// Len returns the number of configured tokens.
func (p *TokenAuthProvider) Len() int {
	return len(p.users)
}

func (p *TokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	digest := sha256.Sum256([]byte(token))
	for known, user := range p.users {
		if subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
			return &AuthInfo{UserID: user, Roles: []string{"user"}}, nil
		}
	}
	return nil, ErrUnauthorized
}

// NopAuthProvider accepts every token as a single local user. Used by
// single-user deployments.
type NopAuthProvider struct{}

func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

var (
	_ AuthProvider = (*TokenAuthProvider)(nil)
	_ AuthProvider = (*NopAuthProvider)(nil)
)
