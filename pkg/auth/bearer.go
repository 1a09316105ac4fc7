// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package auth

import (
	"errors"
	"net/http"
)

// HeaderAuthorization is the header carrying the upstream credential.
const HeaderAuthorization = "Authorization"

// ErrEmptyToken is returned when a Bearer has no token to inject.
var ErrEmptyToken = errors.New("bearer token must be set")

// Bearer injects a static bearer credential into outbound requests. The token
// is fixed at construction and never mutated, so a single Bearer is safe for
// concurrent use.
type Bearer struct {
	token string
}

// NewBearer constructs a Bearer for token.
func NewBearer(token string) *Bearer {
	return &Bearer{token: token}
}

// Attach replaces any Authorization values on req with exactly one
// "Bearer <token>" value.
func (b *Bearer) Attach(req *http.Request) error {
	if b == nil || b.token == "" {
		return ErrEmptyToken
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set(HeaderAuthorization, "Bearer "+b.token)
	return nil
}

// String never reveals the token.
func (b *Bearer) String() string {
	if b == nil || b.token == "" {
		return "Bearer <unset>"
	}
	return "Bearer <redacted>"
}
