// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package requestid carries a per-request correlation ID through contexts.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used to propagate the ID in both directions.
const Header = "X-Request-Id"

const maxInboundLen = 128

type ctxKey struct{}

// New returns a fresh random ID.
func New() string {
	return uuid.NewString()
}

// FromInbound reuses a caller supplied ID when it is short and printable,
// otherwise it generates a new one.
func FromInbound(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxInboundLen {
		return New()
	}
	for _, r := range value {
		if r < 0x21 || r > 0x7e {
			return New()
		}
	}
	return value
}

// WithContext returns a copy of ctx carrying id.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the ID stored in ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
