// Package auth decides whether the caller of an operation may act as a given
// identity.
package auth

import (
	"context"
	"errors"

	"roulette/internal/models"
)

// ErrUnauthorized is returned when the caller is not the required identity.
var ErrUnauthorized = errors.New("caller is not authorized")

// Authorizer fails when the current caller may not act as identity.
type Authorizer interface {
	Require(ctx context.Context, identity models.Identity) error
}

type callerKey struct{}

// WithCaller returns a context that carries the authenticated caller.
func WithCaller(ctx context.Context, caller models.Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the authenticated caller, if any.
func CallerFrom(ctx context.Context) (models.Identity, bool) {
	caller, ok := ctx.Value(callerKey{}).(models.Identity)
	return caller, ok && caller != ""
}

// ContextAuthorizer accepts a caller that was put on the context with
// WithCaller and equals the required identity.
type ContextAuthorizer struct{}

// Require implements Authorizer.
func (ContextAuthorizer) Require(ctx context.Context, identity models.Identity) error {
	caller, ok := CallerFrom(ctx)
	if !ok || caller != identity {
		return ErrUnauthorized
	}
	return nil
}
