package interfaces

import (
	"github.com/ternarybob/doceo/internal/models"
)

// IdentityService resolves bearer tokens to caller identities.
//
// The service runs from a static token map in configuration. With no
// tokens configured it degrades to handing out the anonymous identity,
// so a bare development setup needs no auth section at all.
type IdentityService interface {
	// Resolve maps a bearer token to an identity. An empty token yields
	// the anonymous identity when anonymous access is allowed, otherwise
	// models.ErrUnauthorized.
	Resolve(token string) (models.Identity, error)

	// CanCancel reports whether the identity may cancel a job created by
	// the given subject
	CanCancel(identity models.Identity, createdBy string) bool
}
