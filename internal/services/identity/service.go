package identity

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// RoleAdmin may cancel any job regardless of who created it
const RoleAdmin = "admin"

// Service resolves static bearer tokens to caller identities
type Service struct {
	tokens         map[string]models.Identity
	allowAnonymous bool
	logger         arbor.ILogger
}

var _ interfaces.IdentityService = (*Service)(nil)

// NewService builds the resolver from the configured token map. A config
// without tokens degrades to anonymous-only operation even when
// allow_anonymous is off, since rejecting every caller serves nobody.
func NewService(logger arbor.ILogger, config *common.AuthConfig) *Service {
	tokens := make(map[string]models.Identity, len(config.Tokens))
	for _, entry := range config.Tokens {
		if entry.Token == "" || entry.Subject == "" {
			logger.Warn().
				Str("subject", entry.Subject).
				Msg("Skipping auth token entry without token or subject")
			continue
		}
		if _, exists := tokens[entry.Token]; exists {
			logger.Warn().
				Str("subject", entry.Subject).
				Msg("Duplicate auth token, keeping the last entry")
		}
		tokens[entry.Token] = models.Identity{
			Subject: entry.Subject,
			Email:   entry.Email,
			Roles:   entry.Roles,
		}
	}

	allowAnonymous := config.AllowAnonymous || len(tokens) == 0

	logger.Info().
		Int("tokens", len(tokens)).
		Bool("allow_anonymous", allowAnonymous).
		Msg("Identity service initialized")

	return &Service{
		tokens:         tokens,
		allowAnonymous: allowAnonymous,
		logger:         logger,
	}
}

// Resolve maps a bearer token to an identity. Token values never reach
// the logs.
func (s *Service) Resolve(token string) (models.Identity, error) {
	if token == "" {
		if s.allowAnonymous {
			return models.Anonymous, nil
		}
		return models.Identity{}, fmt.Errorf("%w: missing bearer token", models.ErrUnauthorized)
	}

	identity, ok := s.tokens[token]
	if !ok {
		s.logger.Debug().Msg("Rejected unknown bearer token")
		return models.Identity{}, fmt.Errorf("%w: unknown bearer token", models.ErrUnauthorized)
	}
	return identity, nil
}

// CanCancel reports whether the identity may cancel a job created by the
// given subject. Creators cancel their own jobs; admins cancel any.
func (s *Service) CanCancel(identity models.Identity, createdBy string) bool {
	if identity.HasRole(RoleAdmin) {
		return true
	}
	return identity.Subject == createdBy
}
