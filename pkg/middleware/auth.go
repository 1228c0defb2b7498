package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/NeuralTrust/TrustRail/pkg/common"
	"github.com/NeuralTrust/TrustRail/pkg/infra/jwt"
	"github.com/sirupsen/logrus"
)

const trustrailAuthHeader = "X-TR-API-Key"

const bearerPrefix = "Bearer "

type authMiddleware struct {
	logger     *logrus.Logger
	apiKeys    map[string]struct{}
	jwtManager jwt.Manager
}

// NewAuthMiddleware authenticates callers either by a static API key in the
// X-TR-API-Key header or, when a manager is given, by a bearer token in the
// Authorization header. A nil jwtManager disables the bearer path.
func NewAuthMiddleware(
	logger *logrus.Logger,
	apiKeys []string,
	jwtManager jwt.Manager,
) Middleware {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, key := range apiKeys {
		if key != "" {
			keys[key] = struct{}{}
		}
	}
	return &authMiddleware{
		logger:     logger,
		apiKeys:    keys,
		jwtManager: jwtManager,
	}
}

func (m *authMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {

		if apiKey := ctx.Get(trustrailAuthHeader); apiKey != "" {
			if _, ok := m.apiKeys[apiKey]; !ok {
				m.logger.Debug("invalid api key")
				return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid API key"})
			}

			ctx.Locals(common.ApiKeyContextKey, apiKey)
			c := context.WithValue(ctx.Context(), common.ApiKeyContextKey, apiKey)
			ctx.SetUserContext(c)
			return ctx.Next()
		}

		authorization := ctx.Get(fiber.HeaderAuthorization)
		if m.jwtManager != nil && strings.HasPrefix(authorization, bearerPrefix) {
			token := strings.TrimPrefix(authorization, bearerPrefix)
			claims, err := m.jwtManager.DecodeToken(token)
			if err != nil {
				m.logger.WithError(err).Debug("invalid bearer token")
				return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
			}

			ctx.Locals(common.SubjectContextKey, claims.Subject)
			c := context.WithValue(ctx.Context(), common.SubjectContextKey, claims.Subject)
			ctx.SetUserContext(c)
			return ctx.Next()
		}

		m.logger.Debug("no credentials provided")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "credentials required"})
	}
}
