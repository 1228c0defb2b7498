package middleware

import (
	"context"

	"github.com/NeuralTrust/TrustRail/pkg/common"
	"github.com/NeuralTrust/TrustRail/pkg/infra/fingerprint"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type fingerPrintMiddleware struct {
	logger *logrus.Logger
}

func NewFingerPrintMiddleware(logger *logrus.Logger) Middleware {
	return &fingerPrintMiddleware{logger: logger}
}

func (m *fingerPrintMiddleware) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		fingerPrint := fingerprint.FromRequest(ctx)
		ctx.Locals(common.FingerprintIdContextKey, fingerPrint.ID())

		id := uuid.New().String()
		ctx.Locals(common.TraceIdKey, id)
		ctx.Set(common.InteractionIDHeader, id)

		c := context.WithValue(ctx.Context(), common.FingerprintIdContextKey, fingerPrint.ID())
		c = context.WithValue(c, common.TraceIdKey, id)
		ctx.SetUserContext(c)
		return ctx.Next()
	}
}
