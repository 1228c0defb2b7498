package http

import (
	"context"
	"encoding/json"

	"github.com/NeuralTrust/TrustRail/pkg/common"
	"github.com/NeuralTrust/TrustRail/pkg/conversation"
	"github.com/NeuralTrust/TrustRail/pkg/handlers/http/request"
	"github.com/NeuralTrust/TrustRail/pkg/handlers/http/response"
	"github.com/NeuralTrust/TrustRail/pkg/pipeline"
	"github.com/NeuralTrust/TrustRail/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Checker is the slice of the evaluation pipeline the handlers depend on.
type Checker interface {
	CheckInput(ctx context.Context, content string, conv *conversation.Conversation) (pipeline.Evaluation, error)
	CheckOutput(ctx context.Context, content string, conv *conversation.Conversation) (pipeline.Evaluation, error)
}

type checkHandler struct {
	logger        *logrus.Logger
	checker       Checker
	conversations *ConversationCache
	direction     types.Direction
}

func NewCheckInputHandler(
	logger *logrus.Logger,
	checker Checker,
	conversations *ConversationCache,
) Handler {
	return &checkHandler{
		logger:        logger,
		checker:       checker,
		conversations: conversations,
		direction:     types.DirectionInput,
	}
}

func NewCheckOutputHandler(
	logger *logrus.Logger,
	checker Checker,
	conversations *ConversationCache,
) Handler {
	return &checkHandler{
		logger:        logger,
		checker:       checker,
		conversations: conversations,
		direction:     types.DirectionOutput,
	}
}

// Handle @Summary Evaluate content against the configured guardrails
// @Description Runs the guardrail pipeline for one direction and returns the verdict
// @Tags Check
// @Accept json
// @Produce json
// @Success 200 {object} response.CheckResponse "Evaluation verdict"
// @Failure 400 {object} map[string]interface{} "No content to evaluate"
// @Router /api/v1/check/input [post]
func (h *checkHandler) Handle(c *fiber.Ctx) error {
	body := c.Body()

	var req request.CheckRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.WithError(err).Debug("request body is not the native check shape")
	}

	content := req.Content
	if content == "" {
		content = extractContent(body)
	}
	if content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = c.Get(common.ConversationIDHeader)
	}

	var conv *conversation.Conversation
	if conversationID != "" {
		conv = h.conversations.Get(conversationID, req.UserID)
	}

	eval, err := h.check(c.Context(), content, conv)
	if err != nil {
		h.logger.WithError(err).Error("Failed to evaluate content")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.recordTurn(conv, content, req.Metadata, eval)

	traceID, _ := c.Locals(common.TraceIdKey).(string)
	return c.Status(fiber.StatusOK).JSON(response.FromEvaluation(eval, traceID))
}

func (h *checkHandler) check(ctx context.Context, content string, conv *conversation.Conversation) (pipeline.Evaluation, error) {
	if h.direction == types.DirectionOutput {
		return h.checker.CheckOutput(ctx, content, conv)
	}
	return h.checker.CheckInput(ctx, content, conv)
}

// recordTurn appends the checked content to the conversation history after
// the verdict is in. Rate-limited calls record nothing so a retry is not
// counted twice.
func (h *checkHandler) recordTurn(conv *conversation.Conversation, content string, metadata map[string]interface{}, eval pipeline.Evaluation) {
	if conv == nil || eval.RateLimited {
		return
	}

	turnType := conversation.TurnTypePrompt
	if h.direction == types.DirectionOutput {
		turnType = conversation.TurnTypeResponse
	}

	if err := conv.AddTurn(content, turnType, metadata); err != nil {
		// Callers that only check outputs have no pending prompt; the
		// history simply does not get this turn.
		h.logger.WithError(err).Debug("turn not recorded")
	}
}
