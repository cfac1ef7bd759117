package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmednasr/mapping-assistant/internal/service"
)

type HealthHandler struct {
	rules         service.RuleStore
	llmConfigured bool
}

func NewHealthHandler(rules service.RuleStore, llmConfigured bool) *HealthHandler {
	return &HealthHandler{
		rules:         rules,
		llmConfigured: llmConfigured,
	}
}

func (h *HealthHandler) Register(r fiber.Router) {
	r.Get("/health", h.health)
}

func (h *HealthHandler) health(c *fiber.Ctx) error {
	llm := "not_configured"
	if h.llmConfigured {
		llm = "configured"
	}
	status := fiber.Map{
		"status":     "ok",
		"rule_store": h.checkRules(c.UserContext()),
		"llm":        llm,
	}

	return c.JSON(status)
}

func (h *HealthHandler) checkRules(ctx context.Context) string {
	if h.rules == nil {
		return "not_configured"
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	reader, err := h.rules.Open(ctx)
	if err != nil {
		return "error"
	}
	_ = reader.Close()
	return "connected"
}
