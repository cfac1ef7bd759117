package handler

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmednasr/mapping-assistant/internal/config"
	"github.com/ahmednasr/mapping-assistant/internal/service"
)

// SQLHandler wires HTTP → SQLScriptGenerator.
type SQLHandler struct {
	gen     service.SQLScriptGenerator
	profile config.Profile
}

// NewSQLHandler creates a SQLHandler. Table names missing from a request
// fall back to the profile defaults.
func NewSQLHandler(gen service.SQLScriptGenerator, profile config.Profile) *SQLHandler {
	return &SQLHandler{gen: gen, profile: profile}
}

// Register mounts POST /generate_sql_scripts.
func (h *SQLHandler) Register(r fiber.Router) {
	r.Post("/generate_sql_scripts", h.generate)
}

type sqlRequest struct {
	SourceTable string `json:"source_table"`
	OutputTable string `json:"output_table"`
}

// generate handles POST /generate_sql_scripts
func (h *SQLHandler) generate(c *fiber.Ctx) error {
	var req sqlRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
	}
	if req.SourceTable == "" {
		req.SourceTable = h.profile.DefaultSourceTable
	}
	if req.OutputTable == "" {
		req.OutputTable = h.profile.DefaultOutputTable
	}

	chunks, err := h.gen.Generate(c.UserContext(), service.SQLRequest{
		SourceTable: req.SourceTable,
		OutputTable: req.OutputTable,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{"success": true, "sql_chunks": chunks})
}
