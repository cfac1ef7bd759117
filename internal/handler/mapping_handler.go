package handler

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/service"
	"github.com/ahmednasr/mapping-assistant/internal/session"
	"github.com/ahmednasr/mapping-assistant/internal/tabular"
)

// defaultSourceFile is shown on the index page until a source is uploaded.
const defaultSourceFile = "member_enrollment_file.csv"

// MappingHandler wires HTTP → MappingService.
type MappingHandler struct {
	svc       *service.MappingService
	sessions  *session.Store
	sourceDir string
}

// NewMappingHandler creates a MappingHandler. sourceDir holds the sample
// source file shown before any upload.
func NewMappingHandler(svc *service.MappingService, sessions *session.Store, sourceDir string) *MappingHandler {
	return &MappingHandler{svc: svc, sessions: sessions, sourceDir: sourceDir}
}

// Register mounts the mapping routes.
func (h *MappingHandler) Register(r fiber.Router) {
	r.Get("/", h.index)
	r.Post("/save_mapping", h.saveMapping)
	r.Get("/get_mappings", h.getMappings)
	r.Post("/clear_mappings", h.clearMappings)
	r.Get("/export_mappings", h.exportMappings)
	r.Post("/preview_transformation", h.previewTransformation)
	r.Post("/generate_llm_mappings", h.generateMappings)
}

// index handles GET /
func (h *MappingHandler) index(c *fiber.Ctx) error {
	sample, ok := currentSource(c, h.sessions)
	if !ok {
		sample = h.defaultSample()
	}
	if sample.Headers == nil {
		sample.Headers = []string{}
	}
	if sample.Rows == nil {
		sample.Rows = [][]string{}
	}

	profile := h.svc.Profile()
	return c.JSON(fiber.Map{
		"stage_fields":         profile.StageFields,
		"transformation_rules": profile.RuleCatalogue(),
		"source_headers":       sample.Headers,
		"source_sample_rows":   sample.Rows,
		"mappings":             h.svc.Mappings(),
	})
}

// defaultSample reads the bundled sample source. A missing file is not an
// error; the page just shows no sample.
func (h *MappingHandler) defaultSample() models.SourceSnapshot {
	f, err := os.Open(filepath.Join(h.sourceDir, defaultSourceFile))
	if err != nil {
		return models.SourceSnapshot{}
	}
	defer f.Close()
	t, err := tabular.ReadCSV(f, sourceSampleRows)
	if err != nil {
		return models.SourceSnapshot{}
	}
	return models.SourceSnapshot{FileName: defaultSourceFile, Headers: t.Headers, Rows: t.Rows}
}

type saveMappingRequest struct {
	StageField        string          `json:"stage_field"`
	MappingExpression json.RawMessage `json:"mapping_expression"`
}

// saveMapping handles POST /save_mapping
func (h *MappingHandler) saveMapping(c *fiber.Ctx) error {
	var req saveMappingRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if err := h.svc.SaveMapping(req.StageField, req.MappingExpression); err != nil {
		return fail(err)
	}

	message := "Mapping saved successfully"
	if req.StageField == models.EmployerGroupsField {
		message = "Employer Group mapping saved"
	}
	return c.JSON(fiber.Map{"success": true, "message": message})
}

// getMappings handles GET /get_mappings
func (h *MappingHandler) getMappings(c *fiber.Ctx) error {
	return c.JSON(h.svc.Mappings())
}

// clearMappings handles POST /clear_mappings
func (h *MappingHandler) clearMappings(c *fiber.Ctx) error {
	if err := h.svc.Clear(); err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "All mappings cleared"})
}

// exportMappings handles GET /export_mappings
func (h *MappingHandler) exportMappings(c *fiber.Ctx) error {
	headers := []string{}
	if src, ok := currentSource(c, h.sessions); ok && src.Headers != nil {
		headers = src.Headers
	}
	return c.JSON(fiber.Map{
		"mappings":       h.svc.Mappings(),
		"source_headers": headers,
		"stage_fields":   h.svc.Profile().StageFields,
	})
}

type previewRequest struct {
	Expression string `json:"expression"`
	SampleData string `json:"sample_data"`
}

// previewTransformation handles POST /preview_transformation
func (h *MappingHandler) previewTransformation(c *fiber.Ctx) error {
	var req previewRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"result":  service.PreviewTransformation(req.Expression, req.SampleData),
	})
}

// generateMappings handles POST /generate_llm_mappings
func (h *MappingHandler) generateMappings(c *fiber.Ctx) error {
	src, ok := currentSource(c, h.sessions)
	if !ok {
		return fail(models.ErrNoSource)
	}
	proposal, err := h.svc.GenerateMappings(c.UserContext(), &src)
	if err != nil {
		return fail(err)
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"processing": false,
		"mappings":   proposal.Mappings,
		"reasoning":  proposal.Reasoning,
	})
}
