package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/service"
	"github.com/ahmednasr/mapping-assistant/internal/session"
	"github.com/ahmednasr/mapping-assistant/internal/tabular"
)

// sourceSampleRows is how many data rows of an uploaded source are kept.
const sourceSampleRows = 10

// UploadHandler accepts the source file and the two context files.
type UploadHandler struct {
	uploadDir string
	files     service.ContextFiles
	sessions  *session.Store
	logger    *zap.Logger
}

// NewUploadHandler saves uploads under uploadDir.
func NewUploadHandler(uploadDir string, files service.ContextFiles, sessions *session.Store, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{uploadDir: uploadDir, files: files, sessions: sessions, logger: logger.Named("upload")}
}

// Register mounts the upload routes.
func (h *UploadHandler) Register(r fiber.Router) {
	r.Post("/upload_source_file", h.uploadSource)
	r.Post("/upload_data_dict", h.uploadDataDict)
	r.Post("/upload_domain_model", h.uploadDomainModel)
}

// uploadSource handles POST /upload_source_file
func (h *UploadHandler) uploadSource(c *fiber.Ctx) error {
	fh, err := formFile(c, "source_file")
	if err != nil {
		return err
	}
	if !strings.HasSuffix(fh.Filename, ".csv") {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid file format. Please upload a CSV file.")
	}

	name := secureFilename(fh.Filename)
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return fail(fmt.Errorf("create upload dir: %w", err))
	}
	path := filepath.Join(h.uploadDir, name)
	if err := c.SaveFile(fh, path); err != nil {
		return fail(fmt.Errorf("save upload: %w", err))
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(err)
	}
	defer f.Close()
	table, err := tabular.ReadCSV(f, sourceSampleRows)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Error reading file: %v", err))
	}

	h.sessions.Put(sessionID(c), models.SourceSnapshot{FileName: name, Headers: table.Headers, Rows: table.Rows})
	h.logger.Info("source uploaded", zap.String("file", name), zap.Int("headers", len(table.Headers)))

	return c.JSON(fiber.Map{
		"success":     true,
		"headers":     table.Headers,
		"filename":    name,
		"sample_rows": len(table.Rows),
	})
}

// uploadDataDict handles POST /upload_data_dict
func (h *UploadHandler) uploadDataDict(c *fiber.Ctx) error {
	return h.saveContext(c, "data_dict_file", h.files.SaveDataDictionary, "Data dictionary uploaded successfully.")
}

// uploadDomainModel handles POST /upload_domain_model
func (h *UploadHandler) uploadDomainModel(c *fiber.Ctx) error {
	return h.saveContext(c, "domain_model_file", h.files.SaveDomainModel, "Domain model uploaded successfully.")
}

func (h *UploadHandler) saveContext(c *fiber.Ctx, field string, save func(string, io.Reader) error, message string) error {
	fh, err := formFile(c, field)
	if err != nil {
		return err
	}
	f, err := fh.Open()
	if err != nil {
		return fail(err)
	}
	defer f.Close()

	if err := save(fh.Filename, f); err != nil {
		h.logger.Warn("context upload rejected", zap.String("field", field), zap.String("file", fh.Filename), zap.Error(err))
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Failed to process file: %v", err))
	}
	h.logger.Info("context file uploaded", zap.String("field", field), zap.String("file", fh.Filename))
	return c.JSON(fiber.Map{"success": true, "message": message})
}

// formFile returns the named upload, or a 400 when it is absent.
func formFile(c *fiber.Ctx, field string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if err != nil || fh.Filename == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No file selected")
	}
	return fh, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// secureFilename reduces an uploaded name to a safe base name.
func secureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "upload.csv"
	}
	return name
}
