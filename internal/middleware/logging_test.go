package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	app := fiber.New()
	app.Use(Logging(zap.New(core)))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "nope") })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.ErrInternalServerError })

	tests := []struct {
		path   string
		status int
		level  zapcore.Level
	}{
		{"/ok", 200, zapcore.InfoLevel},
		{"/bad", 400, zapcore.WarnLevel},
		{"/boom", 500, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			entries := logs.TakeAll()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			ctx := entries[0].ContextMap()
			assert.Equal(t, tt.path, ctx["path"])
			assert.EqualValues(t, tt.status, ctx["status"])
		})
	}
}
