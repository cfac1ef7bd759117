package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ahmednasr/mapping-assistant/internal/models"
	"github.com/ahmednasr/mapping-assistant/internal/session"
)

// sessionID returns the caller's session id, issuing a cookie when the
// request carries none.
func sessionID(c *fiber.Ctx) string {
	// fiber reuses the request buffer; the id outlives the handler.
	id := strings.Clone(c.Cookies(session.CookieName))
	if session.Valid(id) {
		return id
	}
	id = session.NewID()
	c.Cookie(&fiber.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return id
}

// currentSource returns the last source file the caller uploaded.
func currentSource(c *fiber.Ctx, sessions *session.Store) (models.SourceSnapshot, bool) {
	id := c.Cookies(session.CookieName)
	if !session.Valid(id) {
		return models.SourceSnapshot{}, false
	}
	return sessions.Get(id)
}
