package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/academia"
)

// protect runs guard against the request session. Visitors who are not
// signed in are sent to sign in with a 303, which browsers follow without
// keeping the protected URL in history. A wrong role keeps the URL and
// renders the access warning.
func (s *Server) protect(name string, guard academia.Guard) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gate := academia.NewGate(storeFrom(c), guard)

		ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.GateWaitTimeout())
		d := gate.Wait(ctx)
		cancel()

		s.metrics.GateDecisions.WithLabelValues(name, d.State.String()).Inc()

		switch d.State {
		case academia.GateLoading:
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).Render("loading", s.view(c, fiber.Map{
				"title": "Cargando",
			}))
		case academia.GateUnauthenticated:
			s.setRedirect(c)
			return c.Redirect(d.Redirect, fiber.StatusSeeOther)
		case academia.GateWrongRole:
			return s.renderWarning(c, fiber.StatusForbidden, d.Message)
		}
		return c.Next()
	}
}
