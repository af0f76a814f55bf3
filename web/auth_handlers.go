package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/academia"
	"github.com/goliatone/academia/social"
	"github.com/goliatone/go-router"
)

const (
	modeLogin    = "login"
	modeRegister = "register"
)

func (s *Server) renderAuth(c *fiber.Ctx, status int, mode string, record any, errs map[string]string) error {
	title := "Iniciar sesión"
	if mode == modeRegister {
		title = "Crear cuenta"
	}
	return c.Status(status).Render("auth", s.view(c, fiber.Map{
		"title":  title,
		"mode":   mode,
		"record": record,
		"errors": errs,
	}))
}

// authShow renders the sign in and sign up forms. Visitors already signed
// in are sent where sign in would have sent them.
func (s *Server) authShow(c *fiber.Ctx) error {
	if sess := s.currentSession(c); sess.SignedIn() {
		return c.Redirect(s.roleLanding(sess), fiber.StatusSeeOther)
	}
	mode := modeLogin
	if c.Query("mode") == modeRegister {
		mode = modeRegister
	}
	return s.renderAuth(c, fiber.StatusOK, mode, nil, nil)
}

func (s *Server) loginPost(c *fiber.Ctx) error {
	payload := new(LoginPayload)
	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("login parse payload", "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return s.renderAuth(c, fiber.StatusUnprocessableEntity, modeLogin, payload, fieldErrors(err))
	}

	s.logger.Debug("login attempt", "email", payload.Email)

	client := clientFrom(c)
	id, err := client.SignIn(c.UserContext(), payload.Email, payload.Password)
	s.metrics.SignIns.WithLabelValues("password", result(err)).Inc()
	if err != nil {
		return s.renderAuth(c, statusFor(err), modeLogin, payload, map[string]string{
			"form": academia.ErrorMessage(err),
		})
	}

	s.startSession(c, client.Token())
	return c.Redirect(s.landing(c, s.settledFor(c, id.UID)), fiber.StatusSeeOther)
}

func (s *Server) registerPost(c *fiber.Ctx) error {
	payload := new(RegisterPayload)
	if err := c.BodyParser(payload); err != nil {
		s.logger.Error("register parse payload", "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		return s.renderAuth(c, fiber.StatusUnprocessableEntity, modeRegister, payload, fieldErrors(err))
	}

	client := clientFrom(c)
	id, err := client.SignUp(c.UserContext(), payload.Email, payload.Password, payload.Name)
	if id == nil {
		return s.renderAuth(c, statusFor(err), modeRegister, payload, map[string]string{
			"form": academia.ErrorMessage(err),
		})
	}

	s.startSession(c, client.Token())
	sess := s.settledFor(c, id.UID)
	if err != nil {
		// the account exists but its profile could not be written
		s.logger.Error("sign up profile bootstrap failed", "uid", id.UID, "error", err)
		return c.Redirect(s.routes.Warning, fiber.StatusSeeOther)
	}
	return c.Redirect(s.landing(c, sess), fiber.StatusSeeOther)
}

func (s *Server) federatedBegin(c *fiber.Ctx) error {
	if s.social == nil {
		return fiber.ErrNotFound
	}
	redirect, err := s.social.Begin(c.UserContext(), c.Params("provider"), s.takeRedirect(c))
	if err != nil {
		if academia.IsProviderNotFound(err) {
			return fiber.ErrNotFound
		}
		return err
	}
	return c.Redirect(redirect.URL, fiber.StatusSeeOther)
}

func (s *Server) federatedCallback(c *fiber.Ctx) error {
	if s.social == nil {
		return fiber.ErrNotFound
	}
	provider := c.Params("provider")
	flow := social.NewCallbackFlow(provider, academia.FederatedCallback{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	})

	client := clientFrom(c)
	id, err := client.SignInWithFederatedProvider(c.UserContext(), flow)
	s.metrics.SignIns.WithLabelValues(provider, result(err)).Inc()
	if id == nil {
		if academia.IsProviderNotFound(err) {
			return fiber.ErrNotFound
		}
		s.logger.Info("federated sign in failed", "provider", provider, "error", err)
		return s.renderAuth(c, statusFor(err), modeLogin, nil, map[string]string{
			"form": federatedMessage(err),
		})
	}

	s.startSession(c, client.Token())
	sess := s.settledFor(c, id.UID)
	if err != nil {
		s.logger.Error("federated profile bootstrap failed", "uid", id.UID, "error", err)
		return c.Redirect(s.routes.Warning, fiber.StatusSeeOther)
	}

	target := s.social.RedirectURL(c.Query("state"))
	if !isLocalPath(target) || target == s.routes.Home || target == s.cfg.Auth.RejectedRouteDefault {
		target = s.roleLanding(sess)
	}
	return c.Redirect(target, fiber.StatusSeeOther)
}

func federatedMessage(err error) string {
	if academia.IsNetworkError(err) || academia.IsPopupClosed(err) {
		return academia.ErrorMessage(err)
	}
	return "No se pudo iniciar sesión con el proveedor externo"
}

// logout is idempotent: signing out without a session just redirects.
func (s *Server) logout(ctx router.Context) error {
	if client, ok := ctx.Locals(localsClient).(*academia.AuthClient); ok && client != nil {
		if err := client.SignOut(ctx.Context()); err != nil {
			s.logger.Warn("sign out", "error", err)
		}
	}
	ctx.Cookie(s.expiredCookie(s.cfg.Auth.CookieName))
	return ctx.Redirect(s.routes.Home, fiber.StatusSeeOther)
}

// health reports whether the document store answers.
func (s *Server) health(ctx router.Context) error {
	if err := s.docs.Ping(ctx.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		return ctx.JSON(fiber.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
	}
	return ctx.JSON(fiber.StatusOK, map[string]any{"status": "ok"})
}

// warningShow explains why a section could not be shown.
func (s *Server) warningShow(c *fiber.Ctx) error {
	sess := s.currentSession(c)
	message := sess.LastError
	if message == "" && !sess.SignedIn() {
		message = "Necesitas iniciar sesión para ver esta sección."
	}
	return c.Render("warning", s.view(c, fiber.Map{
		"title":   "Acceso restringido",
		"message": message,
	}))
}
