package web

import (
	"embed"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/academia"
)

//go:embed views
var viewsFS embed.FS

func newViewEngine() *django.Engine {
	return django.NewPathForwardingFileSystem(http.FS(viewsFS), "/views", ".html")
}

// viewSession is the part of the session the layout needs.
type viewSession struct {
	SignedIn bool
	IsAdmin  bool
	Name     string
	Email    string
	PhotoURL string
	Message  string
}

func newViewSession(sess academia.Session) viewSession {
	v := viewSession{
		SignedIn: sess.SignedIn(),
		IsAdmin:  sess.HasRole(academia.RoleAdmin),
		Message:  sess.LastError,
	}
	if sess.Identity != nil {
		v.Name = sess.Identity.Name()
		v.Email = sess.Identity.Email
		v.PhotoURL = sess.Identity.PhotoURL
	}
	return v
}

// view adds the values every template expects to data.
func (s *Server) view(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}
	data["session"] = newViewSession(s.currentSession(c))
	data["csrf_token"] = c.Locals(csrfLocalsKey)
	data["csrf_field"] = csrfFormField
	data["routes"] = s.routes
	data["providers"] = s.providers()
	data["path"] = c.Path()
	return data
}

type providerLink struct {
	Name  string
	Label string
}

func (s *Server) providers() []providerLink {
	if s.social == nil {
		return nil
	}
	names := s.social.Providers()
	out := make([]providerLink, 0, len(names))
	for _, name := range names {
		label := name
		switch name {
		case "google":
			label = "Google"
		case "github":
			label = "GitHub"
		}
		out = append(out, providerLink{Name: name, Label: label})
	}
	return out
}

func (s *Server) renderWarning(c *fiber.Ctx, status int, message string) error {
	if message == "" || message == "access denied" {
		message = "Necesitas permisos de administrador para ver esta sección."
	}
	return c.Status(status).Render("warning", s.view(c, fiber.Map{
		"title":   "Acceso restringido",
		"message": message,
	}))
}
