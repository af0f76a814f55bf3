package web

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/academia"
	"github.com/goliatone/go-router"
)

const (
	localsClient = "academia.auth_client"
	localsStore  = "academia.session_store"
	localsToken  = "academia.session_token"
)

// sessionMiddleware restores the identity from the session cookie and
// hangs a session store off the request. The store is closed when the
// handler chain returns.
func (s *Server) sessionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := academia.NewAuthClient(s.backend, s.docs,
			academia.WithClientLogger(s.provider.GetLogger("academia.auth_client")),
			academia.WithClientClock(s.now),
		)

		if token := c.Cookies(s.cfg.Auth.CookieName); token != "" {
			if _, err := client.Restore(c.UserContext(), token); err != nil {
				s.logger.Debug("session cookie rejected", "error", err, "path", c.Path())
				if academia.IsTokenExpiredError(err) || academia.IsMalformedError(err) {
					s.cookieDel(c, s.cfg.Auth.CookieName)
				}
			} else {
				c.Locals(localsToken, token)
			}
		}

		resolver := academia.NewProfileResolver(s.docs, client,
			academia.WithResolverLogger(s.provider.GetLogger("academia.profile_resolver")),
			academia.WithResolverTimeout(s.cfg.GateWaitTimeout()),
		)
		store := academia.NewSessionStore(client, resolver,
			academia.WithStoreLogger(s.provider.GetLogger("academia.session_store")),
			academia.WithStoreClock(s.now),
		)
		defer store.Close()

		c.Locals(localsClient, client)
		c.Locals(localsStore, store)
		return c.Next()
	}
}

func clientFrom(c *fiber.Ctx) *academia.AuthClient {
	client, _ := c.Locals(localsClient).(*academia.AuthClient)
	return client
}

func storeFrom(c *fiber.Ctx) *academia.SessionStore {
	store, _ := c.Locals(localsStore).(*academia.SessionStore)
	return store
}

func callerFrom(c *fiber.Ctx) academia.Caller {
	if client := clientFrom(c); client != nil {
		return client.Caller()
	}
	return academia.Caller{}
}

// currentSession waits for the session to settle, bounded by the gate
// wait timeout. A session still loading after that is returned as is.
func (s *Server) currentSession(c *fiber.Ctx) academia.Session {
	store := storeFrom(c)
	if store == nil {
		return academia.Session{Status: academia.StatusReady}
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.GateWaitTimeout())
	defer cancel()
	sess, _ := store.Wait(ctx)
	return sess
}

// settledFor waits until the store has resolved the role for uid.
func (s *Server) settledFor(c *fiber.Ctx, uid string) academia.Session {
	store := storeFrom(c)
	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.GateWaitTimeout())
	defer cancel()
	sess, _ := store.WaitFor(ctx, func(sess academia.Session) bool {
		return sess.IsReady() && sess.UID() == uid
	})
	return sess
}

// landing is where a freshly signed in user goes: the route the gate
// rejected earlier if any, the admin area for admins, home otherwise.
func (s *Server) landing(c *fiber.Ctx, sess academia.Session) string {
	if r := s.takeRedirect(c); r != "" {
		return r
	}
	return s.roleLanding(sess)
}

func (s *Server) roleLanding(sess academia.Session) string {
	if sess.HasRole(academia.RoleAdmin) {
		return s.routes.AdminHome
	}
	if def := s.cfg.Auth.RejectedRouteDefault; def != "" {
		return def
	}
	return s.routes.Home
}

func (s *Server) startSession(c *fiber.Ctx, token string) {
	s.setCookie(c, s.cookie(s.cfg.Auth.CookieName, token, s.now().Add(s.cookieDuration())))
}

func (s *Server) cookieDuration() time.Duration {
	if h := s.cfg.Auth.TokenExpiration; h > 0 {
		return time.Duration(h) * time.Hour
	}
	return 24 * time.Hour
}

// setRedirect remembers the rejected URL so sign in can return to it.
func (s *Server) setRedirect(c *fiber.Ctx) {
	key := s.cfg.Auth.RejectedRouteKey
	s.logger.Debug("setting redirect cookie", "key", key, "path", c.OriginalURL())
	s.setCookie(c, s.cookie(key, c.OriginalURL(), s.now().Add(5*time.Minute)))
}

// takeRedirect returns and clears the remembered URL. Only local paths
// are honored.
func (s *Server) takeRedirect(c *fiber.Ctx) string {
	key := s.cfg.Auth.RejectedRouteKey
	r := c.Cookies(key)
	if r == "" {
		return ""
	}
	s.cookieDel(c, key)
	if !isLocalPath(r) {
		return ""
	}
	return r
}

func (s *Server) cookieDel(c *fiber.Ctx, name string) {
	s.setCookie(c, s.expiredCookie(name))
}

func (s *Server) expiredCookie(name string) *router.Cookie {
	return s.cookie(name, "", s.now().Add(-24*365*time.Hour))
}

func (s *Server) cookie(name, value string, expires time.Time) *router.Cookie {
	return &router.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: router.CookieSameSiteLaxMode,
	}
}

// setCookie writes cookie through the router context so fiber handlers
// and router handlers share one cookie shape.
func (s *Server) setCookie(c *fiber.Ctx, cookie *router.Cookie) {
	router.NewFiberContext(c, s.logger).Cookie(cookie)
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
