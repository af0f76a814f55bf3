package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	csrfFormField  = "_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfLocalsKey  = "csrf_token"
	csrfNonceSize  = 16
)

var (
	errCSRFMismatch = errors.New("CSRF token mismatch")
	errCSRFMissing  = errors.New("CSRF token missing")
	errCSRFExpired  = errors.New("CSRF token expired")
)

var csrfSafeMethods = []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions}

// csrfGuard issues stateless tokens bound to the restored session token,
// or to the client IP for anonymous visitors. It must run after the
// session middleware.
type csrfGuard struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newCSRFGuard(signingKey string, ttl time.Duration) *csrfGuard {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte("csrf"))
	return &csrfGuard{
		key: mac.Sum(nil),
		ttl: ttl,
		now: time.Now,
	}
}

func (g *csrfGuard) middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionKey := g.sessionKey(c)
		token, err := g.generate(sessionKey)
		if err != nil {
			return err
		}
		c.Locals(csrfLocalsKey, token)

		if slices.Contains(csrfSafeMethods, c.Method()) {
			return c.Next()
		}

		received := c.FormValue(csrfFormField)
		if received == "" {
			received = c.Get(csrfHeaderName)
		}
		if err := g.validate(sessionKey, received); err != nil {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		return c.Next()
	}
}

func (g *csrfGuard) sessionKey(c *fiber.Ctx) string {
	if v, _ := c.Locals(localsToken).(string); v != "" {
		sum := sha256.Sum256([]byte(v))
		return "s" + hex.EncodeToString(sum[:8])
	}
	return "ip" + strings.ReplaceAll(c.IP(), ":", ".")
}

func (g *csrfGuard) generate(sessionKey string) (string, error) {
	nonce := make([]byte, csrfNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	payload := fmt.Sprintf("%d:%s:%s", g.now().UTC().Unix(), hex.EncodeToString(nonce), sessionKey)
	token := payload + ":" + hex.EncodeToString(g.sign(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(token)), nil
}

func (g *csrfGuard) validate(sessionKey, token string) error {
	if token == "" {
		return errCSRFMissing
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return errCSRFMismatch
	}

	parts := strings.Split(string(decoded), ":")
	if len(parts) != 4 {
		return errCSRFMismatch
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return errCSRFMismatch
	}
	signature, err := hex.DecodeString(parts[3])
	if err != nil {
		return errCSRFMismatch
	}
	if !hmac.Equal(signature, g.sign(strings.Join(parts[:3], ":"))) {
		return errCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(sessionKey)) != 1 {
		return errCSRFMismatch
	}
	if g.ttl > 0 && g.now().UTC().After(time.Unix(timestamp, 0).Add(g.ttl)) {
		return errCSRFExpired
	}
	return nil
}

func (g *csrfGuard) sign(payload string) []byte {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
