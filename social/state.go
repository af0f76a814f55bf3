package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// StateManager encodes the state parameter carried through the provider
// round trip.
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
}

// OAuthState is the payload of the state parameter.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// stateVersion prefixes every token so the layout can change later.
const stateVersion byte = 1

// EncryptedStateManager seals state with AES-GCM and signs the sealed
// bytes with HMAC-SHA256. Tokens are
// base64url(version | mac(version|sealed) | sealed), sealed being
// nonce | ciphertext.
type EncryptedStateManager struct {
	gcm     cipher.AEAD
	hmacKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewEncryptedStateManager creates a state manager. encryptionKey must be
// 16, 24 or 32 bytes and hmacKey at least 16. A zero ttl means ten minutes.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration) (*EncryptedStateManager, error) {
	if len(hmacKey) < 16 {
		return nil, fmt.Errorf("state hmac key must be at least 16 bytes, got %d", len(hmacKey))
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("state encryption key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("state cipher: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &EncryptedStateManager{
		gcm:     gcm,
		hmacKey: append([]byte(nil), hmacKey...),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// WithClock overrides time.Now.
func (sm *EncryptedStateManager) WithClock(now func() time.Time) *EncryptedStateManager {
	if now != nil {
		sm.now = now
	}
	return sm
}

// Encode fills in nonce and timestamps, then seals state.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := sm.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		n, err := randomString(16)
		if err != nil {
			return "", err
		}
		state.Nonce = n
	}

	plaintext, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	nonce := make([]byte, sm.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("state nonce: %w", err)
	}
	sealed := sm.gcm.Seal(nonce, nonce, plaintext, nil)

	out := make([]byte, 0, 1+sha256.Size+len(sealed))
	out = append(out, stateVersion)
	out = append(out, sm.mac(sealed)...)
	out = append(out, sealed...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decode authenticates, opens and checks the expiry of token.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < 1+sha256.Size+sm.gcm.NonceSize() || raw[0] != stateVersion {
		return nil, ErrInvalidState
	}

	sum, sealed := raw[1:1+sha256.Size], raw[1+sha256.Size:]
	if !hmac.Equal(sum, sm.mac(sealed)) {
		return nil, ErrInvalidState
	}

	nonce, ciphertext := sealed[:sm.gcm.NonceSize()], sealed[sm.gcm.NonceSize():]
	plaintext, err := sm.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidState
	}

	state := &OAuthState{}
	if err := json.Unmarshal(plaintext, state); err != nil {
		return nil, ErrInvalidState
	}
	if sm.now().Unix() > state.ExpiresAt {
		return nil, fmt.Errorf("%w: %w", ErrStateExpired, ErrInvalidState)
	}
	return state, nil
}

func (sm *EncryptedStateManager) mac(sealed []byte) []byte {
	m := hmac.New(sha256.New, sm.hmacKey)
	m.Write([]byte{stateVersion})
	m.Write(sealed)
	return m.Sum(nil)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// generateCodeVerifier returns a 43 character PKCE verifier.
func generateCodeVerifier() (string, error) {
	return randomString(32)
}

func computeCodeChallenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
