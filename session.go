package academia

import "time"

// Identity is the record the auth provider issues for a signed in user.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Clone returns a copy so holders never share the adapter's record.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Name returns the display name or falls back to the email.
func (i *Identity) Name() string {
	if i == nil {
		return ""
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

// Status is the lifecycle stage of a Session.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "invalid"
	}
}

// Session is a snapshot of who is signed in and what they may access.
// Role is RoleUnknown whenever Identity is nil.
type Session struct {
	Identity  *Identity
	Role      Role
	Status    Status
	LastError string
	UpdatedAt time.Time
}

// IsLoading reports whether the session has not settled yet.
func (s Session) IsLoading() bool {
	return s.Status == StatusLoading
}

// IsReady reports whether the session settled.
func (s Session) IsReady() bool {
	return s.Status == StatusReady
}

// SignedIn reports whether a settled identity is present.
func (s Session) SignedIn() bool {
	return s.Status == StatusReady && s.Identity != nil
}

// HasRole reports whether the session is settled with exactly role r.
func (s Session) HasRole(r Role) bool {
	return s.SignedIn() && r.IsValid() && s.Role == r
}

// UID returns the identity uid or an empty string.
func (s Session) UID() string {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.UID
}

func (s Session) clone() Session {
	s.Identity = s.Identity.Clone()
	return s
}
