package github

import (
	"strconv"
	"strings"

	"github.com/goliatone/academia/social"
)

type user struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type accountEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// pickEmail returns the primary address, else the first verified one.
func pickEmail(emails []accountEmail) (string, bool) {
	var fallback *accountEmail
	for i := range emails {
		e := &emails[i]
		if e.Primary {
			return e.Email, e.Verified
		}
		if e.Verified && fallback == nil {
			fallback = e
		}
	}
	if fallback == nil {
		return "", false
	}
	return fallback.Email, true
}

func (u *user) profile(email string, verified bool) *social.Profile {
	p := &social.Profile{
		ProviderUserID: strconv.FormatInt(u.ID, 10),
		Provider:       "github",
		Email:          strings.ToLower(strings.TrimSpace(email)),
		EmailVerified:  verified,
		Name:           strings.TrimSpace(u.Name),
		AvatarURL:      u.AvatarURL,
	}
	if p.Name == "" {
		p.Name = u.Login
	}
	return p
}
