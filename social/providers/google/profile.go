package google

import (
	"strings"

	"github.com/goliatone/academia/social"
)

// userInfo is the OpenID Connect userinfo response.
type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

func (info *userInfo) profile() *social.Profile {
	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.TrimSpace(info.GivenName + " " + info.FamilyName)
	}
	return &social.Profile{
		ProviderUserID: info.Sub,
		Provider:       "google",
		Email:          strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified:  info.EmailVerified,
		Name:           name,
		AvatarURL:      info.Picture,
	}
}
