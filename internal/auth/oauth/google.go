package oauth

import (
	"fmt"

	"github.com/asaskevich/govalidator"

	"authgate/internal/auth/models"
)

const GoogleProviderName = "google"

// googleUserInfo is the shape of the v2 userinfo payload we rely on. Google
// sends more fields; everything else is dropped at this boundary.
type googleUserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewGoogleProvider configures the Google variant of the flow.
func NewGoogleProvider(clientID, clientSecret string) Provider {
	return Provider{
		Name:         GoogleProviderName,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
			"openid",
		},
		AuthURL:       "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:      "https://oauth2.googleapis.com/token",
		UserInfoURL:   "https://www.googleapis.com/oauth2/v2/userinfo",
		ParseUserInfo: parseGoogleUserInfo,
	}
}

func parseGoogleUserInfo(body []byte) (models.UserInfo, error) {
	var raw googleUserInfo
	if err := decodeJSON(body, &raw); err != nil {
		return models.UserInfo{}, err
	}
	if raw.ID == "" {
		return models.UserInfo{}, fmt.Errorf("userinfo missing id")
	}
	if raw.Name == "" {
		return models.UserInfo{}, fmt.Errorf("userinfo missing name")
	}
	if !govalidator.IsEmail(raw.Email) {
		return models.UserInfo{}, fmt.Errorf("userinfo email %q is not valid", raw.Email)
	}
	return models.UserInfo{
		ID:    raw.ID,
		Name:  raw.Name,
		Email: raw.Email,
	}, nil
}
