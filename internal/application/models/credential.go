package models

import (
	"time"

	id "apihub/pkg/domain"
)

// Credential is an application's client identity in one environment.
// ClientSecret is only set on the value returned right after creation and is
// never persisted.
type Credential struct {
	ClientID       string           `json:"clientId"`
	Created        time.Time        `json:"created"`
	ClientSecret   string           `json:"clientSecret,omitempty"`
	SecretFragment string           `json:"secretFragment,omitempty"`
	EnvironmentID  id.EnvironmentID `json:"environmentId"`
}

// NewCredential keeps the last four characters of secret as a display fragment.
func NewCredential(envID id.EnvironmentID, clientID, secret string, now time.Time) Credential {
	return Credential{
		ClientID:       clientID,
		Created:        now,
		ClientSecret:   secret,
		SecretFragment: fragment(secret),
		EnvironmentID:  envID,
	}
}

// WithoutSecret drops the transient secret before the credential is stored.
func (c Credential) WithoutSecret() Credential {
	c.ClientSecret = ""
	return c
}

func fragment(secret string) string {
	const visible = 4
	if len(secret) <= visible {
		return ""
	}
	return secret[len(secret)-visible:]
}
