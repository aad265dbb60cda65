package models

import (
	"slices"
	"strings"

	id "apihub/pkg/domain"
)

// UnknownApiTitle is used when a stored API link has no title.
const UnknownApiTitle = "unknown"

// Endpoint is one operation of an API and the scopes it requires.
type Endpoint struct {
	HTTPMethod string   `json:"httpMethod"`
	Path       string   `json:"path"`
	Scopes     []string `json:"scopes"`
}

// Matches reports whether other addresses the same operation. Methods are
// compared case-insensitively, paths exactly.
func (e Endpoint) Matches(other Endpoint) bool {
	return strings.EqualFold(e.HTTPMethod, other.HTTPMethod) && e.Path == other.Path
}

func (e Endpoint) clone() Endpoint {
	e.Scopes = slices.Clone(e.Scopes)
	return e
}

// Api is an API linked to an application.
type Api struct {
	ID        id.ApiID   `json:"id"`
	Title     string     `json:"title"`
	Endpoints []Endpoint `json:"endpoints"`
}

// NewApi builds an Api, defaulting a missing title.
func NewApi(apiID id.ApiID, title string, endpoints []Endpoint) Api {
	if strings.TrimSpace(title) == "" {
		title = UnknownApiTitle
	}
	return Api{ID: apiID, Title: title, Endpoints: cloneEndpoints(endpoints)}
}

// Scopes returns the distinct scopes required by the API's endpoints.
func (a Api) Scopes() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range a.Endpoints {
		for _, s := range e.Scopes {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}

func (a Api) clone() Api {
	a.Endpoints = cloneEndpoints(a.Endpoints)
	return a
}

func cloneEndpoints(in []Endpoint) []Endpoint {
	if in == nil {
		return nil
	}
	out := make([]Endpoint, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}
