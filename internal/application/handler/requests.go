package handler

import (
	"strings"

	"apihub/internal/application/models"
	"apihub/internal/application/service"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	strs "apihub/pkg/platform/strings"
	"apihub/pkg/platform/validation"
)

// HTTP Request DTOs. They are normalized and validated by
// httputil.DecodeAndPrepare and converted to service inputs by the handlers.

type RegisterApplicationRequest struct {
	Name    string   `json:"name" validate:"required,notblank,max=100"`
	TeamID  string   `json:"teamId" validate:"omitempty,len=24,hexadecimal"`
	Members []string `json:"teamMembers" validate:"max=100,dive,email,max=255"`
}

func (r *RegisterApplicationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.TeamID = strings.TrimSpace(r.TeamID)
	r.Members = strs.DedupeAndTrimLower(r.Members)
}

func (r *RegisterApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.TeamID != "" && len(r.Members) > 0 {
		return dErrors.New(dErrors.CodeValidation, "teamId and teamMembers are mutually exclusive")
	}
	return nil
}

func (r *RegisterApplicationRequest) ToCommand() service.RegisterCommand {
	return service.RegisterCommand{
		Name:    r.Name,
		TeamID:  id.TeamID(r.TeamID),
		Members: r.Members,
	}
}

type RenameApplicationRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (r *RenameApplicationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RenameApplicationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type EndpointRequest struct {
	HTTPMethod string   `json:"httpMethod" validate:"required,httpmethod"`
	Path       string   `json:"path" validate:"required,startswith=/,max=2048"`
	Scopes     []string `json:"scopes" validate:"max=20,dive,required,max=100"`
}

// AddApiRequest links an API with its full endpoint list. Linking an API
// already present replaces its definition.
type AddApiRequest struct {
	ID        string            `json:"id" validate:"required,notblank,max=100"`
	Title     string            `json:"title" validate:"max=200"`
	Endpoints []EndpointRequest `json:"endpoints" validate:"required,min=1,max=500,dive"`
}

func (r *AddApiRequest) Normalize() {
	if r == nil {
		return
	}
	r.ID = strings.TrimSpace(r.ID)
	r.Title = strings.TrimSpace(r.Title)
	for i := range r.Endpoints {
		e := &r.Endpoints[i]
		e.HTTPMethod = strings.ToUpper(strings.TrimSpace(e.HTTPMethod))
		e.Path = strings.TrimSpace(e.Path)
		for j := range e.Scopes {
			e.Scopes[j] = strings.TrimSpace(e.Scopes[j])
		}
	}
}

func (r *AddApiRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	// Size checks first so oversized payloads fail before field validation.
	if err := validation.CheckSliceCount("endpoints", len(r.Endpoints), validation.MaxEndpointsPerApi); err != nil {
		return err
	}
	for _, e := range r.Endpoints {
		if err := validation.CheckSliceCount("scopes", len(e.Scopes), validation.MaxScopesPerEndpoint); err != nil {
			return err
		}
		if err := validation.CheckEachStringLength("scope", e.Scopes, validation.MaxScopeLength); err != nil {
			return err
		}
	}
	if err := validation.Validate(r); err != nil {
		return err
	}
	for i, e := range r.Endpoints {
		for _, other := range r.Endpoints[:i] {
			if e.HTTPMethod == other.HTTPMethod && e.Path == other.Path {
				return dErrors.Newf(dErrors.CodeValidation, "endpoint %s %s is listed twice", e.HTTPMethod, e.Path)
			}
		}
	}
	return nil
}

func (r *AddApiRequest) ToApi() models.Api {
	endpoints := make([]models.Endpoint, len(r.Endpoints))
	for i, e := range r.Endpoints {
		endpoints[i] = models.Endpoint{HTTPMethod: e.HTTPMethod, Path: e.Path, Scopes: e.Scopes}
	}
	return models.NewApi(id.ApiID(r.ID), r.Title, endpoints)
}

type ChangeTeamRequest struct {
	TeamID string `json:"teamId" validate:"required,len=24,hexadecimal"`
}

func (r *ChangeTeamRequest) Normalize() {
	if r == nil {
		return
	}
	r.TeamID = strings.ToLower(strings.TrimSpace(r.TeamID))
}

func (r *ChangeTeamRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

type MemberRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (r *MemberRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *MemberRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
