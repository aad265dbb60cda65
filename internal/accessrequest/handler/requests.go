package handler

import (
	"strings"

	"apihub/internal/accessrequest/service"
	appmodels "apihub/internal/application/models"
	id "apihub/pkg/domain"
	dErrors "apihub/pkg/domain-errors"
	"apihub/pkg/platform/validation"
)

type RequestedEndpoint struct {
	HTTPMethod string `json:"httpMethod" validate:"required,httpmethod"`
	Path       string `json:"path" validate:"required,startswith=/,max=2048"`
}

// CreateAccessRequestRequest names endpoints only. Their scopes are taken
// from the API linked to the application.
type CreateAccessRequestRequest struct {
	ApplicationID         string              `json:"applicationId" validate:"required,len=24,hexadecimal"`
	ApiID                 string              `json:"apiId" validate:"required,notblank,max=100"`
	Endpoints             []RequestedEndpoint `json:"endpoints" validate:"required,min=1,max=500,dive"`
	SupportingInformation string              `json:"supportingInformation" validate:"max=4000"`
}

func (r *CreateAccessRequestRequest) Normalize() {
	if r == nil {
		return
	}
	r.ApplicationID = strings.ToLower(strings.TrimSpace(r.ApplicationID))
	r.ApiID = strings.TrimSpace(r.ApiID)
	r.SupportingInformation = strings.TrimSpace(r.SupportingInformation)
	for i := range r.Endpoints {
		r.Endpoints[i].HTTPMethod = strings.ToUpper(strings.TrimSpace(r.Endpoints[i].HTTPMethod))
		r.Endpoints[i].Path = strings.TrimSpace(r.Endpoints[i].Path)
	}
}

func (r *CreateAccessRequestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckSliceCount("endpoints", len(r.Endpoints), validation.MaxEndpointsPerApi); err != nil {
		return err
	}
	return validation.Validate(r)
}

func (r *CreateAccessRequestRequest) ToCommand() service.CreateCommand {
	endpoints := make([]appmodels.Endpoint, len(r.Endpoints))
	for i, e := range r.Endpoints {
		endpoints[i] = appmodels.Endpoint{HTTPMethod: e.HTTPMethod, Path: e.Path}
	}
	return service.CreateCommand{
		ApplicationID:         id.ApplicationID(r.ApplicationID),
		ApiID:                 id.ApiID(r.ApiID),
		Endpoints:             endpoints,
		SupportingInformation: r.SupportingInformation,
	}
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=4000"`
}

func (r *RejectRequest) Normalize() {
	if r == nil {
		return
	}
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
