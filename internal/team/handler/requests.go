package handler

import (
	"strings"

	"apihub/internal/team/models"
	"apihub/internal/team/service"
	dErrors "apihub/pkg/domain-errors"
	strs "apihub/pkg/platform/strings"
	"apihub/pkg/platform/validation"
)

type CreateTeamRequest struct {
	Name     string   `json:"name" validate:"required,notblank,max=100"`
	TeamType string   `json:"teamType" validate:"omitempty,oneof=consumer producer"`
	Members  []string `json:"teamMembers" validate:"max=100,dive,email,max=255"`
}

func (r *CreateTeamRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.TeamType = strings.ToLower(strings.TrimSpace(r.TeamType))
	r.Members = strs.DedupeAndTrimLower(r.Members)
}

func (r *CreateTeamRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validation.CheckSliceCount("team members", len(r.Members), validation.MaxMembers); err != nil {
		return err
	}
	return validation.Validate(r)
}

func (r *CreateTeamRequest) ToCommand() service.CreateCommand {
	return service.CreateCommand{
		Name:     r.Name,
		TeamType: models.TeamType(r.TeamType),
		Members:  r.Members,
	}
}

type RenameTeamRequest struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (r *RenameTeamRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RenameTeamRequest) Validate() error {
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

type EgressRequest struct {
	Egress string `json:"egress" validate:"required,notblank,max=100"`
}

func (r *EgressRequest) Normalize() {
	if r == nil {
		return
	}
	r.Egress = strings.TrimSpace(r.Egress)
}

func (r *EgressRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
