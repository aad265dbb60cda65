package handler

import "apihub/internal/accessrequest/models"

type AccessRequestListResponse struct {
	AccessRequests []models.AccessRequest `json:"accessRequests"`
}

func toListResponse(reqs []models.AccessRequest) AccessRequestListResponse {
	if reqs == nil {
		reqs = []models.AccessRequest{}
	}
	return AccessRequestListResponse{AccessRequests: reqs}
}
