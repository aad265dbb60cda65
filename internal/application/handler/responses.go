package handler

import "apihub/internal/application/models"

type ApplicationListResponse struct {
	Applications []models.Application `json:"applications"`
}

func toListResponse(apps []models.Application) ApplicationListResponse {
	if apps == nil {
		apps = []models.Application{}
	}
	return ApplicationListResponse{Applications: apps}
}
