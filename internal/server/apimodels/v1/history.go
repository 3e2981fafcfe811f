package v1

import "github.com/USA-RedDragon/crashgate/internal/db/models"

type GETUploadsResponse struct {
	Total   int                   `json:"total"`
	Uploads []models.UploadRecord `json:"uploads"`
}

type GETReportsResponse struct {
	Reports []models.Report `json:"reports"`
}
