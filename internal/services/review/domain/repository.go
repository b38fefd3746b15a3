package domain

import "time"

// Repository is one registered project row
type Repository struct {
	ID             int64        `json:"id"`
	FullName       string       `json:"fullName"`
	InstallationID int64        `json:"installationId"`
	Enabled        bool         `json:"enabled"`
	Settings       RepoSettings `json:"settings"`
	CreatedAt      time.Time    `json:"createdAt"`
}
