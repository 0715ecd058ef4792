// pkg/core/project.go
package core

import "time"

// Project groups plan documents and the panoramas captured for them
type Project struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Folder    string    `json:"folder"` // document-store folder holding plans and panoramas
	CreatedAt time.Time `json:"createdAt"`
}

// Plan is a plan document attached to a project
type Plan struct {
	ID          uint           `json:"id"`
	ProjectID   uint           `json:"projectId"`
	Title       string         `json:"title"`
	Subfolder   string         `json:"subfolder,omitempty"`
	FileName    string         `json:"fileName"`
	Path        string         `json:"path"` // document-store path of the plan bytes
	ContentType string         `json:"contentType"`
	Size        int64          `json:"size"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}
