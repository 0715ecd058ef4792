package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Project{},
	&Plan{},
	&Marker{},
	&MarkerImage{},
}

// Project is the model for a project row
type Project struct {
	ID        uint           `json:"id" gorm:"primarykey;autoIncrement"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Name      string         `json:"name" gorm:"size:255;not null"`
	Folder    string         `json:"folder" gorm:"size:512;uniqueIndex"`
}

func (*Project) TableName() string {
	return "projects"
}

// Plan is the model for a plan document attached to a project
type Plan struct {
	ID          uint              `json:"id" gorm:"primarykey;autoIncrement"`
	CreatedAt   time.Time         `json:"createdAt"`
	ProjectID   uint              `json:"projectId" gorm:"index:idx_plan_project_id"`
	Project     Project           `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:ProjectID;"`
	Title       string            `json:"title" gorm:"size:255"`
	Subfolder   string            `json:"subfolder" gorm:"size:255"`
	FileName    string            `json:"fileName" gorm:"size:255"`
	Path        string            `json:"path" gorm:"size:1024"`
	ContentType string            `json:"contentType" gorm:"size:127"`
	Size        int64             `json:"size"`
	Metadata    datatypes.JSONMap `json:"metadata"`
}

func (*Plan) TableName() string {
	return "plans"
}

// Marker is the model for a marker placed on a plan
type Marker struct {
	ID       uint    `json:"id" gorm:"primarykey;autoIncrement"`
	PlanID   uint    `json:"planId" gorm:"index:idx_marker_plan_id"`
	Plan     Plan    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:PlanID;"`
	XPercent float64 `json:"xPercent"`
	YPercent float64 `json:"yPercent"`
	Title    string  `json:"title" gorm:"size:255"`
}

func (*Marker) TableName() string {
	return "markers"
}

// MarkerImage is the model for a panorama attached to a marker
type MarkerImage struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement"`
	CreatedAt time.Time `json:"createdAt"`
	MarkerID  uint      `json:"markerId" gorm:"index:idx_markerimage_marker_id"`
	Marker    Marker    `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:MarkerID;"`
	FileName  string    `json:"fileName" gorm:"size:255"`
	URL       string    `json:"url" gorm:"size:1024;index:idx_markerimage_url"`
}

func (*MarkerImage) TableName() string {
	return "marker_images"
}
