package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Rank orders priorities so that high > medium > low.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

func (p TaskPriority) Valid() bool {
	return p.Rank() > 0
}

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// Task is either personal (visible to its creator only) or assigned to a team
type Task struct {
	gorm.Model
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description"`
	DueDate     *time.Time   `gorm:"index" json:"due_date"`
	Priority    TaskPriority `gorm:"not null;default:'medium'" json:"priority"`
	Status      TaskStatus   `gorm:"not null;default:'pending'" json:"status"`
	IsTeamTask  bool         `gorm:"not null;default:false" json:"is_team_task"`
	CreatedByID uint         `gorm:"not null;index" json:"created_by_id"`
	AssignedTo  *uint        `gorm:"index" json:"assigned_to"`

	// Relations
	Files []TaskFile `gorm:"foreignKey:TaskID" json:"files"`
}

// FileMeta describes a stored blob
type FileMeta struct {
	Name     string `gorm:"not null" json:"name"`
	Handle   string `gorm:"not null;index" json:"-"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// TaskFile is an attachment owned by a task
type TaskFile struct {
	ID     uint `gorm:"primarykey" json:"id"`
	TaskID uint `gorm:"not null;index" json:"task_id"`
	FileMeta
	CreatedAt time.Time `json:"created_at"`
}
