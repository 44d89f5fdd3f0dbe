package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Test is a timed assessment composed from one or more question-sets'
// flattened questions. Tests are immutable after creation.
type Test struct {
	ID          string `json:"id" gorm:"primaryKey;size:100"`
	Name        string `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Institution string `json:"institution" gorm:"index;size:100"`
	CreatedBy   string `json:"created_by" gorm:"not null;index;size:255"`

	// Composition
	QuestionSetIDs datatypes.JSON `json:"question_set_ids" gorm:"type:jsonb"` // []uint
	QuestionIDs    datatypes.JSON `json:"question_ids" gorm:"type:jsonb"`     // []string, flattened and deduplicated

	// Timing
	Duration int `json:"duration" gorm:"not null;default:30" validate:"omitempty,min=1,max=600"` // minutes

	// Visibility
	IsPublic       bool           `json:"is_public" gorm:"default:true"`
	AssignedGroups datatypes.JSON `json:"assigned_groups" gorm:"type:jsonb"` // []string

	// Start window for new attempts; either bound may be absent
	StartAt     *time.Time `json:"start_at"`
	LastStartAt *time.Time `json:"last_start_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Creator  User          `json:"-" gorm:"foreignKey:CreatedBy"`
	Attempts []TestAttempt `json:"-" gorm:"foreignKey:TestID"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}

func (t *Test) QuestionIDList() []string {
	return decodeStringList(t.QuestionIDs)
}

func (t *Test) AssignedGroupList() []string {
	return decodeStringList(t.AssignedGroups)
}

// TestSummary is the embedded shape returned with attempt listings.
type TestSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

func (t *Test) Summary() TestSummary {
	return TestSummary{ID: t.ID, Name: t.Name, Duration: t.Duration}
}
