package models

import (
	"time"

	"gorm.io/datatypes"
)

// Exam is the top of the content hierarchy (e.g. "jee-main").
type Exam struct {
	ID          string    `json:"id" gorm:"primaryKey;size:100"`
	Name        string    `json:"name" gorm:"not null;size:200"`
	Institution string    `json:"institution" gorm:"index;size:100"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Subjects []Subject `json:"subjects,omitempty" gorm:"foreignKey:ExamID"`
}

type Subject struct {
	ID        string    `json:"id" gorm:"primaryKey;size:100"`
	ExamID    string    `json:"exam_id" gorm:"not null;index;size:100"`
	Name      string    `json:"name" gorm:"not null;size:200"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Exam Exam `json:"-" gorm:"foreignKey:ExamID"`
}

// QuestionSet is a staff-owned, ordered collection of question ids
// (a chapter in the catalog UI). Tests are composed from these.
type QuestionSet struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	SubjectID   string `json:"subject_id" gorm:"index;size:100"`
	Institution string `json:"institution" gorm:"index;size:100"`
	CreatedBy   string `json:"created_by" gorm:"not null;index;size:255"`

	// Ordered member question ids
	QuestionIDs datatypes.JSON `json:"question_ids" gorm:"type:jsonb"` // []string

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Creator User `json:"-" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
}

func (Exam) TableName() string        { return "exams" }
func (Subject) TableName() string     { return "subjects" }
func (QuestionSet) TableName() string { return "question_sets" }

func (qs *QuestionSet) QuestionIDList() []string {
	return decodeStringList(qs.QuestionIDs)
}
