package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// TestAttempt is one student's single timed run through a test. At most one
// row may exist per (test, student); the unique index backs the idempotent
// start semantics and closes the concurrent-start race at the store.
type TestAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	TestID    string        `json:"test_id" gorm:"not null;size:100;uniqueIndex:idx_test_student"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_test_student"`
	Status    AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   *time.Time `json:"started_at"`
	EndAt       *time.Time `json:"end_at"` // started_at + duration; backfilled if absent
	LastSavedAt *time.Time `json:"last_saved_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	// Wall-clock seconds between start and submit
	DurationSeconds int `json:"duration_seconds"`

	// Running progress, replaced wholesale by autosave
	Answers           datatypes.JSON `json:"answers" gorm:"type:jsonb"`         // []AttemptAnswer
	QuestionStatus    datatypes.JSON `json:"question_status" gorm:"type:jsonb"` // map[questionID]status
	LastQuestionIndex int            `json:"last_question_index"`

	// Scoring, frozen on submit
	Score  int            `json:"score"`
	Total  int            `json:"total"`
	Result datatypes.JSON `json:"result" gorm:"type:jsonb"` // []QuestionResult

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Test    Test `json:"-" gorm:"foreignKey:TestID"`
	Student User `json:"-" gorm:"foreignKey:StudentID"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

// AttemptAnswer is one entry of the running answer list.
type AttemptAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// QuestionResult is the per-question grading outcome stored on submit.
type QuestionResult struct {
	QuestionID    string  `json:"question_id"`
	CorrectAnswer *string `json:"correct_answer"`
	UserAnswer    *string `json:"user_answer"`
	IsCorrect     bool    `json:"is_correct"`
}

func (a *TestAttempt) AnswerList() []AttemptAnswer {
	if len(a.Answers) == 0 {
		return nil
	}
	var out []AttemptAnswer
	if err := json.Unmarshal(a.Answers, &out); err != nil {
		return nil
	}
	return out
}

func (a *TestAttempt) ResultList() []QuestionResult {
	if len(a.Result) == 0 {
		return nil
	}
	var out []QuestionResult
	if err := json.Unmarshal(a.Result, &out); err != nil {
		return nil
	}
	return out
}
