package validator

import (
	"encoding/json"

	"github.com/princegupta0106/coaching-api/internal/models"
)

// TestCreateRequest carries everything needed to define a test. StartAt and
// LastStartAt arrive as free-form strings; unparseable values normalize to
// absent rather than rejecting the request.
type TestCreateRequest struct {
	Name           string   `json:"name" validate:"required,min=1,max=200"`
	QuestionSetIDs []uint   `json:"question_set_ids" validate:"required,min=1"`
	Duration       int      `json:"duration" validate:"omitempty,min=1,max=600"`
	IsPublic       *bool    `json:"is_public"`
	AssignedGroups []string `json:"assigned_groups" validate:"omitempty,dive,max=100"`
	StartAt        string   `json:"start_at"`
	LastStartAt    string   `json:"last_start_at"`
}

// AttemptPatchRequest is a partial update; raw messages distinguish "absent"
// from "present but wrong shape" so only well-typed fields are applied.
type AttemptPatchRequest struct {
	Answers           json.RawMessage `json:"answers,omitempty"`
	QuestionStatus    json.RawMessage `json:"question_status,omitempty"`
	LastQuestionIndex *float64        `json:"last_question_index,omitempty"`
}

type SubmitAttemptRequest struct {
	Answers []models.AttemptAnswer `json:"answers" validate:"required,dive"`
}

// ExamUpsertRequest creates or refreshes an exam and its subjects; re-running
// it with the same id is safe.
type ExamUpsertRequest struct {
	ID       string               `json:"id" validate:"required,max=100"`
	Name     string               `json:"name" validate:"required,min=1,max=200"`
	Subjects []ExamSubjectRequest `json:"subjects" validate:"omitempty,dive"`
}

type ExamSubjectRequest struct {
	ID   string `json:"id" validate:"required,max=100"`
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type QuestionSetCreateRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	SubjectID   string   `json:"subject_id" validate:"omitempty,max=100"`
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,max=255"`
}

type QuestionSetUpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	QuestionIDs []string `json:"question_ids" validate:"omitempty,min=1,dive,max=255"`
}

type QuestionCreateRequest struct {
	ID      string              `json:"id" validate:"required,max=255"`
	Type    models.QuestionType `json:"question_type" validate:"required,question_type"`
	Exam    string              `json:"exam" validate:"omitempty,max=100"`
	Subject string              `json:"subject" validate:"omitempty,max=100"`
	Chapter string              `json:"chapter" validate:"omitempty,max=200"`
	Content json.RawMessage     `json:"content" validate:"required"`
	Answer  json.RawMessage     `json:"answer"`
}
