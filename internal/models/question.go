package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MCQSingle   QuestionType = "mcq_single"
	MCQMultiple QuestionType = "mcq_multiple"
	Numerical   QuestionType = "numerical"
	OtherType   QuestionType = "other"
)

// Question is catalog content produced by the ingestion pipeline. The ID is
// the pipeline's natural key (subject-chapter-index), not an autoincrement.
type Question struct {
	ID      string       `json:"id" gorm:"primaryKey;size:255"`
	Type    QuestionType `json:"question_type" gorm:"column:question_type;not null;index"`
	Exam    string       `json:"exam" gorm:"index;size:100"`
	Subject string       `json:"subject" gorm:"index;size:100"`
	Chapter string       `json:"chapter" gorm:"index;size:200"`

	// Content stored as JSONB for flexibility
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`
	Answer  datatypes.JSON `json:"answer" gorm:"type:jsonb"` // {"type": ..., "value": ...}

	// Institutions allowed to see this question
	Institutions datatypes.JSON `json:"institutions" gorm:"type:jsonb"` // []string

	CreatedBy string    `json:"created_by" gorm:"index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== QUESTION CONTENT SCHEMAS =====

// QuestionContent is the JSONB payload shared by all question variants.
type QuestionContent struct {
	QuestionHTML    string       `json:"question_html"`
	Options         []Option     `json:"options,omitempty"`
	ExplanationHTML string       `json:"explanation_html,omitempty"`
	Metadata        *QuestionRef `json:"metadata,omitempty"`
}

type Option struct {
	Label string `json:"label"`
	HTML  string `json:"html"`
}

type QuestionRef struct {
	Exam string `json:"exam"`
	Year string `json:"year,omitempty"`
}

// QuestionAnswer is the grading contract for a question. Value is the label
// of the correct option for mcq types and the decimal string for numericals.
type QuestionAnswer struct {
	Type  QuestionType `json:"type"`
	Value *string      `json:"value"`
}

// DecodeAnswer unmarshals the answer column. A missing or malformed column
// decodes as an absent answer so grading can skip the question.
func (q *Question) DecodeAnswer() QuestionAnswer {
	ans := QuestionAnswer{Type: q.Type}
	if len(q.Answer) == 0 {
		return ans
	}
	if err := json.Unmarshal(q.Answer, &ans); err != nil {
		return QuestionAnswer{Type: q.Type}
	}
	if ans.Type == "" {
		ans.Type = q.Type
	}
	return ans
}

// decodeStringList is shared by the JSONB []string columns on several models.
func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
