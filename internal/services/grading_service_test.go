package services

import (
	"context"
	"testing"

	"github.com/princegupta0106/coaching-api/internal/models"
)

func TestGradingService_GradeQuestion(t *testing.T) {
	svc := NewGradingService(testLogger())

	tests := []struct {
		name          string
		questionType  models.QuestionType
		answerJSON    string
		userAnswer    *string
		wantGradeable bool
		wantCorrect   bool
	}{
		{
			name:          "mcq correct",
			questionType:  models.MCQSingle,
			answerJSON:    `{"type":"mcq_single","value":"B"}`,
			userAnswer:    strPtr("B"),
			wantGradeable: true,
			wantCorrect:   true,
		},
		{
			name:          "mcq wrong",
			questionType:  models.MCQSingle,
			answerJSON:    `{"type":"mcq_single","value":"B"}`,
			userAnswer:    strPtr("C"),
			wantGradeable: true,
			wantCorrect:   false,
		},
		{
			name:          "mcq whitespace trimmed",
			questionType:  models.MCQSingle,
			answerJSON:    `{"type":"mcq_single","value":"B"}`,
			userAnswer:    strPtr("  B "),
			wantGradeable: true,
			wantCorrect:   true,
		},
		{
			name:          "mcq unanswered",
			questionType:  models.MCQSingle,
			answerJSON:    `{"type":"mcq_single","value":"B"}`,
			userAnswer:    nil,
			wantGradeable: true,
			wantCorrect:   false,
		},
		{
			name:          "missing answer type grades as mcq",
			questionType:  models.MCQSingle,
			answerJSON:    `{"value":"A"}`,
			userAnswer:    strPtr("A"),
			wantGradeable: true,
			wantCorrect:   true,
		},
		{
			name:          "numerical within tolerance",
			questionType:  models.Numerical,
			answerJSON:    `{"type":"numerical","value":"3.14"}`,
			userAnswer:    strPtr("3.141"),
			wantGradeable: true,
			wantCorrect:   true,
		},
		{
			name:          "numerical outside tolerance",
			questionType:  models.Numerical,
			answerJSON:    `{"type":"numerical","value":"3.14"}`,
			userAnswer:    strPtr("3.16"),
			wantGradeable: true,
			wantCorrect:   false,
		},
		{
			name:          "numerical exact tolerance boundary is wrong",
			questionType:  models.Numerical,
			answerJSON:    `{"type":"numerical","value":"5"}`,
			userAnswer:    strPtr("5.01"),
			wantGradeable: true,
			wantCorrect:   false,
		},
		{
			name:          "numerical unparseable user value",
			questionType:  models.Numerical,
			answerJSON:    `{"type":"numerical","value":"42"}`,
			userAnswer:    strPtr("forty-two"),
			wantGradeable: true,
			wantCorrect:   false,
		},
		{
			name:          "numerical unparseable key value",
			questionType:  models.Numerical,
			answerJSON:    `{"type":"numerical","value":"n/a"}`,
			userAnswer:    strPtr("42"),
			wantGradeable: true,
			wantCorrect:   false,
		},
		{
			name:          "mcq multiple has no grading rule",
			questionType:  models.MCQMultiple,
			answerJSON:    `{"type":"mcq_multiple","value":"AB"}`,
			userAnswer:    strPtr("AB"),
			wantGradeable: false,
		},
		{
			name:          "missing answer key",
			questionType:  models.MCQSingle,
			answerJSON:    "",
			userAnswer:    strPtr("A"),
			wantGradeable: false,
		},
		{
			name:          "null answer value",
			questionType:  models.MCQSingle,
			answerJSON:    `{"type":"mcq_single","value":null}`,
			userAnswer:    strPtr("A"),
			wantGradeable: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			question := &models.Question{ID: "q1", Type: tt.questionType}
			if tt.answerJSON != "" {
				question.Answer = []byte(tt.answerJSON)
			}

			got := svc.GradeQuestion(question, tt.userAnswer)
			if got.Gradeable != tt.wantGradeable {
				t.Errorf("Gradeable = %v, want %v", got.Gradeable, tt.wantGradeable)
			}
			if got.IsCorrect != tt.wantCorrect {
				t.Errorf("IsCorrect = %v, want %v", got.IsCorrect, tt.wantCorrect)
			}
		})
	}
}

func TestGradingService_GradeAttempt(t *testing.T) {
	svc := NewGradingService(testLogger())
	ctx := context.Background()

	questions := []*models.Question{
		{ID: "q1", Type: models.MCQSingle, Answer: []byte(`{"type":"mcq_single","value":"B"}`)},
		{ID: "q2", Type: models.Numerical, Answer: []byte(`{"type":"numerical","value":"3.14"}`)},
		{ID: "q3", Type: models.MCQSingle, Answer: []byte(`{"type":"mcq_single","value":"A"}`)},
		{ID: "q4", Type: models.OtherType, Answer: []byte(`{"type":"other","value":"essay"}`)},
		{ID: "q5", Type: models.MCQSingle}, // no answer key
	}
	answers := []models.AttemptAnswer{
		{QuestionID: "q1", Answer: "B"},
		{QuestionID: "q2", Answer: "3.141"},
		{QuestionID: "q3", Answer: "C"},
		{QuestionID: "q4", Answer: "anything"},
	}

	outcome, err := svc.GradeAttempt(ctx, questions, answers)
	if err != nil {
		t.Fatalf("GradeAttempt failed: %v", err)
	}

	// q4 and q5 are non-gradeable and excluded from the total
	if outcome.Total != 3 {
		t.Errorf("Total = %d, want 3", outcome.Total)
	}
	if outcome.Score != 2 {
		t.Errorf("Score = %d, want 2", outcome.Score)
	}
	if len(outcome.Results) != 3 {
		t.Fatalf("Results count = %d, want 3", len(outcome.Results))
	}

	// Results follow question order
	wantOrder := []string{"q1", "q2", "q3"}
	for i, r := range outcome.Results {
		if r.QuestionID != wantOrder[i] {
			t.Errorf("Results[%d].QuestionID = %s, want %s", i, r.QuestionID, wantOrder[i])
		}
	}
	if !outcome.Results[0].IsCorrect || !outcome.Results[1].IsCorrect {
		t.Error("q1 and q2 should be correct")
	}
	if outcome.Results[2].IsCorrect {
		t.Error("q3 should be incorrect")
	}
}

func TestGradingService_GradeAttempt_NoAnswers(t *testing.T) {
	svc := NewGradingService(testLogger())

	questions := []*models.Question{
		{ID: "q1", Type: models.MCQSingle, Answer: []byte(`{"type":"mcq_single","value":"A"}`)},
	}

	outcome, err := svc.GradeAttempt(context.Background(), questions, nil)
	if err != nil {
		t.Fatalf("GradeAttempt failed: %v", err)
	}
	if outcome.Total != 1 || outcome.Score != 0 {
		t.Errorf("got score %d/%d, want 0/1", outcome.Score, outcome.Total)
	}
	if outcome.Results[0].UserAnswer != nil {
		t.Error("UserAnswer should be nil for unanswered question")
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name  string
		score int
		total int
		want  int
	}{
		{"full marks", 2, 2, 100},
		{"zero score", 0, 5, 0},
		{"rounds half up", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"nothing gradeable", 0, 0, 0},
		{"negative total", 1, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.score, tt.total); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
			}
		})
	}
}
