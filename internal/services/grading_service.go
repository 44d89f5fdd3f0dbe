package services

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/princegupta0106/coaching-api/internal/models"
)

// numericalTolerance is the absolute tolerance for numerical answers.
const numericalTolerance = 0.01

type gradingService struct {
	logger *slog.Logger
}

func NewGradingService(logger *slog.Logger) GradingService {
	return &gradingService{logger: logger}
}

// GradeQuestion grades one answer. Questions without a usable answer key and
// question types without an auto-grading rule come back non-gradeable and
// are excluded from the attempt total.
func (s *gradingService) GradeQuestion(question *models.Question, userAnswer *string) GradedQuestion {
	result := GradedQuestion{
		QuestionID: question.ID,
		UserAnswer: userAnswer,
	}

	key := question.DecodeAnswer()
	if key.Value == nil {
		return result
	}
	result.CorrectAnswer = key.Value

	switch key.Type {
	case models.MCQSingle, "":
		// Absent type grades as single-choice
		result.Gradeable = true
		if userAnswer != nil {
			result.IsCorrect = strings.TrimSpace(*userAnswer) == strings.TrimSpace(*key.Value)
		}
	case models.Numerical:
		result.Gradeable = true
		if userAnswer != nil {
			result.IsCorrect = numericalMatch(*userAnswer, *key.Value)
		}
	default:
		// mcq_multiple and anything unrecognized have no auto-grading rule
	}

	return result
}

func (s *gradingService) GradeAttempt(ctx context.Context, questions []*models.Question, answers []models.AttemptAnswer) (*GradeOutcome, error) {
	answerByQuestion := make(map[string]string, len(answers))
	for _, a := range answers {
		answerByQuestion[a.QuestionID] = a.Answer
	}

	outcome := &GradeOutcome{}
	for _, question := range questions {
		var userAnswer *string
		if v, ok := answerByQuestion[question.ID]; ok {
			userAnswer = &v
		}

		graded := s.GradeQuestion(question, userAnswer)
		if !graded.Gradeable {
			continue
		}

		outcome.Total++
		if graded.IsCorrect {
			outcome.Score++
		}
		outcome.Results = append(outcome.Results, models.QuestionResult{
			QuestionID:    graded.QuestionID,
			CorrectAnswer: graded.CorrectAnswer,
			UserAnswer:    graded.UserAnswer,
			IsCorrect:     graded.IsCorrect,
		})
	}

	return outcome, nil
}

// numericalMatch compares decimal strings with an absolute tolerance. Both
// sides must parse; a malformed value on either side grades incorrect.
func numericalMatch(userValue, correctValue string) bool {
	u, err := strconv.ParseFloat(strings.TrimSpace(userValue), 64)
	if err != nil {
		return false
	}
	c, err := strconv.ParseFloat(strings.TrimSpace(correctValue), 64)
	if err != nil {
		return false
	}
	return math.Abs(u-c) < numericalTolerance
}

// Percentage is the integer percent of score over total, rounded half up;
// zero when nothing was gradeable.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}
