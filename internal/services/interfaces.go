package services

import (
	"context"
	"io"
	"time"

	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use request types from the validator package
type CreateTestRequest = validator.TestCreateRequest
type PatchAttemptRequest = validator.AttemptPatchRequest
type SubmitAttemptRequest = validator.SubmitAttemptRequest
type CreateQuestionSetRequest = validator.QuestionSetCreateRequest
type UpdateQuestionSetRequest = validator.QuestionSetUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpsertExamRequest = validator.ExamUpsertRequest

type TestResponse struct {
	*models.Test
	CanEdit bool `json:"can_edit"`
}

type TestListResponse struct {
	Tests []*TestResponse `json:"tests"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// TestForAttempt is the test payload handed to a student taking it: full
// questions, answers stripped.
type TestForAttempt struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Duration  int                `json:"duration"` // minutes
	Questions []*models.Question `json:"questions"`
}

// AttemptResponse pairs an attempt with its test summary and the server
// clock so clients compute remaining time without trusting local clocks.
type AttemptResponse struct {
	*models.TestAttempt
	Test       *models.TestSummary `json:"test,omitempty"`
	ServerTime time.Time           `json:"server_time"`
	// Seconds until end_at; nil when the attempt has no deadline or is over
	TimeRemaining *int `json:"time_remaining,omitempty"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	Size     int                `json:"size"`
}

// AttemptReviewResponse pairs a full attempt with its parent test for the
// review screen.
type AttemptReviewResponse struct {
	Attempt *models.TestAttempt `json:"attempt"`
	Test    *models.Test        `json:"test"`
}

// SubmitResult is the grading outcome returned on submit and review.
type SubmitResult struct {
	AttemptID       uint                    `json:"attempt_id"`
	TestID          string                  `json:"test_id"`
	Score           int                     `json:"score"`
	Total           int                     `json:"total"`
	Percentage      int                     `json:"percentage"`
	DurationSeconds int                     `json:"duration_seconds"`
	SubmittedAt     *time.Time              `json:"submitted_at"`
	Results         []models.QuestionResult `json:"results"`
}

type QuestionSetResponse struct {
	*models.QuestionSet
	CanEdit bool `json:"can_edit"`
}

type QuestionSetListResponse struct {
	Sets  []*QuestionSetResponse `json:"question_sets"`
	Total int64                  `json:"total"`
	Page  int                    `json:"page"`
	Size  int                    `json:"size"`
}

type QuestionListResponse struct {
	Questions []*models.Question `json:"questions"`
	Total     int64              `json:"total"`
	Page      int                `json:"page"`
	Size      int                `json:"size"`
}

// ImportResult reports the outcome of an XLSX question import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ===== GRADING DTOs =====

// GradedQuestion is the per-question outcome produced by the grader.
type GradedQuestion struct {
	QuestionID    string
	CorrectAnswer *string
	UserAnswer    *string
	IsCorrect     bool
	Gradeable     bool
}

// GradeOutcome aggregates grading over a full attempt.
type GradeOutcome struct {
	Score   int
	Total   int
	Results []models.QuestionResult
}

// ===== SERVICE INTERFACES =====

type TestService interface {
	Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error)
	GetByID(ctx context.Context, id string, userID string) (*TestResponse, error)
	// GetForAttempt returns the test with full questions and answers stripped.
	GetForAttempt(ctx context.Context, id string, studentID string) (*TestForAttempt, error)
	List(ctx context.Context, filters repositories.TestFilters, userID string) (*TestListResponse, error)
	GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) (*TestListResponse, error)
	// GetVisibleToStudent lists public tests plus assigned-group tests.
	GetVisibleToStudent(ctx context.Context, studentID string, filters repositories.TestFilters) (*TestListResponse, error)
}

type AttemptService interface {
	// Start returns the existing attempt for (test, student) or creates one,
	// enforcing the start window only for creation.
	Start(ctx context.Context, testID string, studentID string) (*AttemptResponse, error)
	Get(ctx context.Context, testID string, studentID string) (*AttemptResponse, error)
	// Patch autosaves progress on an in-progress attempt.
	Patch(ctx context.Context, testID string, studentID string, req *PatchAttemptRequest) (*AttemptResponse, error)
	// Submit grades the attempt and freezes its score.
	Submit(ctx context.Context, testID string, studentID string, req *SubmitAttemptRequest) (*SubmitResult, error)
	// Review returns the stored grading outcome of a submitted attempt.
	Review(ctx context.Context, testID string, studentID string) (*SubmitResult, error)
	// ReviewByID loads one attempt with its parent test; visible to the
	// owning student and to the staff member who created the test.
	ReviewByID(ctx context.Context, attemptID uint, userID string) (*AttemptReviewResponse, error)
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error)
	// GetByTest lists all attempts on a test for its owner.
	GetByTest(ctx context.Context, testID string, userID string, filters repositories.AttemptFilters) (*AttemptListResponse, error)
}

type GradingService interface {
	// GradeQuestion grades a single answer against a question.
	GradeQuestion(question *models.Question, userAnswer *string) GradedQuestion
	// GradeAttempt grades the submitted answers over the test's questions.
	GradeAttempt(ctx context.Context, questions []*models.Question, answers []models.AttemptAnswer) (*GradeOutcome, error)
}

type CatalogService interface {
	// Exams and subjects
	ListExams(ctx context.Context, userID string) ([]*models.Exam, error)
	// UpsertExam creates or refreshes an exam with its subjects (admin only).
	UpsertExam(ctx context.Context, req *UpsertExamRequest, userID string) (*models.Exam, error)
	GetExam(ctx context.Context, examID string, userID string) (*models.Exam, error)
	ListSubjects(ctx context.Context, examID string, userID string) ([]*models.Subject, error)

	// Question sets
	CreateQuestionSet(ctx context.Context, req *CreateQuestionSetRequest, creatorID string) (*QuestionSetResponse, error)
	GetQuestionSet(ctx context.Context, id uint, userID string) (*QuestionSetResponse, error)
	UpdateQuestionSet(ctx context.Context, id uint, req *UpdateQuestionSetRequest, userID string) (*QuestionSetResponse, error)
	DeleteQuestionSet(ctx context.Context, id uint, userID string) error
	ListQuestionSets(ctx context.Context, filters repositories.QuestionSetFilters, userID string) (*QuestionSetListResponse, error)

	// Questions
	CreateQuestion(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*models.Question, error)
	GetQuestion(ctx context.Context, id string, userID string) (*models.Question, error)
	ListQuestions(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)
}

type ImportService interface {
	// ImportQuestionsXLSX ingests a question workbook and upserts rows by id.
	ImportQuestionsXLSX(ctx context.Context, r io.Reader, creatorID string) (*ImportResult, error)
}

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context, filters repositories.UserFilters, requesterID string) ([]*models.User, int64, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Test() TestService
	Attempt() AttemptService
	Grading() GradingService
	Catalog() CatalogService
	Import() ImportService
	User() UserService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
