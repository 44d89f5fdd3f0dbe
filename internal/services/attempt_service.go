package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/events"
	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	grading   GradingService
	publisher events.EventPublisher

	// Injectable clock for deterministic tests
	now func() time.Time
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, grading GradingService, publisher events.EventPublisher) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		grading:   grading,
		publisher: publisher,
		now:       time.Now,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

// Start is idempotent for in-progress attempts: an existing one is returned
// as-is regardless of the start window, which only gates creation. Starting
// over a submitted attempt conflicts.
func (s *attemptService) Start(ctx context.Context, testID string, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Starting test attempt",
		"test_id", testID,
		"student_id", studentID)

	test, _, err := s.getTestForStudent(ctx, testID, studentID, "start")
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.Attempt().GetByTestAndStudent(ctx, s.db, testID, studentID)
	if err == nil {
		if existing.Status == models.AttemptSubmitted {
			return nil, ErrAttemptAlreadySubmitted
		}
		return s.buildResponse(ctx, s.backfillDeadline(ctx, existing, test), test), nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	currentTime := s.now()
	if test.StartAt != nil && currentTime.Before(*test.StartAt) {
		return nil, &StartWindowError{TestID: testID, StartAt: test.StartAt, LastStartAt: test.LastStartAt, Reason: "not_open"}
	}
	if test.LastStartAt != nil && currentTime.After(*test.LastStartAt) {
		return nil, &StartWindowError{TestID: testID, StartAt: test.StartAt, LastStartAt: test.LastStartAt, Reason: "closed"}
	}

	endAt := currentTime.Add(time.Duration(test.Duration) * time.Minute)
	attempt := &models.TestAttempt{
		TestID:    testID,
		StudentID: studentID,
		Status:    models.AttemptInProgress,
		StartedAt: &currentTime,
		EndAt:     &endAt,
	}

	// Two racing starts converge on one row; the loser reads the winner's.
	attempt, err = s.repo.Attempt().CreateIfAbsent(ctx, s.db, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Test attempt started",
		"attempt_id", attempt.ID,
		"test_id", testID,
		"student_id", studentID)

	return s.buildResponse(ctx, attempt, test), nil
}

func (s *attemptService) Get(ctx context.Context, testID string, studentID string) (*AttemptResponse, error) {
	test, _, err := s.getTestForStudent(ctx, testID, studentID, "view")
	if err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByTestAndStudent(ctx, s.db, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	return s.buildResponse(ctx, s.backfillDeadline(ctx, attempt, test), test), nil
}

// Patch autosaves running progress. Each present field replaces the stored
// value wholesale; absent fields keep what was last saved.
func (s *attemptService) Patch(ctx context.Context, testID string, studentID string, req *PatchAttemptRequest) (*AttemptResponse, error) {
	test, _, err := s.getTestForStudent(ctx, testID, studentID, "save")
	if err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByTestAndStudent(ctx, s.db, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadySubmitted
	}

	if len(req.Answers) > 0 {
		var answers []models.AttemptAnswer
		if err := json.Unmarshal(req.Answers, &answers); err != nil {
			return nil, NewBusinessRuleError("invalid_answers", "answers must be a list of question_id/answer pairs")
		}
		attempt.Answers = datatypes.JSON(req.Answers)
	}
	if len(req.QuestionStatus) > 0 {
		var status map[string]string
		if err := json.Unmarshal(req.QuestionStatus, &status); err != nil {
			return nil, NewBusinessRuleError("invalid_question_status", "question_status must be an object of question_id to status")
		}
		attempt.QuestionStatus = datatypes.JSON(req.QuestionStatus)
	}
	if req.LastQuestionIndex != nil {
		attempt.LastQuestionIndex = int(*req.LastQuestionIndex)
	}

	savedAt := s.now()
	attempt.LastSavedAt = &savedAt

	if err := s.repo.Attempt().Update(ctx, s.db, attempt); err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}

	return s.buildResponse(ctx, attempt, test), nil
}

// Submit grades and freezes the attempt. Submissions after the deadline are
// accepted; end_at is advisory for clients, not a server-side cutoff.
func (s *attemptService) Submit(ctx context.Context, testID string, studentID string, req *SubmitAttemptRequest) (*SubmitResult, error) {
	s.logger.Info("Submitting test attempt",
		"test_id", testID,
		"student_id", studentID,
		"answer_count", len(req.Answers))

	test, _, err := s.getTestForStudent(ctx, testID, studentID, "submit")
	if err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByTestAndStudent(ctx, s.db, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Status == models.AttemptSubmitted {
		return nil, ErrAttemptAlreadySubmitted
	}

	questions, err := s.repo.Question().GetByIDs(ctx, s.db, test.QuestionIDList())
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	outcome, err := s.grading.GradeAttempt(ctx, questions, req.Answers)
	if err != nil {
		return nil, fmt.Errorf("failed to grade attempt: %w", err)
	}

	submittedAt := s.now()
	answersJSON, _ := json.Marshal(req.Answers)
	resultJSON, _ := json.Marshal(outcome.Results)

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &submittedAt
	attempt.Answers = answersJSON
	attempt.Score = outcome.Score
	attempt.Total = outcome.Total
	attempt.Result = resultJSON
	attempt.DurationSeconds = elapsedSeconds(attempt.StartedAt, submittedAt)

	if err := s.repo.Attempt().Update(ctx, s.db, attempt); err != nil {
		return nil, fmt.Errorf("failed to update attempt: %w", err)
	}

	percentage := Percentage(outcome.Score, outcome.Total)

	s.logger.Info("Test attempt submitted",
		"attempt_id", attempt.ID,
		"test_id", testID,
		"student_id", studentID,
		"score", outcome.Score,
		"total", outcome.Total,
		"percentage", percentage)

	if err := s.publisher.Publish(ctx, events.EventAttemptSubmitted, events.AttemptSubmittedData{
		AttemptID:       attempt.ID,
		TestID:          testID,
		StudentID:       studentID,
		Score:           outcome.Score,
		Total:           outcome.Total,
		Percentage:      percentage,
		DurationSeconds: attempt.DurationSeconds,
	}); err != nil {
		s.logger.Error("Failed to publish attempt.submitted event", "attempt_id", attempt.ID, "error", err)
	}

	return &SubmitResult{
		AttemptID:       attempt.ID,
		TestID:          testID,
		Score:           outcome.Score,
		Total:           outcome.Total,
		Percentage:      percentage,
		DurationSeconds: attempt.DurationSeconds,
		SubmittedAt:     attempt.SubmittedAt,
		Results:         outcome.Results,
	}, nil
}

func (s *attemptService) Review(ctx context.Context, testID string, studentID string) (*SubmitResult, error) {
	if _, _, err := s.getTestForStudent(ctx, testID, studentID, "review"); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByTestAndStudent(ctx, s.db, testID, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.Status != models.AttemptSubmitted {
		return nil, ErrAttemptNotSubmitted
	}

	return &SubmitResult{
		AttemptID:       attempt.ID,
		TestID:          testID,
		Score:           attempt.Score,
		Total:           attempt.Total,
		Percentage:      Percentage(attempt.Score, attempt.Total),
		DurationSeconds: attempt.DurationSeconds,
		SubmittedAt:     attempt.SubmittedAt,
		Results:         attempt.ResultList(),
	}, nil
}

// ReviewByID addresses a single attempt directly. Only the owning student,
// the staff member who created the parent test, or an admin may view it.
func (s *attemptService) ReviewByID(ctx context.Context, attemptID uint, userID string) (*AttemptReviewResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, s.db, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	test, err := s.repo.Test().GetByID(ctx, s.db, attempt.TestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if attempt.StudentID != userID && test.CreatedBy != userID {
		user, err := s.repo.User().GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user.Role != models.RoleAdmin {
			return nil, NewPermissionError(userID, attempt.TestID, "attempt", "review", "not the student or test owner")
		}
	}

	return &AttemptReviewResponse{
		Attempt: s.backfillDeadline(ctx, attempt, test),
		Test:    test,
	}, nil
}

// ===== LIST OPERATIONS =====

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) (*AttemptListResponse, error) {
	attempts, total, err := s.repo.Attempt().GetByStudent(ctx, s.db, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		var test *models.Test
		if t, err := s.repo.Test().GetByID(ctx, s.db, attempt.TestID); err == nil {
			test = t
		}
		responses = append(responses, s.buildResponse(ctx, attempt, test))
	}

	return &AttemptListResponse{
		Attempts: responses,
		Total:    total,
		Page:     pageFromOffset(filters.Offset, filters.Limit),
		Size:     len(responses),
	}, nil
}

func (s *attemptService) GetByTest(ctx context.Context, testID string, userID string, filters repositories.AttemptFilters) (*AttemptListResponse, error) {
	test, err := s.repo.Test().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if test.CreatedBy != userID && user.Role != models.RoleAdmin {
		return nil, NewPermissionError(userID, testID, "test", "view attempts", "not the test owner")
	}

	attempts, total, err := s.repo.Attempt().GetByTest(ctx, s.db, testID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, s.buildResponse(ctx, attempt, test))
	}

	return &AttemptListResponse{
		Attempts: responses,
		Total:    total,
		Page:     pageFromOffset(filters.Offset, filters.Limit),
		Size:     len(responses),
	}, nil
}

// ===== HELPERS =====

func (s *attemptService) getTestForStudent(ctx context.Context, testID, studentID, action string) (*models.Test, *models.User, error) {
	test, err := s.repo.Test().GetByID(ctx, s.db, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrTestNotFound
		}
		return nil, nil, fmt.Errorf("failed to get test: %w", err)
	}

	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get student: %w", err)
	}

	if !testVisibleTo(test, student) {
		return nil, nil, NewPermissionError(studentID, testID, "test", action, "not visible to student")
	}
	return test, student, nil
}

// backfillDeadline computes end_at for attempts created before the deadline
// column existed. Persist failures are logged, not surfaced; the computed
// value is still returned.
func (s *attemptService) backfillDeadline(ctx context.Context, attempt *models.TestAttempt, test *models.Test) *models.TestAttempt {
	if attempt.EndAt != nil || attempt.StartedAt == nil || test == nil {
		return attempt
	}
	endAt := attempt.StartedAt.Add(time.Duration(test.Duration) * time.Minute)
	attempt.EndAt = &endAt
	if err := s.repo.Attempt().Update(ctx, s.db, attempt); err != nil {
		s.logger.Error("Failed to backfill attempt deadline", "attempt_id", attempt.ID, "error", err)
	}
	return attempt
}

func (s *attemptService) buildResponse(ctx context.Context, attempt *models.TestAttempt, test *models.Test) *AttemptResponse {
	resp := &AttemptResponse{
		TestAttempt: attempt,
		ServerTime:  s.now(),
	}
	if test != nil {
		summary := test.Summary()
		resp.Test = &summary
	}
	if attempt.Status == models.AttemptInProgress && attempt.EndAt != nil {
		remaining := int(attempt.EndAt.Sub(resp.ServerTime).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		resp.TimeRemaining = &remaining
	}
	return resp
}

// elapsedSeconds is the whole-second wall clock between start and submit,
// clamped at zero. Attempts with no recorded start report zero.
func elapsedSeconds(startedAt *time.Time, submittedAt time.Time) int {
	if startedAt == nil {
		return 0
	}
	seconds := int(submittedAt.Sub(*startedAt).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}

func testVisibleTo(test *models.Test, user *models.User) bool {
	if test.CreatedBy == user.ID || user.Role == models.RoleAdmin {
		return true
	}
	if test.Institution != "" && test.Institution != user.Institution {
		return false
	}
	if test.IsPublic {
		return true
	}
	assigned := test.AssignedGroupList()
	for _, g := range user.GroupNames() {
		for _, a := range assigned {
			if g == a {
				return true
			}
		}
	}
	return false
}
