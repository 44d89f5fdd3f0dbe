package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/events"
	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

const defaultTestDuration = 30 // minutes

type testService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
}

func NewTestService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) TestService {
	return &testService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== CORE OPERATIONS =====

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error) {
	s.logger.Info("Creating test",
		"name", req.Name,
		"creator_id", creatorID,
		"question_set_count", len(req.QuestionSetIDs))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	creator, err := s.repo.User().GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	if creator.Role != models.RoleStaff && creator.Role != models.RoleAdmin {
		return nil, NewPermissionError(creatorID, nil, "test", "create", "requires staff role")
	}

	sets, err := s.repo.QuestionSet().GetByIDs(ctx, s.db, req.QuestionSetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get question sets: %w", err)
	}
	if len(sets) != len(uniqueUints(req.QuestionSetIDs)) {
		return nil, ErrQuestionSetNotFound
	}
	for _, set := range sets {
		if set.CreatedBy != creatorID && creator.Role != models.RoleAdmin {
			return nil, NewPermissionError(creatorID, set.ID, "question_set", "use", "not owned by creator")
		}
	}

	questionIDs := flattenQuestionIDs(req.QuestionSetIDs, sets)
	if len(questionIDs) == 0 {
		return nil, NewBusinessRuleError("empty_test", "question sets contain no questions")
	}

	duration := req.Duration
	if duration <= 0 {
		duration = defaultTestDuration
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	setIDsJSON, _ := json.Marshal(req.QuestionSetIDs)
	questionIDsJSON, _ := json.Marshal(questionIDs)
	var groupsJSON []byte
	if len(req.AssignedGroups) > 0 {
		groupsJSON, _ = json.Marshal(req.AssignedGroups)
	}

	test := &models.Test{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Institution:    creator.Institution,
		CreatedBy:      creatorID,
		QuestionSetIDs: setIDsJSON,
		QuestionIDs:    questionIDsJSON,
		Duration:       duration,
		IsPublic:       isPublic,
		AssignedGroups: groupsJSON,
		StartAt:        parseLenientTime(req.StartAt),
		LastStartAt:    parseLenientTime(req.LastStartAt),
	}

	if err := s.repo.Test().Create(ctx, s.db, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	s.logger.Info("Test created", "test_id", test.ID, "question_count", len(questionIDs))

	if err := s.publisher.Publish(ctx, events.EventTestCreated, events.TestCreatedData{
		TestID:         test.ID,
		Name:           test.Name,
		CreatedBy:      creatorID,
		Institution:    test.Institution,
		IsPublic:       test.IsPublic,
		AssignedGroups: req.AssignedGroups,
		QuestionCount:  len(questionIDs),
	}); err != nil {
		s.logger.Error("Failed to publish test.created event", "test_id", test.ID, "error", err)
	}

	test.QuestionCount = len(questionIDs)
	return &TestResponse{Test: test, CanEdit: true}, nil
}

func (s *testService) GetByID(ctx context.Context, id string, userID string) (*TestResponse, error) {
	test, err := s.repo.Test().GetByID(ctx, s.db, id)
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
	if !s.canAccess(test, user) {
		return nil, NewPermissionError(userID, id, "test", "view", "not visible to user")
	}

	test.QuestionCount = len(test.QuestionIDList())
	return &TestResponse{
		Test:    test,
		CanEdit: test.CreatedBy == userID || user.Role == models.RoleAdmin,
	}, nil
}

func (s *testService) GetForAttempt(ctx context.Context, id string, studentID string) (*TestForAttempt, error) {
	test, err := s.repo.Test().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if !s.canAccess(test, student) {
		return nil, NewPermissionError(studentID, id, "test", "take", "not visible to student")
	}

	questionIDs := test.QuestionIDList()
	questions, err := s.repo.Question().GetByIDs(ctx, s.db, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	// Preserve the test's question order and strip answer keys
	byID := make(map[string]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]*models.Question, 0, len(questionIDs))
	for _, qid := range questionIDs {
		if q, ok := byID[qid]; ok {
			stripped := *q
			stripped.Answer = nil
			ordered = append(ordered, &stripped)
		}
	}

	return &TestForAttempt{
		ID:        test.ID,
		Name:      test.Name,
		Duration:  test.Duration,
		Questions: ordered,
	}, nil
}

// ===== LIST OPERATIONS =====

func (s *testService) List(ctx context.Context, filters repositories.TestFilters, userID string) (*TestListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Role == models.RoleStudent {
		return s.GetVisibleToStudent(ctx, userID, filters)
	}
	if user.Role != models.RoleAdmin {
		return s.GetByCreator(ctx, userID, filters)
	}

	tests, total, err := s.repo.Test().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return s.buildListResponse(tests, total, filters, user), nil
}

func (s *testService) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) (*TestListResponse, error) {
	tests, total, err := s.repo.Test().GetByCreator(ctx, s.db, creatorID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests by creator: %w", err)
	}

	responses := make([]*TestResponse, 0, len(tests))
	for _, t := range tests {
		t.QuestionCount = len(t.QuestionIDList())
		responses = append(responses, &TestResponse{Test: t, CanEdit: true})
	}
	return &TestListResponse{
		Tests: responses,
		Total: total,
		Page:  pageFromOffset(filters.Offset, filters.Limit),
		Size:  len(responses),
	}, nil
}

func (s *testService) GetVisibleToStudent(ctx context.Context, studentID string, filters repositories.TestFilters) (*TestListResponse, error) {
	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	tests, total, err := s.repo.Test().GetVisibleToStudent(ctx, s.db, student.Institution, student.GroupNames(), filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible tests: %w", err)
	}

	responses := make([]*TestResponse, 0, len(tests))
	for _, t := range tests {
		t.QuestionCount = len(t.QuestionIDList())
		responses = append(responses, &TestResponse{Test: t})
	}
	return &TestListResponse{
		Tests: responses,
		Total: total,
		Page:  pageFromOffset(filters.Offset, filters.Limit),
		Size:  len(responses),
	}, nil
}

// ===== HELPERS =====

func (s *testService) canAccess(test *models.Test, user *models.User) bool {
	return testVisibleTo(test, user)
}

func (s *testService) buildListResponse(tests []*models.Test, total int64, filters repositories.TestFilters, user *models.User) *TestListResponse {
	responses := make([]*TestResponse, 0, len(tests))
	for _, t := range tests {
		t.QuestionCount = len(t.QuestionIDList())
		responses = append(responses, &TestResponse{
			Test:    t,
			CanEdit: t.CreatedBy == user.ID || user.Role == models.RoleAdmin,
		})
	}
	return &TestListResponse{
		Tests: responses,
		Total: total,
		Page:  pageFromOffset(filters.Offset, filters.Limit),
		Size:  len(responses),
	}
}

// flattenQuestionIDs concatenates member ids in set order, dropping
// duplicates while keeping each id's first position.
func flattenQuestionIDs(setIDs []uint, sets []*models.QuestionSet) []string {
	byID := make(map[uint]*models.QuestionSet, len(sets))
	for _, set := range sets {
		byID[set.ID] = set
	}

	seen := make(map[string]bool)
	var out []string
	for _, sid := range setIDs {
		set, ok := byID[sid]
		if !ok {
			continue
		}
		for _, qid := range set.QuestionIDList() {
			if !seen[qid] {
				seen[qid] = true
				out = append(out, qid)
			}
		}
	}
	return out
}

func uniqueUints(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	var out []uint
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// parseLenientTime accepts the common timestamp shapes clients send;
// anything unparseable normalizes to absent.
func parseLenientTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

func pageFromOffset(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return (offset / limit) + 1
}
