package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

type catalogService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewCatalogService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) CatalogService {
	return &catalogService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== EXAMS AND SUBJECTS =====

func (s *catalogService) ListExams(ctx context.Context, userID string) ([]*models.Exam, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	exams, err := s.repo.Exam().List(ctx, s.db, user.Institution)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

func (s *catalogService) GetExam(ctx context.Context, examID string, userID string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *catalogService) ListSubjects(ctx context.Context, examID string, userID string) ([]*models.Subject, error) {
	if _, err := s.repo.Exam().GetByID(ctx, s.db, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	subjects, err := s.repo.Exam().GetSubjects(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

func (s *catalogService) UpsertExam(ctx context.Context, req *UpsertExamRequest, userID string) (*models.Exam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return nil, NewPermissionError(userID, req.ID, "exam", "upsert", "requires admin role")
	}

	exam := &models.Exam{
		ID:          req.ID,
		Name:        req.Name,
		Institution: user.Institution,
	}
	for _, subject := range req.Subjects {
		exam.Subjects = append(exam.Subjects, models.Subject{
			ID:     subject.ID,
			ExamID: req.ID,
			Name:   subject.Name,
		})
	}

	// Exam row and subject rows land atomically
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.Exam().Upsert(ctx, nil, exam)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert exam: %w", err)
	}

	s.logger.Info("Exam upserted", "exam_id", exam.ID, "subjects", len(exam.Subjects), "user_id", userID)
	return exam, nil
}

// ===== QUESTION SETS =====

func (s *catalogService) CreateQuestionSet(ctx context.Context, req *CreateQuestionSetRequest, creatorID string) (*QuestionSetResponse, error) {
	s.logger.Info("Creating question set",
		"name", req.Name,
		"creator_id", creatorID,
		"question_count", len(req.QuestionIDs))

	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	creator, err := s.requireStaff(ctx, creatorID, "question_set", "create")
	if err != nil {
		return nil, err
	}

	// Every member must exist in the catalog
	questions, err := s.repo.Question().GetByIDs(ctx, s.db, req.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	if missing := missingQuestionIDs(req.QuestionIDs, questions); len(missing) > 0 {
		return nil, NewBusinessRuleError("unknown_questions", fmt.Sprintf("unknown question ids: %v", missing))
	}

	idsJSON, _ := json.Marshal(req.QuestionIDs)
	set := &models.QuestionSet{
		Name:        req.Name,
		SubjectID:   req.SubjectID,
		Institution: creator.Institution,
		CreatedBy:   creatorID,
		QuestionIDs: idsJSON,
	}

	if err := s.repo.QuestionSet().Create(ctx, s.db, set); err != nil {
		return nil, fmt.Errorf("failed to create question set: %w", err)
	}

	set.QuestionCount = len(req.QuestionIDs)
	return &QuestionSetResponse{QuestionSet: set, CanEdit: true}, nil
}

func (s *catalogService) GetQuestionSet(ctx context.Context, id uint, userID string) (*QuestionSetResponse, error) {
	set, err := s.repo.QuestionSet().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionSetNotFound
		}
		return nil, fmt.Errorf("failed to get question set: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &QuestionSetResponse{
		QuestionSet: set,
		CanEdit:     set.CreatedBy == userID || user.Role == models.RoleAdmin,
	}, nil
}

func (s *catalogService) UpdateQuestionSet(ctx context.Context, id uint, req *UpdateQuestionSetRequest, userID string) (*QuestionSetResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	set, err := s.repo.QuestionSet().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionSetNotFound
		}
		return nil, fmt.Errorf("failed to get question set: %w", err)
	}

	if err := s.requireOwnerOrAdmin(ctx, userID, set.CreatedBy, id, "question_set", "update"); err != nil {
		return nil, err
	}

	if req.Name != nil {
		set.Name = *req.Name
	}
	if req.QuestionIDs != nil {
		questions, err := s.repo.Question().GetByIDs(ctx, s.db, req.QuestionIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get questions: %w", err)
		}
		if missing := missingQuestionIDs(req.QuestionIDs, questions); len(missing) > 0 {
			return nil, NewBusinessRuleError("unknown_questions", fmt.Sprintf("unknown question ids: %v", missing))
		}
		idsJSON, _ := json.Marshal(req.QuestionIDs)
		set.QuestionIDs = idsJSON
	}

	if err := s.repo.QuestionSet().Update(ctx, s.db, set); err != nil {
		return nil, fmt.Errorf("failed to update question set: %w", err)
	}

	set.QuestionCount = len(set.QuestionIDList())
	return &QuestionSetResponse{QuestionSet: set, CanEdit: true}, nil
}

func (s *catalogService) DeleteQuestionSet(ctx context.Context, id uint, userID string) error {
	set, err := s.repo.QuestionSet().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionSetNotFound
		}
		return fmt.Errorf("failed to get question set: %w", err)
	}

	if err := s.requireOwnerOrAdmin(ctx, userID, set.CreatedBy, id, "question_set", "delete"); err != nil {
		return err
	}

	if err := s.repo.QuestionSet().Delete(ctx, s.db, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionSetNotFound
		}
		return fmt.Errorf("failed to delete question set: %w", err)
	}

	s.logger.Info("Question set deleted", "set_id", id, "user_id", userID)
	return nil
}

func (s *catalogService) ListQuestionSets(ctx context.Context, filters repositories.QuestionSetFilters, userID string) (*QuestionSetListResponse, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Staff see their own sets unless an admin widens the filter
	if user.Role != models.RoleAdmin && filters.CreatedBy == nil {
		filters.CreatedBy = &user.ID
	}

	sets, total, err := s.repo.QuestionSet().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list question sets: %w", err)
	}

	responses := make([]*QuestionSetResponse, 0, len(sets))
	for _, set := range sets {
		responses = append(responses, &QuestionSetResponse{
			QuestionSet: set,
			CanEdit:     set.CreatedBy == userID || user.Role == models.RoleAdmin,
		})
	}

	return &QuestionSetListResponse{
		Sets:  responses,
		Total: total,
		Page:  pageFromOffset(filters.Offset, filters.Limit),
		Size:  len(responses),
	}, nil
}

// ===== QUESTIONS =====

func (s *catalogService) CreateQuestion(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*models.Question, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	creator, err := s.requireStaff(ctx, creatorID, "question", "create")
	if err != nil {
		return nil, err
	}

	var institutionsJSON []byte
	if creator.Institution != "" {
		institutionsJSON, _ = json.Marshal([]string{creator.Institution})
	}

	question := &models.Question{
		ID:           req.ID,
		Type:         req.Type,
		Exam:         req.Exam,
		Subject:      req.Subject,
		Chapter:      req.Chapter,
		Content:      []byte(req.Content),
		Answer:       []byte(req.Answer),
		Institutions: institutionsJSON,
		CreatedBy:    creatorID,
	}

	if err := s.repo.Question().Create(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question created", "question_id", question.ID, "creator_id", creatorID)
	return question, nil
}

func (s *catalogService) GetQuestion(ctx context.Context, id string, userID string) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, s.db, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return question, nil
}

func (s *catalogService) ListQuestions(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	if _, err := s.requireStaff(ctx, userID, "question", "list"); err != nil {
		return nil, err
	}

	questions, total, err := s.repo.Question().List(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	return &QuestionListResponse{
		Questions: questions,
		Total:     total,
		Page:      pageFromOffset(filters.Offset, filters.Limit),
		Size:      len(questions),
	}, nil
}

// ===== HELPERS =====

func (s *catalogService) requireStaff(ctx context.Context, userID, resource, action string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleStaff && user.Role != models.RoleAdmin {
		return nil, NewPermissionError(userID, nil, resource, action, "requires staff role")
	}
	return user, nil
}

func (s *catalogService) requireOwnerOrAdmin(ctx context.Context, userID, ownerID string, resourceID interface{}, resource, action string) error {
	if userID == ownerID {
		return nil
	}
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role != models.RoleAdmin {
		return NewPermissionError(userID, resourceID, resource, action, "not the owner")
	}
	return nil
}

func missingQuestionIDs(wanted []string, found []*models.Question) []string {
	have := make(map[string]bool, len(found))
	for _, q := range found {
		have[q.ID] = true
	}
	var missing []string
	for _, id := range wanted {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
