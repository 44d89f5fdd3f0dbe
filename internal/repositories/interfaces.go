package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	CreatedBy   *string    `json:"created_by"`
	Institution *string    `json:"institution"`
	IsPublic    *bool      `json:"is_public"`
	DateFrom    *time.Time `json:"date_from"`
	DateTo      *time.Time `json:"date_to"`
	Limit       int        `json:"limit"`
	Offset      int        `json:"offset"`
	SortBy      string     `json:"sort_by"`    // "created_at", "name"
	SortOrder   string     `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	StudentID *string               `json:"student_id"`
	TestID    *string               `json:"test_id"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
}

type QuestionFilters struct {
	Type        *models.QuestionType `json:"type"`
	Exam        *string              `json:"exam"`
	Subject     *string              `json:"subject"`
	Chapter     *string              `json:"chapter"`
	Institution *string              `json:"institution"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

type QuestionSetFilters struct {
	CreatedBy   *string `json:"created_by"`
	SubjectID   *string `json:"subject_id"`
	Institution *string `json:"institution"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
}

type UserFilters struct {
	Query  string
	Limit  int
	Offset int
}

// ===== ENTITY REPOSITORIES =====
//
// The tx parameter lets services run several operations inside one gorm
// transaction; passing nil uses the repository's own handle.

type TestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, test *models.Test) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Test, error)
	List(ctx context.Context, tx *gorm.DB, filters TestFilters) ([]*models.Test, int64, error)
	GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters TestFilters) ([]*models.Test, int64, error)
	// GetVisibleToStudent returns public tests plus tests whose assigned
	// groups intersect the student's group memberships, institution-scoped.
	GetVisibleToStudent(ctx context.Context, tx *gorm.DB, institution string, groups []string, filters TestFilters) ([]*models.Test, int64, error)
}

type AttemptRepository interface {
	// CreateIfAbsent inserts the attempt unless a row for (test, student)
	// already exists, then returns the surviving row. Backed by the unique
	// index so two racing starts converge on one attempt.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (*models.TestAttempt, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error)
	GetByTestAndStudent(ctx context.Context, tx *gorm.DB, testID, studentID string) (*models.TestAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	GetByTest(ctx context.Context, tx *gorm.DB, testID string, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.Question, error)
	List(ctx context.Context, tx *gorm.DB, filters QuestionFilters) ([]*models.Question, int64, error)
}

type QuestionSetRepository interface {
	Create(ctx context.Context, tx *gorm.DB, set *models.QuestionSet) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionSet, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.QuestionSet, error)
	Update(ctx context.Context, tx *gorm.DB, set *models.QuestionSet) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters QuestionSetFilters) ([]*models.QuestionSet, int64, error)
}

type ExamRepository interface {
	List(ctx context.Context, tx *gorm.DB, institution string) ([]*models.Exam, error)
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error)
	GetSubjects(ctx context.Context, tx *gorm.DB, examID string) ([]*models.Subject, error)
	Upsert(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
}

// UserRepository is read-mostly; identity is owned by Casdoor.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
}
