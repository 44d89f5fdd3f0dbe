package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/princegupta0106/coaching-api/internal/cache"
	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (e *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, institution string) ([]*models.Exam, error) {
	db := e.getDB(tx)
	var exams []*models.Exam
	err := e.cacheManager.Fast.CacheOrExecute(ctx, fmt.Sprintf("exams:%s", institution), &exams, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbExams []*models.Exam
		query := db.WithContext(ctx).Preload("Subjects").Order("name asc")
		if institution != "" {
			query = query.Where("institution = ? OR institution = ''", institution)
		}
		if err := query.Find(&dbExams).Error; err != nil {
			return nil, fmt.Errorf("failed to list exams: %w", err)
		}
		return dbExams, nil
	})
	if err != nil {
		return nil, err
	}
	return exams, nil
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).Preload("Subjects").Where("id = ?", id).First(&exam).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetSubjects(ctx context.Context, tx *gorm.DB, examID string) ([]*models.Subject, error) {
	db := e.getDB(tx)
	var subjects []*models.Subject
	if err := db.WithContext(ctx).Where("exam_id = ?", examID).Order("name asc").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to get subjects: %w", err)
	}
	return subjects, nil
}

// Upsert keeps the catalog importable: re-running an import refreshes the
// exam row and its subjects without duplicating either.
func (e *ExamPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "institution", "updated_at"}),
		}).
		Omit("Subjects").
		Create(exam).Error; err != nil {
		return fmt.Errorf("failed to upsert exam: %w", err)
	}
	for i := range exam.Subjects {
		exam.Subjects[i].ExamID = exam.ID
		if err := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "exam_id"}),
			}).
			Create(&exam.Subjects[i]).Error; err != nil {
			return fmt.Errorf("failed to upsert subject %s: %w", exam.Subjects[i].ID, err)
		}
	}
	cache.SafeInvalidatePattern(ctx, e.cacheManager.Fast, "exams:*")
	return nil
}
