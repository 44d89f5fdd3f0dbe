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

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

// CreateIfAbsent relies on the unique (test_id, student_id) index: the insert
// is a no-op when a row already exists, and the follow-up read returns
// whichever row won. This closes the concurrent-start race at the store.
func (a *AttemptPostgreSQL) CreateIfAbsent(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (*models.TestAttempt, error) {
	db := a.getDB(tx)

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "test_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(attempt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	return a.GetByTestAndStudent(ctx, tx, attempt.TestID, attempt.StudentID)
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

// GetByTestAndStudent is the hot read of the attempt lifecycle; the short
// cache TTL is paired with invalidation on every Update.
func (a *AttemptPostgreSQL) GetByTestAndStudent(ctx context.Context, tx *gorm.DB, testID, studentID string) (*models.TestAttempt, error) {
	db := a.getDB(tx)
	var attempt models.TestAttempt
	err := a.cacheManager.Fast.CacheOrExecute(ctx, fmt.Sprintf("attempt:%s:%s", testID, studentID), &attempt, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbAttempt models.TestAttempt
		err := db.WithContext(ctx).
			Where("test_id = ? AND student_id = ?", testID, studentID).
			First(&dbAttempt).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get attempt: %w", err)
		}
		return &dbAttempt, nil
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	db := a.getDB(tx)
	if err := db.WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	cache.InvalidateAttemptCache(ctx, a.cacheManager, attempt.TestID, attempt.StudentID)
	return nil
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	filters.StudentID = &studentID
	return a.list(ctx, tx, filters)
}

func (a *AttemptPostgreSQL) GetByTest(ctx context.Context, tx *gorm.DB, testID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	filters.TestID = &testID
	return a.list(ctx, tx, filters)
}

func (a *AttemptPostgreSQL) list(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.TestAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.TestAttempt{})
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.TestID != nil {
		query = query.Where("test_id = ?", *filters.TestID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Most recently started first; rows without started_at sort last
	query = query.Order("started_at DESC NULLS LAST")
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}
