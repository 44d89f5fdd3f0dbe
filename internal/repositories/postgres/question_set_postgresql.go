package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/cache"
	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
)

type QuestionSetPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionSetPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionSetRepository {
	return &QuestionSetPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionSetPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuestionSetPostgreSQL) Create(ctx context.Context, tx *gorm.DB, set *models.QuestionSet) error {
	return q.getDB(tx).WithContext(ctx).Create(set).Error
}

// GetByID reads through the question cache; Update and Delete drop the key.
func (q *QuestionSetPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionSet, error) {
	db := q.getDB(tx)
	var set models.QuestionSet
	err := q.cacheManager.Question.CacheOrExecute(ctx, fmt.Sprintf("set:%d", id), &set, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbSet models.QuestionSet
		if err := db.WithContext(ctx).Where("id = ?", id).First(&dbSet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get question set: %w", err)
		}
		return &dbSet, nil
	})
	if err != nil {
		return nil, err
	}
	set.QuestionCount = len(set.QuestionIDList())
	return &set, nil
}

func (q *QuestionSetPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.QuestionSet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := q.getDB(tx)
	var sets []*models.QuestionSet
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("failed to get question sets: %w", err)
	}
	for _, set := range sets {
		set.QuestionCount = len(set.QuestionIDList())
	}
	return sets, nil
}

func (q *QuestionSetPostgreSQL) Update(ctx context.Context, tx *gorm.DB, set *models.QuestionSet) error {
	if err := q.getDB(tx).WithContext(ctx).Save(set).Error; err != nil {
		return fmt.Errorf("failed to update question set: %w", err)
	}
	cache.InvalidateQuestionSetCache(ctx, q.cacheManager, set.ID)
	return nil
}

func (q *QuestionSetPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)
	var set models.QuestionSet
	if err := db.WithContext(ctx).Where("id = ?", id).First(&set).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to load question set: %w", err)
	}
	if err := db.WithContext(ctx).Delete(&set).Error; err != nil {
		return fmt.Errorf("failed to delete question set: %w", err)
	}
	cache.InvalidateQuestionSetCache(ctx, q.cacheManager, set.ID)
	return nil
}

func (q *QuestionSetPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionSetFilters) ([]*models.QuestionSet, int64, error) {
	db := q.getDB(tx)
	var sets []*models.QuestionSet
	var total int64

	query := db.WithContext(ctx).Model(&models.QuestionSet{})
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.SubjectID != nil {
		query = query.Where("subject_id = ?", *filters.SubjectID)
	}
	if filters.Institution != nil {
		query = query.Where("institution = ?", *filters.Institution)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at desc")
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Find(&sets).Error; err != nil {
		return nil, 0, err
	}
	for _, set := range sets {
		set.QuestionCount = len(set.QuestionIDList())
	}

	return sets, total, nil
}
