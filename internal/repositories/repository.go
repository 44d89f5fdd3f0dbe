package repositories

import "context"

// Repository aggregates the per-entity repository interfaces.
type Repository interface {
	// Content catalog
	Exam() ExamRepository
	Question() QuestionRepository
	QuestionSet() QuestionSetRepository

	// Test + attempt domain
	Test() TestRepository
	Attempt() AttemptRepository

	// User domain (identity is owned by Casdoor; this is read-mostly)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
