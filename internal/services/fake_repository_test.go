package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gorm.io/gorm"

	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
)

// In-memory Repository implementation shared by the service tests.

type fakeRepository struct {
	tests        *fakeTestRepo
	attempts     *fakeAttemptRepo
	questions    *fakeQuestionRepo
	questionSets *fakeQuestionSetRepo
	exams        *fakeExamRepo
	users        *fakeUserRepo
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		tests:        &fakeTestRepo{tests: map[string]*models.Test{}},
		attempts:     &fakeAttemptRepo{attempts: map[string]*models.TestAttempt{}},
		questions:    &fakeQuestionRepo{questions: map[string]*models.Question{}},
		questionSets: &fakeQuestionSetRepo{sets: map[uint]*models.QuestionSet{}},
		exams:        &fakeExamRepo{exams: map[string]*models.Exam{}},
		users:        &fakeUserRepo{users: map[string]*models.User{}},
	}
}

func (r *fakeRepository) Exam() repositories.ExamRepository               { return r.exams }
func (r *fakeRepository) Question() repositories.QuestionRepository      { return r.questions }
func (r *fakeRepository) QuestionSet() repositories.QuestionSetRepository { return r.questionSets }
func (r *fakeRepository) Test() repositories.TestRepository              { return r.tests }
func (r *fakeRepository) Attempt() repositories.AttemptRepository        { return r.attempts }
func (r *fakeRepository) User() repositories.UserRepository              { return r.users }
func (r *fakeRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}
func (r *fakeRepository) Ping(ctx context.Context) error { return nil }
func (r *fakeRepository) Close() error                   { return nil }

// ===== TESTS =====

type fakeTestRepo struct {
	tests map[string]*models.Test
}

func (f *fakeTestRepo) Create(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	f.tests[test.ID] = test
	return nil
}

func (f *fakeTestRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Test, error) {
	if t, ok := f.tests[id]; ok {
		return t, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeTestRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	out := f.all()
	return out, int64(len(out)), nil
}

func (f *fakeTestRepo) GetByCreator(ctx context.Context, tx *gorm.DB, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	var out []*models.Test
	for _, t := range f.all() {
		if t.CreatedBy == creatorID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTestRepo) GetVisibleToStudent(ctx context.Context, tx *gorm.DB, institution string, groups []string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	var out []*models.Test
	for _, t := range f.all() {
		if t.Institution != "" && t.Institution != institution {
			continue
		}
		if t.IsPublic {
			out = append(out, t)
			continue
		}
		assigned := t.AssignedGroupList()
		for _, g := range groups {
			for _, a := range assigned {
				if g == a {
					out = append(out, t)
				}
			}
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTestRepo) all() []*models.Test {
	out := make([]*models.Test, 0, len(f.tests))
	for _, t := range f.tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ===== ATTEMPTS =====

type fakeAttemptRepo struct {
	attempts  map[string]*models.TestAttempt
	nextID    uint
	updateErr error
}

func attemptKey(testID, studentID string) string {
	return testID + "|" + studentID
}

func (f *fakeAttemptRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) (*models.TestAttempt, error) {
	key := attemptKey(attempt.TestID, attempt.StudentID)
	if existing, ok := f.attempts[key]; ok {
		return existing, nil
	}
	f.nextID++
	attempt.ID = f.nextID
	f.attempts[key] = attempt
	return attempt, nil
}

func (f *fakeAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.TestAttempt, error) {
	for _, a := range f.attempts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAttemptRepo) GetByTestAndStudent(ctx context.Context, tx *gorm.DB, testID, studentID string) (*models.TestAttempt, error) {
	if a, ok := f.attempts[attemptKey(testID, studentID)]; ok {
		return a, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.TestAttempt) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.attempts[attemptKey(attempt.TestID, attempt.StudentID)] = attempt
	return nil
}

func (f *fakeAttemptRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	var out []*models.TestAttempt
	for _, a := range f.attempts {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	sortNewestStartFirst(out)
	return out, int64(len(out)), nil
}

func (f *fakeAttemptRepo) GetByTest(ctx context.Context, tx *gorm.DB, testID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	var out []*models.TestAttempt
	for _, a := range f.attempts {
		if a.TestID == testID {
			out = append(out, a)
		}
	}
	sortNewestStartFirst(out)
	return out, int64(len(out)), nil
}

// Listings order like the store: most recently started first, attempts
// without a start time last.
func sortNewestStartFirst(attempts []*models.TestAttempt) {
	sort.Slice(attempts, func(i, j int) bool {
		si, sj := attempts[i].StartedAt, attempts[j].StartedAt
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return si.After(*sj)
	})
}

// ===== QUESTIONS =====

type fakeQuestionRepo struct {
	questions map[string]*models.Question
	batches   int
}

func (f *fakeQuestionRepo) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	f.questions[question.ID] = question
	return nil
}

func (f *fakeQuestionRepo) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	f.batches++
	for _, q := range questions {
		f.questions[q.ID] = q
	}
	return nil
}

func (f *fakeQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Question, error) {
	if q, ok := f.questions[id]; ok {
		return q, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]*models.Question, error) {
	var out []*models.Question
	for _, id := range ids {
		if q, ok := f.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	var out []*models.Question
	for _, q := range f.questions {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// ===== QUESTION SETS =====

type fakeQuestionSetRepo struct {
	sets   map[uint]*models.QuestionSet
	nextID uint
}

func (f *fakeQuestionSetRepo) Create(ctx context.Context, tx *gorm.DB, set *models.QuestionSet) error {
	if set.ID == 0 {
		f.nextID++
		set.ID = f.nextID
	}
	f.sets[set.ID] = set
	return nil
}

func (f *fakeQuestionSetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionSet, error) {
	if s, ok := f.sets[id]; ok {
		return s, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeQuestionSetRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.QuestionSet, error) {
	seen := make(map[uint]bool, len(ids))
	var out []*models.QuestionSet
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := f.sets[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeQuestionSetRepo) Update(ctx context.Context, tx *gorm.DB, set *models.QuestionSet) error {
	if _, ok := f.sets[set.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.sets[set.ID] = set
	return nil
}

func (f *fakeQuestionSetRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	if _, ok := f.sets[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.sets, id)
	return nil
}

func (f *fakeQuestionSetRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.QuestionSetFilters) ([]*models.QuestionSet, int64, error) {
	var out []*models.QuestionSet
	for _, s := range f.sets {
		if filters.CreatedBy != nil && s.CreatedBy != *filters.CreatedBy {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// ===== EXAMS =====

type fakeExamRepo struct {
	exams map[string]*models.Exam
}

func (f *fakeExamRepo) List(ctx context.Context, tx *gorm.DB, institution string) ([]*models.Exam, error) {
	var out []*models.Exam
	for _, e := range f.exams {
		if e.Institution == "" || e.Institution == institution {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error) {
	if e, ok := f.exams[id]; ok {
		return e, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeExamRepo) GetSubjects(ctx context.Context, tx *gorm.DB, examID string) ([]*models.Subject, error) {
	e, ok := f.exams[examID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := make([]*models.Subject, 0, len(e.Subjects))
	for i := range e.Subjects {
		out = append(out, &e.Subjects[i])
	}
	return out, nil
}

func (f *fakeExamRepo) Upsert(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	f.exams[exam.ID] = exam
	return nil
}

// ===== USERS =====

type fakeUserRepo struct {
	users map[string]*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	var out []*models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

// ===== FIXTURES =====

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func strPtr(s string) *string { return &s }

func seedUser(repo *fakeRepository, id string, role models.UserRole, institution string) *models.User {
	u := &models.User{
		ID:          id,
		FullName:    "User " + id,
		Email:       id + "@example.com",
		Role:        role,
		Institution: institution,
	}
	repo.users.users[id] = u
	return u
}

func seedQuestion(repo *fakeRepository, id string, qType models.QuestionType, answer string) *models.Question {
	q := &models.Question{
		ID:      id,
		Type:    qType,
		Content: []byte(`{"question_html":"<p>q</p>"}`),
	}
	if answer != "" {
		q.Answer = []byte(fmt.Sprintf(`{"type":%q,"value":%q}`, qType, answer))
	}
	repo.questions.questions[id] = q
	return q
}
