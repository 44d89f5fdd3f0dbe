package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/princegupta0106/coaching-api/internal/events"
	"github.com/princegupta0106/coaching-api/internal/models"
	"github.com/princegupta0106/coaching-api/internal/repositories"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

func newAttemptFixture(t *testing.T, now time.Time) (*attemptService, *fakeRepository, *events.MockEventPublisher) {
	t.Helper()
	repo := newFakeRepository()
	publisher := events.NewMockEventPublisher()
	logger := testLogger()

	svc := &attemptService{
		repo:      repo,
		logger:    logger,
		validator: validator.New(),
		grading:   NewGradingService(logger),
		publisher: publisher,
		now:       func() time.Time { return now },
	}

	seedUser(repo, "staff-1", models.RoleStaff, "acme")
	seedUser(repo, "student-1", models.RoleStudent, "acme")
	seedQuestion(repo, "q1", models.MCQSingle, "B")
	seedQuestion(repo, "q2", models.Numerical, "3.14")

	repo.tests.tests["t1"] = &models.Test{
		ID:          "t1",
		Name:        "Weekly Mock 4",
		Institution: "acme",
		CreatedBy:   "staff-1",
		QuestionIDs: []byte(`["q1","q2"]`),
		Duration:    90,
		IsPublic:    true,
	}

	return svc, repo, publisher
}

func TestAttemptService_Start(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	resp, err := svc.Start(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if resp.Status != models.AttemptInProgress {
		t.Errorf("Status = %s, want in_progress", resp.Status)
	}
	if resp.StartedAt == nil || !resp.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", resp.StartedAt, now)
	}
	wantEnd := now.Add(90 * time.Minute)
	if resp.EndAt == nil || !resp.EndAt.Equal(wantEnd) {
		t.Errorf("EndAt = %v, want %v", resp.EndAt, wantEnd)
	}
	if resp.TimeRemaining == nil || *resp.TimeRemaining != 90*60 {
		t.Errorf("TimeRemaining = %v, want %d", resp.TimeRemaining, 90*60)
	}
	if resp.Test == nil || resp.Test.ID != "t1" {
		t.Errorf("Test summary missing or wrong: %+v", resp.Test)
	}
}

func TestAttemptService_Start_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	first, err := svc.Start(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	svc.now = func() time.Time { return now.Add(20 * time.Minute) }
	second, err := svc.Start(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second Start created a new attempt: %d vs %d", second.ID, first.ID)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Errorf("StartedAt changed on restart: %v vs %v", second.StartedAt, first.StartedAt)
	}
	if !second.EndAt.Equal(*first.EndAt) {
		t.Errorf("EndAt changed on restart: %v vs %v", second.EndAt, first.EndAt)
	}
	// Clock has advanced, so less time remains
	if second.TimeRemaining == nil || *second.TimeRemaining != 70*60 {
		t.Errorf("TimeRemaining = %v, want %d", second.TimeRemaining, 70*60)
	}
}

func TestAttemptService_Start_WindowEnforcement(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	opensAt := now.Add(time.Hour)
	closedAt := now.Add(-time.Hour)

	tests := []struct {
		name        string
		startAt     *time.Time
		lastStartAt *time.Time
		wantReason  string
	}{
		{"before window opens", &opensAt, nil, "not_open"},
		{"after window closes", nil, &closedAt, "closed"},
		{"both bounds closed", &closedAt, &closedAt, "closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newAttemptFixture(t, now)
			test := repo.tests.tests["t1"]
			test.StartAt = tt.startAt
			test.LastStartAt = tt.lastStartAt

			_, err := svc.Start(context.Background(), "t1", "student-1")
			var winErr *StartWindowError
			if !errors.As(err, &winErr) {
				t.Fatalf("expected StartWindowError, got %v", err)
			}
			if winErr.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", winErr.Reason, tt.wantReason)
			}
			if winErr.TestID != "t1" {
				t.Errorf("TestID = %s, want t1", winErr.TestID)
			}
			// The error echoes the configured bounds for client display
			if tt.startAt != nil && (winErr.StartAt == nil || !winErr.StartAt.Equal(*tt.startAt)) {
				t.Errorf("StartAt not echoed: %v", winErr.StartAt)
			}
			if tt.lastStartAt != nil && (winErr.LastStartAt == nil || !winErr.LastStartAt.Equal(*tt.lastStartAt)) {
				t.Errorf("LastStartAt not echoed: %v", winErr.LastStartAt)
			}
		})
	}
}

func TestAttemptService_Start_WindowDoesNotBlockExistingAttempt(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Window closes, then the student reconnects
	closedAt := now.Add(-time.Minute)
	repo.tests.tests["t1"].LastStartAt = &closedAt

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start after window close should return the existing attempt, got %v", err)
	}
}

func TestAttemptService_Start_Errors(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "missing", "student-1"); !errors.Is(err, ErrTestNotFound) {
		t.Errorf("expected ErrTestNotFound, got %v", err)
	}

	// Student from another institution cannot start
	seedUser(repo, "student-2", models.RoleStudent, "other")
	_, err := svc.Start(ctx, "t1", "student-2")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Errorf("expected PermissionError, got %v", err)
	}
}

func TestAttemptService_Patch(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	savedAt := now.Add(5 * time.Minute)
	svc.now = func() time.Time { return savedAt }

	idx := float64(1)
	resp, err := svc.Patch(ctx, "t1", "student-1", &PatchAttemptRequest{
		Answers:           []byte(`[{"question_id":"q1","answer":"B"}]`),
		QuestionStatus:    []byte(`{"q1":"answered"}`),
		LastQuestionIndex: &idx,
	})
	if err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	answers := resp.AnswerList()
	if len(answers) != 1 || answers[0].Answer != "B" {
		t.Errorf("answers not saved: %+v", answers)
	}
	if resp.LastQuestionIndex != 1 {
		t.Errorf("LastQuestionIndex = %d, want 1", resp.LastQuestionIndex)
	}
	if resp.LastSavedAt == nil || !resp.LastSavedAt.Equal(savedAt) {
		t.Errorf("LastSavedAt = %v, want %v", resp.LastSavedAt, savedAt)
	}

	// Absent fields keep their last saved value
	resp, err = svc.Patch(ctx, "t1", "student-1", &PatchAttemptRequest{
		QuestionStatus: []byte(`{"q1":"answered","q2":"marked"}`),
	})
	if err != nil {
		t.Fatalf("second Patch failed: %v", err)
	}
	if answers := resp.AnswerList(); len(answers) != 1 {
		t.Errorf("answers lost on partial patch: %+v", answers)
	}
}

func TestAttemptService_Patch_InvalidShapes(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	tests := []struct {
		name string
		req  *PatchAttemptRequest
	}{
		{"answers not a list", &PatchAttemptRequest{Answers: []byte(`{"q1":"B"}`)}},
		{"question status not an object", &PatchAttemptRequest{QuestionStatus: []byte(`["q1"]`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Patch(ctx, "t1", "student-1", tt.req)
			var ruleErr *BusinessRuleError
			if !errors.As(err, &ruleErr) {
				t.Errorf("expected BusinessRuleError, got %v", err)
			}
		})
	}
}

func TestAttemptService_SubmitAndReview(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, publisher := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	submittedAt := now.Add(42*time.Minute + 30*time.Second)
	svc.now = func() time.Time { return submittedAt }

	result, err := svc.Submit(ctx, "t1", "student-1", &SubmitAttemptRequest{
		Answers: []models.AttemptAnswer{
			{QuestionID: "q1", Answer: "B"},
			{QuestionID: "q2", Answer: "9.99"},
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if result.Score != 1 || result.Total != 2 {
		t.Errorf("score = %d/%d, want 1/2", result.Score, result.Total)
	}
	if result.Percentage != 50 {
		t.Errorf("Percentage = %d, want 50", result.Percentage)
	}
	if result.DurationSeconds != 42*60+30 {
		t.Errorf("DurationSeconds = %d, want %d", result.DurationSeconds, 42*60+30)
	}
	if result.SubmittedAt == nil || !result.SubmittedAt.Equal(submittedAt) {
		t.Errorf("SubmittedAt = %v, want %v", result.SubmittedAt, submittedAt)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 || published[0].Type != events.EventAttemptSubmitted {
		t.Errorf("expected one attempt.submitted event, got %+v", published)
	}

	// Second submit conflicts
	_, err = svc.Submit(ctx, "t1", "student-1", &SubmitAttemptRequest{})
	if !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("expected ErrAttemptAlreadySubmitted, got %v", err)
	}

	// Autosave after submit conflicts
	_, err = svc.Patch(ctx, "t1", "student-1", &PatchAttemptRequest{Answers: []byte(`[]`)})
	if !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("Patch after submit: expected ErrAttemptAlreadySubmitted, got %v", err)
	}

	// Restarting a submitted attempt conflicts
	_, err = svc.Start(ctx, "t1", "student-1")
	if !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("Start after submit: expected ErrAttemptAlreadySubmitted, got %v", err)
	}

	// Review returns the frozen outcome
	review, err := svc.Review(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if review.Score != result.Score || review.Total != result.Total || review.Percentage != result.Percentage {
		t.Errorf("Review diverges from Submit: %+v vs %+v", review, result)
	}
	if len(review.Results) != 2 {
		t.Errorf("Review results count = %d, want 2", len(review.Results))
	}
}

func TestAttemptService_Submit_LateIsAccepted(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Well past the 90 minute deadline
	svc.now = func() time.Time { return now.Add(3 * time.Hour) }

	result, err := svc.Submit(ctx, "t1", "student-1", &SubmitAttemptRequest{
		Answers: []models.AttemptAnswer{{QuestionID: "q1", Answer: "B"}},
	})
	if err != nil {
		t.Fatalf("late Submit should be accepted, got %v", err)
	}
	if result.Score != 1 {
		t.Errorf("Score = %d, want 1", result.Score)
	}
}

func TestAttemptService_Review_RequiresSubmission(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, _, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.Review(ctx, "t1", "student-1"); !errors.Is(err, ErrAttemptNotSubmitted) {
		t.Errorf("expected ErrAttemptNotSubmitted, got %v", err)
	}
}

func TestAttemptService_Get_BackfillsDeadline(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	// Row predating the deadline column: started but no end_at
	startedAt := now.Add(-10 * time.Minute)
	repo.attempts.attempts[attemptKey("t1", "student-1")] = &models.TestAttempt{
		ID:        7,
		TestID:    "t1",
		StudentID: "student-1",
		Status:    models.AttemptInProgress,
		StartedAt: &startedAt,
	}

	resp, err := svc.Get(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	wantEnd := startedAt.Add(90 * time.Minute)
	if resp.EndAt == nil || !resp.EndAt.Equal(wantEnd) {
		t.Errorf("EndAt = %v, want backfilled %v", resp.EndAt, wantEnd)
	}

	// The backfill was persisted
	stored := repo.attempts.attempts[attemptKey("t1", "student-1")]
	if stored.EndAt == nil || !stored.EndAt.Equal(wantEnd) {
		t.Errorf("backfill not persisted: %v", stored.EndAt)
	}
}

func TestAttemptService_TimeRemainingClampedAtZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	startedAt := now.Add(-2 * time.Hour)
	endAt := startedAt.Add(90 * time.Minute)
	repo.attempts.attempts[attemptKey("t1", "student-1")] = &models.TestAttempt{
		ID:        3,
		TestID:    "t1",
		StudentID: "student-1",
		Status:    models.AttemptInProgress,
		StartedAt: &startedAt,
		EndAt:     &endAt,
	}

	resp, err := svc.Get(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.TimeRemaining == nil || *resp.TimeRemaining != 0 {
		t.Errorf("TimeRemaining = %v, want 0", resp.TimeRemaining)
	}
}

func TestAttemptService_ListingsNewestStartFirst(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	seedUser(repo, "student-2", models.RoleStudent, "acme")
	repo.tests.tests["t2"] = &models.Test{
		ID:          "t2",
		Name:        "Weekly Mock 5",
		Institution: "acme",
		CreatedBy:   "staff-1",
		QuestionIDs: []byte(`["q1"]`),
		Duration:    60,
		IsPublic:    true,
	}

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start t1 failed: %v", err)
	}
	svc.now = func() time.Time { return now.Add(30 * time.Minute) }
	if _, err := svc.Start(ctx, "t2", "student-1"); err != nil {
		t.Fatalf("Start t2 failed: %v", err)
	}
	svc.now = func() time.Time { return now.Add(45 * time.Minute) }
	if _, err := svc.Start(ctx, "t1", "student-2"); err != nil {
		t.Fatalf("Start t1 as student-2 failed: %v", err)
	}

	mine, err := svc.GetByStudent(ctx, "student-1", repositories.AttemptFilters{})
	if err != nil {
		t.Fatalf("GetByStudent failed: %v", err)
	}
	if len(mine.Attempts) != 2 {
		t.Fatalf("attempt count = %d, want 2", len(mine.Attempts))
	}
	if mine.Attempts[0].TestID != "t2" || mine.Attempts[1].TestID != "t1" {
		t.Errorf("order = [%s %s], want [t2 t1]", mine.Attempts[0].TestID, mine.Attempts[1].TestID)
	}

	roster, err := svc.GetByTest(ctx, "t1", "staff-1", repositories.AttemptFilters{})
	if err != nil {
		t.Fatalf("GetByTest failed: %v", err)
	}
	if len(roster.Attempts) != 2 {
		t.Fatalf("roster count = %d, want 2", len(roster.Attempts))
	}
	if roster.Attempts[0].StudentID != "student-2" || roster.Attempts[1].StudentID != "student-1" {
		t.Errorf("roster order = [%s %s], want [student-2 student-1]",
			roster.Attempts[0].StudentID, roster.Attempts[1].StudentID)
	}
}

func TestAttemptService_ReviewByID_Authorization(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	seedUser(repo, "staff-2", models.RoleStaff, "acme")
	seedUser(repo, "admin-1", models.RoleAdmin, "acme")

	started, err := svc.Start(ctx, "t1", "student-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for _, uid := range []string{"student-1", "staff-1", "admin-1"} {
		review, err := svc.ReviewByID(ctx, started.ID, uid)
		if err != nil {
			t.Fatalf("ReviewByID as %s failed: %v", uid, err)
		}
		if review.Attempt.ID != started.ID {
			t.Errorf("Attempt.ID = %d, want %d", review.Attempt.ID, started.ID)
		}
		if review.Test == nil || review.Test.ID != "t1" {
			t.Error("expected parent test in review")
		}
	}

	var permErr *PermissionError
	if _, err := svc.ReviewByID(ctx, started.ID, "staff-2"); !errors.As(err, &permErr) {
		t.Errorf("ReviewByID as unrelated staff = %v, want PermissionError", err)
	}

	if _, err := svc.ReviewByID(ctx, 999, "student-1"); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("ReviewByID unknown id = %v, want ErrAttemptNotFound", err)
	}
}

func TestAttemptService_GetByTest_OwnerOnly(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc, repo, _ := newAttemptFixture(t, now)
	ctx := context.Background()

	seedUser(repo, "staff-2", models.RoleStaff, "acme")
	seedUser(repo, "admin-1", models.RoleAdmin, "acme")

	if _, err := svc.Start(ctx, "t1", "student-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.GetByTest(ctx, "t1", "staff-2", repositories.AttemptFilters{}); err == nil {
		t.Error("non-owner staff should be denied")
	}

	for _, uid := range []string{"staff-1", "admin-1"} {
		resp, err := svc.GetByTest(ctx, "t1", uid, repositories.AttemptFilters{})
		if err != nil {
			t.Fatalf("GetByTest as %s failed: %v", uid, err)
		}
		if resp.Total != 1 {
			t.Errorf("Total = %d, want 1", resp.Total)
		}
	}
}

func TestElapsedSeconds(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	started := base.Add(-90 * time.Second)

	tests := []struct {
		name      string
		startedAt *time.Time
		submitted time.Time
		want      int
	}{
		{"normal", &started, base, 90},
		{"no recorded start", nil, base, 0},
		{"clock skew clamps to zero", &base, base.Add(-time.Minute), 0},
		{"sub-second truncates", &started, base.Add(900 * time.Millisecond), 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := elapsedSeconds(tt.startedAt, tt.submitted); got != tt.want {
				t.Errorf("elapsedSeconds = %d, want %d", got, tt.want)
			}
		})
	}
}
