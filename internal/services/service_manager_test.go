package services

import (
	"context"
	"testing"

	"github.com/princegupta0106/coaching-api/internal/events"
	"github.com/princegupta0106/coaching-api/internal/validator"
)

func TestServiceManager_Lifecycle(t *testing.T) {
	repo := newFakeRepository()
	sm := NewDefaultServiceManager(nil, repo, testLogger(), validator.New(), events.NewNoopEventPublisher())
	ctx := context.Background()

	if err := sm.HealthCheck(ctx); err == nil {
		t.Error("health check should fail before Initialize")
	}

	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// Idempotent
	if err := sm.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}

	if sm.Test() == nil || sm.Attempt() == nil || sm.Grading() == nil ||
		sm.Catalog() == nil || sm.Import() == nil || sm.User() == nil {
		t.Error("a service getter returned nil after Initialize")
	}

	if err := sm.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}

	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := sm.HealthCheck(ctx); err == nil {
		t.Error("health check should fail after Shutdown")
	}
	// Idempotent
	if err := sm.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
}

func TestServiceManager_GettersPanicBeforeInitialize(t *testing.T) {
	repo := newFakeRepository()
	sm := NewDefaultServiceManager(nil, repo, testLogger(), validator.New(), events.NewNoopEventPublisher())

	defer func() {
		if recover() == nil {
			t.Error("expected panic from getter before Initialize")
		}
	}()
	sm.Test()
}
