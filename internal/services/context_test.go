package services_test

import (
	"context"
	"testing"

	"reelforge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProjectID(ctx, "p-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ProjectIDFromContext(ctx); !ok || id != "p-1" {
		t.Fatalf("unexpected project id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithProjectID(context.Background(), "")
	if _, ok := services.ProjectIDFromContext(ctx); ok {
		t.Fatal("expected blank project id to be ignored")
	}
}
