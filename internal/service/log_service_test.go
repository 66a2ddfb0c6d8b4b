package service

import (
	"errors"
	"testing"
	"time"

	"github.com/vitalog/internal/db"
)

func TestLogServiceCreateMetricEntry(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "测量", "metric@example.com")
	svc := NewLogService(db.DB)

	value := 112.0
	entry, err := svc.CreateMetricEntry(MetricEntryInput{
		UserID:     user.ID,
		MetricType: db.MetricGlucose,
		Value:      &value,
	})
	if err != nil {
		t.Fatalf("CreateMetricEntry returned error: %v", err)
	}
	if entry.ID == 0 {
		t.Fatal("expected entry to have ID")
	}
	if entry.RecordedAt.IsZero() {
		t.Fatal("expected RecordedAt default")
	}
	if entry.Backfilled() {
		t.Fatal("entry recorded now must not be flagged as backfilled")
	}

	sys, dia := 128.0, 84.0
	bp, err := svc.CreateMetricEntry(MetricEntryInput{
		UserID:     user.ID,
		MetricType: db.MetricBloodPressure,
		Systolic:   &sys,
		Diastolic:  &dia,
	})
	if err != nil {
		t.Fatalf("CreateMetricEntry(bp) returned error: %v", err)
	}
	if string(bp.ValueJSON) != `{"systolic":128,"diastolic":84}` {
		t.Fatalf("unexpected bp payload: %s", bp.ValueJSON)
	}
}

func TestLogServiceRejectsInvalidInput(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "非法", "invalid@example.com")
	svc := NewLogService(db.DB)

	if _, err := svc.CreateMetricEntry(MetricEntryInput{
		UserID:     user.ID,
		MetricType: "heart_rate",
	}); !errors.Is(err, ErrInvalidMetricType) {
		t.Fatalf("expected ErrInvalidMetricType, got %v", err)
	}

	if _, err := svc.CreateMetricEntry(MetricEntryInput{
		UserID:     user.ID,
		MetricType: db.MetricGlucose,
	}); !errors.Is(err, ErrInvalidMetricValue) {
		t.Fatalf("expected ErrInvalidMetricValue for missing value, got %v", err)
	}

	sys := 120.0
	if _, err := svc.CreateMetricEntry(MetricEntryInput{
		UserID:     user.ID,
		MetricType: db.MetricBloodPressure,
		Systolic:   &sys,
	}); !errors.Is(err, ErrInvalidMetricValue) {
		t.Fatalf("expected ErrInvalidMetricValue for missing diastolic, got %v", err)
	}
}

func TestLogServiceBackfilledEntry(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "历史", "history@example.com")
	svc := NewLogService(db.DB)

	value := 95.0
	recordedAt := time.Now().Add(-26 * time.Hour)
	entry, err := svc.CreateMetricEntry(MetricEntryInput{
		UserID:     user.ID,
		MetricType: db.MetricGlucose,
		Value:      &value,
		RecordedAt: &recordedAt,
	})
	if err != nil {
		t.Fatalf("CreateMetricEntry returned error: %v", err)
	}

	if !entry.Backfilled() {
		t.Fatal("entry recorded 26h before creation must be flagged as backfilled")
	}
}

func TestLogServiceCreateFoodLog(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "饮食", "food@example.com")
	svc := NewLogService(db.DB)

	entry, err := svc.CreateFoodLog(FoodLogInput{
		UserID:      user.ID,
		Description: " 鸡胸肉沙拉 ",
		Calories:    420,
		Protein:     38,
		Carbs:       12,
	})
	if err != nil {
		t.Fatalf("CreateFoodLog returned error: %v", err)
	}

	if entry.Description != "鸡胸肉沙拉" {
		t.Fatalf("expected trimmed description, got %q", entry.Description)
	}
	if entry.LoggedAt.IsZero() {
		t.Fatal("expected LoggedAt default")
	}
}
