package service

import (
	"testing"
	"time"

	"github.com/vitalog/internal/db"
)

func TestBuildContextUserNotFound(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	svc := NewUserContextService(db.DB)
	if _, err := svc.BuildContext(999); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestBuildContextNeverLogged(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "新用户", "new@example.com")

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	if ctx.DaysSinceLastLog != nil {
		t.Fatalf("expected nil DaysSinceLastLog, got %d", *ctx.DaysSinceLastLog)
	}
	if ctx.LastLogDate != nil {
		t.Fatal("expected nil LastLogDate for user with no entries")
	}
	if ctx.Metrics.Glucose.Latest != nil || ctx.Metrics.Weight.Latest != nil {
		t.Fatal("expected empty metric summaries")
	}
	if ctx.Target != nil {
		t.Fatal("expected nil macro target")
	}
}

func TestBuildContextGlucoseSummary(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "张伟", "zw@example.com")
	now := time.Now()

	// 近三天内：115、90、120，其中两天达到高值阈值 110
	createScalarEntry(t, user.ID, db.MetricGlucose, 115, now.AddDate(0, 0, -2))
	createScalarEntry(t, user.ID, db.MetricGlucose, 90, now.AddDate(0, 0, -1))
	createScalarEntry(t, user.ID, db.MetricGlucose, 120, now)

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	if ctx.Metrics.Glucose.Latest == nil || *ctx.Metrics.Glucose.Latest != 120 {
		t.Fatalf("unexpected latest glucose: %v", ctx.Metrics.Glucose.Latest)
	}
	if ctx.Metrics.Glucose.HighDays != 2 {
		t.Fatalf("expected 2 high days, got %d", ctx.Metrics.Glucose.HighDays)
	}

	expectedAvg := (115.0 + 90.0 + 120.0) / 3.0
	if ctx.Metrics.Glucose.Average7Day == nil || *ctx.Metrics.Glucose.Average7Day != expectedAvg {
		t.Fatalf("unexpected 7-day average: %v", ctx.Metrics.Glucose.Average7Day)
	}

	if ctx.DaysSinceLastLog == nil || *ctx.DaysSinceLastLog != 0 {
		t.Fatalf("expected DaysSinceLastLog 0, got %v", ctx.DaysSinceLastLog)
	}
}

func TestBuildContextBloodPressureSummary(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "李娜", "ln@example.com")
	now := time.Now()

	createBPEntry(t, user.ID, 145, 85, now.AddDate(0, 0, -10))
	createBPEntry(t, user.ID, 120, 95, now.AddDate(0, 0, -5))
	createBPEntry(t, user.ID, 118, 76, now)

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	latest := ctx.Metrics.BloodPressure.Latest
	if latest == nil || latest.Systolic != 118 || latest.Diastolic != 76 {
		t.Fatalf("unexpected latest bp: %+v", latest)
	}
	if ctx.Metrics.BloodPressure.ElevatedDays != 2 {
		t.Fatalf("expected 2 elevated days, got %d", ctx.Metrics.BloodPressure.ElevatedDays)
	}
}

func TestBuildContextWeightChange(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "王强", "wq@example.com")
	now := time.Now()

	createScalarEntry(t, user.ID, db.MetricWeight, 82.4, now.AddDate(0, 0, -20))
	createScalarEntry(t, user.ID, db.MetricWeight, 80.9, now.AddDate(0, 0, -1))

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	if ctx.Metrics.Weight.Latest == nil || *ctx.Metrics.Weight.Latest != 80.9 {
		t.Fatalf("unexpected latest weight: %v", ctx.Metrics.Weight.Latest)
	}
	change := ctx.Metrics.Weight.Change30Day
	if change == nil {
		t.Fatal("expected 30-day weight change")
	}
	if diff := *change - (80.9 - 82.4); diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("unexpected weight change: %f", *change)
	}
}

func TestBuildContextSingleWeightNoChange(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "单条体重", "w1@example.com")
	createScalarEntry(t, user.ID, db.MetricWeight, 75.0, time.Now())

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	if ctx.Metrics.Weight.Change30Day != nil {
		t.Fatalf("expected nil change with single reading, got %f", *ctx.Metrics.Weight.Change30Day)
	}
}

func TestBuildContextUsesFoodLogFreshness(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "陈晨", "cc@example.com")
	now := time.Now()

	createScalarEntry(t, user.ID, db.MetricGlucose, 100, now.AddDate(0, 0, -6))
	food := db.FoodLog{UserID: user.ID, LoggedAt: now.AddDate(0, 0, -2), Description: "沙拉"}
	if err := db.DB.Create(&food).Error; err != nil {
		t.Fatalf("failed to create food log: %v", err)
	}

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	// 饮食日志比读数更新，缺勤天数按饮食日志算
	if ctx.DaysSinceLastLog == nil || *ctx.DaysSinceLastLog != 2 {
		t.Fatalf("expected DaysSinceLastLog 2, got %v", ctx.DaysSinceLastLog)
	}
}

func TestBuildContextMacroTarget(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "赵敏", "zm@example.com")
	target := db.MacroTarget{UserID: user.ID, Calories: 1800, Protein: 120, Carbs: 90}
	if err := db.DB.Create(&target).Error; err != nil {
		t.Fatalf("failed to create macro target: %v", err)
	}

	svc := NewUserContextService(db.DB)
	ctx, err := svc.BuildContext(user.ID)
	if err != nil {
		t.Fatalf("BuildContext returned error: %v", err)
	}

	if ctx.Target == nil || ctx.Target.Calories != 1800 || ctx.Target.Protein != 120 || ctx.Target.Carbs != 90 {
		t.Fatalf("unexpected macro target: %+v", ctx.Target)
	}
}

func TestBuildContextIdempotent(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	user := createTestUser(t, "周期", "idem@example.com")
	now := time.Now()
	createScalarEntry(t, user.ID, db.MetricGlucose, 108, now.AddDate(0, 0, -1))
	createBPEntry(t, user.ID, 130, 82, now.AddDate(0, 0, -1))

	svc := NewUserContextService(db.DB)
	first, err := svc.buildContext(user.ID, now)
	if err != nil {
		t.Fatalf("first build returned error: %v", err)
	}
	second, err := svc.buildContext(user.ID, now)
	if err != nil {
		t.Fatalf("second build returned error: %v", err)
	}

	if *first.Metrics.Glucose.Latest != *second.Metrics.Glucose.Latest {
		t.Fatal("glucose latest differs between identical builds")
	}
	if *first.DaysSinceLastLog != *second.DaysSinceLastLog {
		t.Fatal("days since last log differs between identical builds")
	}
	if first.Metrics.BloodPressure.Latest.Systolic != second.Metrics.BloodPressure.Latest.Systolic {
		t.Fatal("bp latest differs between identical builds")
	}
}
