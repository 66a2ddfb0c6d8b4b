package service

import (
	"strconv"
	"testing"
	"time"

	"github.com/vitalog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(
		&db.User{},
		&db.MetricEntry{},
		&db.FoodLog{},
		&db.MacroTarget{},
		&db.Prompt{},
		&db.PromptRule{},
		&db.PromptDelivery{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func createTestUser(t *testing.T, name, email string) *db.User {
	t.Helper()
	user := db.User{Name: name, Email: email, Password: "x", Status: db.UserStatusActive}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return &user
}

func createScalarEntry(t *testing.T, userID uint, metricType string, value float64, recordedAt time.Time) *db.MetricEntry {
	t.Helper()
	entry := db.MetricEntry{
		UserID:     userID,
		MetricType: metricType,
		ValueJSON:  []byte(`{"value":` + formatTestFloat(value) + `}`),
		RecordedAt: recordedAt,
	}
	if err := db.DB.Create(&entry).Error; err != nil {
		t.Fatalf("failed to create metric entry: %v", err)
	}
	return &entry
}

func createBPEntry(t *testing.T, userID uint, systolic, diastolic float64, recordedAt time.Time) *db.MetricEntry {
	t.Helper()
	entry := db.MetricEntry{
		UserID:     userID,
		MetricType: db.MetricBloodPressure,
		ValueJSON:  []byte(`{"systolic":` + formatTestFloat(systolic) + `,"diastolic":` + formatTestFloat(diastolic) + `}`),
		RecordedAt: recordedAt,
	}
	if err := db.DB.Create(&entry).Error; err != nil {
		t.Fatalf("failed to create bp entry: %v", err)
	}
	return &entry
}

func formatTestFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
