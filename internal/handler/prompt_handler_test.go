package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/vitalog/internal/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*API, func()) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := gdb.AutoMigrate(&db.User{}, &db.MetricEntry{}, &db.FoodLog{}, &db.MacroTarget{}, &db.Prompt{}, &db.PromptRule{}, &db.PromptDelivery{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	db.DB = gdb

	return NewAPI(db.DB), func() {
		sqlDB, err := db.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}

func postJSON(t *testing.T, api func(*gin.Context), path string, payload any, params gin.Params) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params

	api(c)
	return w
}

func TestCreatePromptSuccess(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	payload := map[string]any{
		"key":              "morning-checkin",
		"category":         "reminder",
		"message_template": "早上好 {{firstName}}",
		"channel":          "in_app",
		"active":           true,
	}

	w := postJSON(t, api.CreatePrompt, "/api/prompts", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var count int64
	db.DB.Model(&db.Prompt{}).Where("key = ?", "morning-checkin").Count(&count)
	if count != 1 {
		t.Fatalf("expected prompt to be persisted, found %d records", count)
	}
}

func TestCreatePromptRejectsUnknownChannel(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	payload := map[string]any{
		"key":              "bad-channel",
		"category":         "reminder",
		"message_template": "hello",
		"channel":          "pigeon",
		"active":           true,
	}

	w := postJSON(t, api.CreatePrompt, "/api/prompts", payload, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestDeletePromptBlockedWhileReferenced(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	prompt := db.Prompt{Key: "referenced", Category: db.PromptCategoryReminder, MessageTemplate: "hi", Channel: db.ChannelInApp, Active: true}
	if err := db.DB.Create(&prompt).Error; err != nil {
		t.Fatalf("failed to seed prompt: %v", err)
	}
	rule := db.PromptRule{Key: "referenced-rule", PromptID: prompt.ID, TriggerType: db.TriggerMissed, ConditionsJSON: []byte(`{"inactiveDays":3}`), Active: true}
	if err := db.DB.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/prompts/"+strconv.Itoa(int(prompt.ID)), nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(prompt.ID))}}

	api.DeletePrompt(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
}

func TestCreateRuleRejectsMalformedSchedule(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	prompt := db.Prompt{Key: "sched", Category: db.PromptCategoryReminder, MessageTemplate: "hi", Channel: db.ChannelInApp, Active: true}
	if err := db.DB.Create(&prompt).Error; err != nil {
		t.Fatalf("failed to seed prompt: %v", err)
	}

	payload := map[string]any{
		"key":          "bad-hour",
		"prompt_id":    prompt.ID,
		"trigger_type": "schedule",
		"schedule":     map[string]any{"hour": 25},
		"active":       true,
	}

	w := postJSON(t, api.CreateRule, "/api/rules", payload, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestCreateMetricEntryFiresEventPrompt(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	user := db.User{Name: "李雷", Email: "lilei@example.com", Password: "hashed", Status: db.UserStatusActive}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	prompt := db.Prompt{Key: "glucose-high", Category: db.PromptCategoryIntervention, MessageTemplate: "血糖 {{glucose.latest}}", Channel: db.ChannelInApp, Active: true}
	if err := db.DB.Create(&prompt).Error; err != nil {
		t.Fatalf("failed to seed prompt: %v", err)
	}
	rule := db.PromptRule{
		Key:            "glucose-high-rule",
		PromptID:       prompt.ID,
		TriggerType:    db.TriggerEvent,
		ConditionsJSON: []byte(`{"metricType":"glucose","operator":"gte","value":110}`),
		Active:         true,
	}
	if err := db.DB.Create(&rule).Error; err != nil {
		t.Fatalf("failed to seed rule: %v", err)
	}

	payload := map[string]any{"metric_type": "glucose", "value": 142}
	params := gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(user.ID))}}

	w := postJSON(t, api.CreateMetricEntry, "/api/users/1/metrics", payload, params)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entry struct {
			MetricType string `json:"metric_type"`
			Backfilled bool   `json:"backfilled"`
		} `json:"entry"`
		Deliveries []struct {
			Success   bool   `json:"success"`
			PromptKey string `json:"prompt_key"`
			Message   string `json:"message"`
		} `json:"deliveries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Entry.MetricType != db.MetricGlucose {
		t.Fatalf("expected glucose entry, got %q", resp.Entry.MetricType)
	}
	if resp.Entry.Backfilled {
		t.Fatalf("fresh entry should not be flagged as backfilled")
	}
	if len(resp.Deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(resp.Deliveries))
	}
	if !resp.Deliveries[0].Success || resp.Deliveries[0].PromptKey != "glucose-high" {
		t.Fatalf("unexpected delivery: %+v", resp.Deliveries[0])
	}
	if resp.Deliveries[0].Message != "血糖 142" {
		t.Fatalf("unexpected rendered message: %q", resp.Deliveries[0].Message)
	}

	var count int64
	db.DB.Model(&db.PromptDelivery{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 delivery row, got %d", count)
	}
}

func TestCreateMetricEntryRejectsBadValue(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	user := db.User{Name: "李雷", Email: "lilei2@example.com", Password: "hashed", Status: db.UserStatusActive}
	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	payload := map[string]any{"metric_type": "blood_pressure", "value": 120}
	params := gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(user.ID))}}

	w := postJSON(t, api.CreateMetricEntry, "/api/users/1/metrics", payload, params)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
