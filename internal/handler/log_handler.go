package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vitalog/internal/db"
	"github.com/vitalog/internal/service"
)

type metricEntryPayload struct {
	MetricType string   `json:"metric_type"`
	Value      *float64 `json:"value"`
	Systolic   *float64 `json:"systolic"`
	Diastolic  *float64 `json:"diastolic"`
	RecordedAt string   `json:"recorded_at"` // RFC3339，可选
}

type foodLogPayload struct {
	Description string `json:"description"`
	Calories    int    `json:"calories"`
	Protein     int    `json:"protein"`
	Carbs       int    `json:"carbs"`
	LoggedAt    string `json:"logged_at"` // RFC3339，可选
}

// CreateMetricEntry 记录一次健康读数并立即做事件型增量评估。
// 响应里带上本次触发的投递结果，前端可以即时展示应用内提醒。
func (a *API) CreateMetricEntry(c *gin.Context) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	var payload metricEntryPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	recordedAt, ok := parseOptionalTime(payload.RecordedAt)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的记录时间")
		return
	}

	entry, err := a.logs.CreateMetricEntry(service.MetricEntryInput{
		UserID:     userID,
		MetricType: payload.MetricType,
		Value:      payload.Value,
		Systolic:   payload.Systolic,
		Diastolic:  payload.Diastolic,
		RecordedAt: recordedAt,
	})
	if err != nil {
		handleLogError(c, err)
		return
	}

	fired, err := a.engine.OnMetricLogged(userID, entry.MetricType, *entry)
	if err != nil {
		// 读数已落库，评估失败不应让请求整体失败
		if !errors.Is(err, service.ErrUserNotFound) {
			respondError(c, http.StatusInternalServerError, "触发评估失败")
			return
		}
		fired = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"entry":      serializeMetricEntry(*entry),
		"deliveries": serializeResults(fired),
	})
}

// CreateFoodLog 记录一条饮食日志
func (a *API) CreateFoodLog(c *gin.Context) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	var payload foodLogPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	loggedAt, ok := parseOptionalTime(payload.LoggedAt)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的记录时间")
		return
	}

	entry, err := a.logs.CreateFoodLog(service.FoodLogInput{
		UserID:      userID,
		LoggedAt:    loggedAt,
		Description: payload.Description,
		Calories:    payload.Calories,
		Protein:     payload.Protein,
		Carbs:       payload.Carbs,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存饮食日志失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"food_log": gin.H{
		"id":          entry.ID,
		"logged_at":   entry.LoggedAt.Format(time.RFC3339),
		"description": entry.Description,
		"calories":    entry.Calories,
		"protein":     entry.Protein,
		"carbs":       entry.Carbs,
	}})
}

func serializeMetricEntry(entry db.MetricEntry) gin.H {
	return gin.H{
		"id":          entry.ID,
		"user_id":     entry.UserID,
		"metric_type": entry.MetricType,
		"value":       entry.ValueJSON,
		"recorded_at": entry.RecordedAt.Format(time.RFC3339),
		"backfilled":  entry.Backfilled(),
	}
}

func parseOptionalTime(value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func handleLogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidMetricType),
		errors.Is(err, service.ErrInvalidMetricValue):
		respondError(c, http.StatusBadRequest, "读数格式不合法")
	default:
		respondError(c, http.StatusInternalServerError, "保存读数失败")
	}
}
