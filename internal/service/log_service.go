package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vitalog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrInvalidMetricType 在指标类型不受支持时返回
	ErrInvalidMetricType = errors.New("invalid metric type")
	// ErrInvalidMetricValue 在载荷与指标类型不匹配时返回
	ErrInvalidMetricValue = errors.New("invalid metric value")
)

// LogService 负责健康读数与饮食日志的写入
type LogService struct {
	db *gorm.DB
}

// NewLogService 构造 LogService
func NewLogService(gdb *gorm.DB) *LogService {
	return &LogService{db: gdb}
}

// MetricEntryInput 定义记录一次读数的输入对象
// 标量指标填 Value，血压填 Systolic/Diastolic；RecordedAt 为空时取当前时间
type MetricEntryInput struct {
	UserID     uint
	MetricType string
	Value      *float64
	Systolic   *float64
	Diastolic  *float64
	RecordedAt *time.Time
}

// FoodLogInput 定义记录一条饮食日志的输入对象
type FoodLogInput struct {
	UserID      uint
	LoggedAt    *time.Time
	Description string
	Calories    int
	Protein     int
	Carbs       int
}

// CreateMetricEntry 校验并写入一次健康读数
func (s *LogService) CreateMetricEntry(input MetricEntryInput) (*db.MetricEntry, error) {
	payload, err := metricPayload(input)
	if err != nil {
		return nil, err
	}

	recordedAt := time.Now()
	if input.RecordedAt != nil {
		recordedAt = *input.RecordedAt
	}

	entry := db.MetricEntry{
		UserID:     input.UserID,
		MetricType: input.MetricType,
		ValueJSON:  payload,
		RecordedAt: recordedAt,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create metric entry: %w", err)
	}
	return &entry, nil
}

// CreateFoodLog 写入一条饮食日志
func (s *LogService) CreateFoodLog(input FoodLogInput) (*db.FoodLog, error) {
	loggedAt := time.Now()
	if input.LoggedAt != nil {
		loggedAt = *input.LoggedAt
	}

	entry := db.FoodLog{
		UserID:      input.UserID,
		LoggedAt:    loggedAt,
		Description: strings.TrimSpace(input.Description),
		Calories:    input.Calories,
		Protein:     input.Protein,
		Carbs:       input.Carbs,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("create food log: %w", err)
	}
	return &entry, nil
}

// metricPayload 按指标类型组装多态 JSON 载荷
func metricPayload(input MetricEntryInput) ([]byte, error) {
	switch input.MetricType {
	case db.MetricGlucose, db.MetricWeight, db.MetricKetones:
		if input.Value == nil {
			return nil, fmt.Errorf("%w: value is required for %s", ErrInvalidMetricValue, input.MetricType)
		}
		return json.Marshal(scalarPayload{Value: input.Value})
	case db.MetricBloodPressure:
		if input.Systolic == nil || input.Diastolic == nil {
			return nil, fmt.Errorf("%w: systolic and diastolic are required", ErrInvalidMetricValue)
		}
		return json.Marshal(bpPayload{Systolic: input.Systolic, Diastolic: input.Diastolic})
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetricType, input.MetricType)
	}
}
