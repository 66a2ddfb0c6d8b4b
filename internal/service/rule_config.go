package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vitalog/internal/db"
	"gorm.io/datatypes"
)

// 比较运算符，未知运算符在评估时永不匹配
const (
	OpGreaterThan  = "gt"
	OpGreaterEqual = "gte"
	OpLessThan     = "lt"
	OpLessEqual    = "lte"
	OpEqual        = "eq"
)

// defaultInactiveDays 是 missed 规则未指定 inactiveDays 时的默认阈值
const defaultInactiveDays = 3

var (
	// ErrRulePayloadInvalid 在规则载荷无法解析或字段越界时返回
	ErrRulePayloadInvalid = errors.New("invalid rule payload")
	// ErrRuleTriggerUnknown 在触发类型不受支持时返回
	ErrRuleTriggerUnknown = errors.New("unknown trigger type")
)

// ScheduleSpec 描述 schedule 规则的墙钟条件
// 为 nil 的字段是通配符，总是匹配；DayOfWeek 以 0 表示周日
type ScheduleSpec struct {
	Hour       *int `json:"hour"`
	DayOfWeek  *int `json:"dayOfWeek"`
	DayOfMonth *int `json:"dayOfMonth"`
}

// EventCondition 描述 event 规则的指标条件
// ConsecutiveDays 存在时走连续天数判断，否则退化为单值比较
type EventCondition struct {
	MetricType      string   `json:"metricType"`
	Operator        string   `json:"operator"`
	Value           *float64 `json:"value"`
	DiastolicValue  *float64 `json:"diastolicValue"`
	ConsecutiveDays *int     `json:"consecutiveDays"`
}

// MissedCondition 描述 missed 规则的缺勤阈值
type MissedCondition struct {
	InactiveDays int
}

type missedPayload struct {
	InactiveDays *int `json:"inactiveDays"`
}

// ParseScheduleSpec 解析 ScheduleJSON，空载荷等价于全通配
func ParseScheduleSpec(raw datatypes.JSON) (*ScheduleSpec, error) {
	spec := &ScheduleSpec{}
	if len(raw) == 0 {
		return spec, nil
	}
	if err := json.Unmarshal(raw, spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulePayloadInvalid, err)
	}

	if spec.Hour != nil && (*spec.Hour < 0 || *spec.Hour > 23) {
		return nil, fmt.Errorf("%w: hour out of range", ErrRulePayloadInvalid)
	}
	if spec.DayOfWeek != nil && (*spec.DayOfWeek < 0 || *spec.DayOfWeek > 6) {
		return nil, fmt.Errorf("%w: dayOfWeek out of range", ErrRulePayloadInvalid)
	}
	if spec.DayOfMonth != nil && (*spec.DayOfMonth < 1 || *spec.DayOfMonth > 31) {
		return nil, fmt.Errorf("%w: dayOfMonth out of range", ErrRulePayloadInvalid)
	}

	return spec, nil
}

// ParseEventCondition 解析 ConditionsJSON 中的事件条件
func ParseEventCondition(raw datatypes.JSON) (*EventCondition, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: event condition is empty", ErrRulePayloadInvalid)
	}

	cond := &EventCondition{}
	if err := json.Unmarshal(raw, cond); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulePayloadInvalid, err)
	}

	if cond.MetricType == "" {
		return nil, fmt.Errorf("%w: metricType is required", ErrRulePayloadInvalid)
	}

	return cond, nil
}

// ParseMissedCondition 解析缺勤条件，未指定 inactiveDays 时默认 3 天
func ParseMissedCondition(raw datatypes.JSON) (*MissedCondition, error) {
	cond := &MissedCondition{InactiveDays: defaultInactiveDays}
	if len(raw) == 0 {
		return cond, nil
	}

	var payload missedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRulePayloadInvalid, err)
	}

	if payload.InactiveDays != nil {
		if *payload.InactiveDays < 0 {
			return nil, fmt.Errorf("%w: inactiveDays must be >= 0", ErrRulePayloadInvalid)
		}
		cond.InactiveDays = *payload.InactiveDays
	}

	return cond, nil
}

// ValidateRulePayload 在规则保存时做一次性校验，避免评估路径上反复防御
func ValidateRulePayload(triggerType string, scheduleJSON, conditionsJSON datatypes.JSON) error {
	switch triggerType {
	case db.TriggerSchedule:
		_, err := ParseScheduleSpec(scheduleJSON)
		return err
	case db.TriggerEvent:
		cond, err := ParseEventCondition(conditionsJSON)
		if err != nil {
			return err
		}
		if !knownMetricType(cond.MetricType) {
			return fmt.Errorf("%w: unknown metricType %q", ErrRulePayloadInvalid, cond.MetricType)
		}
		if cond.Operator != "" && !knownOperator(cond.Operator) {
			return fmt.Errorf("%w: unknown operator %q", ErrRulePayloadInvalid, cond.Operator)
		}
		return nil
	case db.TriggerMissed:
		_, err := ParseMissedCondition(conditionsJSON)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrRuleTriggerUnknown, triggerType)
	}
}

func knownMetricType(metricType string) bool {
	switch metricType {
	case db.MetricGlucose, db.MetricBloodPressure, db.MetricWeight, db.MetricKetones:
		return true
	}
	return false
}

func knownOperator(op string) bool {
	switch op {
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpEqual:
		return true
	}
	return false
}
