package service

import (
	"log"
	"time"

	"github.com/vitalog/internal/db"
)

// ruleMatches 判断一条规则在给定快照与当前时间下是否命中。
// 纯逻辑，不访问数据库；任何解析失败都按不命中处理（fail closed）。
func ruleMatches(rule db.PromptRule, ctx *UserContext, now time.Time) bool {
	switch rule.TriggerType {
	case db.TriggerSchedule:
		spec, err := ParseScheduleSpec(rule.ScheduleJSON)
		if err != nil {
			log.Printf("[PromptEngine] rule %s: bad schedule payload: %v", rule.Key, err)
			return false
		}
		return matchSchedule(spec, now)
	case db.TriggerMissed:
		cond, err := ParseMissedCondition(rule.ConditionsJSON)
		if err != nil {
			log.Printf("[PromptEngine] rule %s: bad missed payload: %v", rule.Key, err)
			return false
		}
		return matchMissed(cond, ctx)
	case db.TriggerEvent:
		cond, err := ParseEventCondition(rule.ConditionsJSON)
		if err != nil {
			log.Printf("[PromptEngine] rule %s: bad event payload: %v", rule.Key, err)
			return false
		}
		return matchEvent(cond, ctx)
	default:
		return false
	}
}

// matchSchedule 对所有已指定的时间字段做 AND 匹配，缺省字段视为通配
func matchSchedule(spec *ScheduleSpec, now time.Time) bool {
	if spec.Hour != nil && now.Hour() != *spec.Hour {
		return false
	}
	if spec.DayOfWeek != nil && int(now.Weekday()) != *spec.DayOfWeek {
		return false
	}
	if spec.DayOfMonth != nil && now.Day() != *spec.DayOfMonth {
		return false
	}
	return true
}

// matchMissed 在用户缺勤天数达到阈值时命中。
// 从未有任何记录的用户（DaysSinceLastLog 为 nil）永不命中——没有数据不等于缺勤。
func matchMissed(cond *MissedCondition, ctx *UserContext) bool {
	if ctx.DaysSinceLastLog == nil {
		return false
	}
	return *ctx.DaysSinceLastLog >= cond.InactiveDays
}

// matchEvent 按指标类型分派事件条件
func matchEvent(cond *EventCondition, ctx *UserContext) bool {
	switch cond.MetricType {
	case db.MetricGlucose:
		if cond.ConsecutiveDays != nil && *cond.ConsecutiveDays >= 2 {
			return ctx.Metrics.Glucose.HighDays >= *cond.ConsecutiveDays
		}
		return compareScalar(cond, ctx.Metrics.Glucose.Latest)
	case db.MetricBloodPressure:
		if cond.ConsecutiveDays != nil && *cond.ConsecutiveDays >= 2 {
			return ctx.Metrics.BloodPressure.ElevatedDays >= *cond.ConsecutiveDays
		}
		return compareBloodPressure(cond, ctx.Metrics.BloodPressure.Latest)
	case db.MetricWeight:
		return compareScalar(cond, ctx.Metrics.Weight.Latest)
	case db.MetricKetones:
		return compareScalar(cond, ctx.Metrics.Ketones.Latest)
	default:
		return false
	}
}

func compareScalar(cond *EventCondition, latest *float64) bool {
	if latest == nil || cond.Value == nil {
		return false
	}
	return compareValues(cond.Operator, *latest, *cond.Value)
}

// compareBloodPressure 同时提供收缩压与舒张压阈值时，任一超标即命中（OR 语义）
func compareBloodPressure(cond *EventCondition, latest *BPReading) bool {
	if latest == nil {
		return false
	}

	matched := false
	checked := false

	if cond.Value != nil {
		checked = true
		matched = compareValues(cond.Operator, latest.Systolic, *cond.Value)
	}
	if !matched && cond.DiastolicValue != nil {
		checked = true
		matched = compareValues(cond.Operator, latest.Diastolic, *cond.DiastolicValue)
	}

	return checked && matched
}

// compareValues 通用比较器，未识别的运算符永不匹配
func compareValues(op string, actual, threshold float64) bool {
	switch op {
	case OpGreaterThan:
		return actual > threshold
	case OpGreaterEqual:
		return actual >= threshold
	case OpLessThan:
		return actual < threshold
	case OpLessEqual:
		return actual <= threshold
	case OpEqual:
		return actual == threshold
	default:
		return false
	}
}
