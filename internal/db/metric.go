package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MetricGlucose 血糖（mg/dL）
	MetricGlucose = "glucose"
	// MetricBloodPressure 血压（收缩压/舒张压，mmHg）
	MetricBloodPressure = "blood_pressure"
	// MetricWeight 体重（kg）
	MetricWeight = "weight"
	// MetricKetones 血酮（mmol/L）
	MetricKetones = "ketones"
)

// backfillGrace 记录时间早于创建时间超过该值即视为补录
const backfillGrace = time.Hour

// MetricEntry 记录一次健康指标读数
// ValueJSON 按指标类型存放多态载荷：标量指标为 {"value":x}，血压为 {"systolic":x,"diastolic":y}
// RecordedAt 是读数的逻辑时间，用户补录历史数据时会早于 CreatedAt
type MetricEntry struct {
	gorm.Model
	UserID     uint   `gorm:"index"`
	MetricType string `gorm:"index;not null"`
	ValueJSON  datatypes.JSON
	RecordedAt time.Time `gorm:"index"`
}

// TableName 指定自定义表名。
func (MetricEntry) TableName() string {
	return "metric_entries"
}

// Backfilled 判断该读数是否为补录：逻辑时间比入库时间早一小时以上。
// 补录数据不应触发事件型提醒，避免为旧数据推送实时通知。
func (m MetricEntry) Backfilled() bool {
	return m.CreatedAt.Sub(m.RecordedAt) > backfillGrace
}

// FoodLog 记录一条饮食日志
// 引擎只关心 LoggedAt 的新鲜度，营养字段服务于常规报表
type FoodLog struct {
	gorm.Model
	UserID      uint `gorm:"index"`
	LoggedAt    time.Time
	Description string
	Calories    int
	Protein     int
	Carbs       int
}

// TableName 指定自定义表名。
func (FoodLog) TableName() string {
	return "food_logs"
}
