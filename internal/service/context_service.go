package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vitalog/internal/db"
	"gorm.io/gorm"
)

// ErrUserNotFound 在指定参与者不存在时返回
var ErrUserNotFound = errors.New("user not found")

const (
	contextLookbackDays = 30
	glucoseHighValue    = 110.0
	bpElevatedSystolic  = 140.0
	bpElevatedDiastolic = 90.0
)

// BPReading 表示一次血压读数
type BPReading struct {
	Systolic  float64 `json:"systolic"`
	Diastolic float64 `json:"diastolic"`
}

// GlucoseSummary 血糖摘要：最新值、近 7 天均值、近 3 天高值天数（≥110 mg/dL）
type GlucoseSummary struct {
	Latest      *float64
	Average7Day *float64
	HighDays    int
}

// BloodPressureSummary 血压摘要：最新读数、偏高天数（收缩压≥140 或舒张压≥90）
type BloodPressureSummary struct {
	Latest       *BPReading
	ElevatedDays int
}

// WeightSummary 体重摘要：最新值及 30 天窗口内首尾差值
type WeightSummary struct {
	Latest      *float64
	Change30Day *float64
}

// KetoneSummary 血酮摘要：仅最新值
type KetoneSummary struct {
	Latest *float64
}

// MetricSummary 汇总各指标类型的统计
type MetricSummary struct {
	Glucose       GlucoseSummary
	BloodPressure BloodPressureSummary
	Weight        WeightSummary
	Ketones       KetoneSummary
}

// MacroTargetSummary 营养目标摘要，供模板个性化使用
type MacroTargetSummary struct {
	Calories int
	Protein  int
	Carbs    int
}

// UserContext 是一次评估范围内的参与者快照，从不落库
// 缺失的数据以 nil 表示，绝不作为错误抛出
type UserContext struct {
	UserID           uint
	Name             string
	Email            string
	LastLogDate      *time.Time
	DaysSinceLastLog *int
	Metrics          MetricSummary
	Target           *MacroTargetSummary
}

// UserContextService 负责把参与者近期的读数与日志聚合成 UserContext
type UserContextService struct {
	db *gorm.DB
}

// NewUserContextService 构造 UserContextService
func NewUserContextService(gdb *gorm.DB) *UserContextService {
	return &UserContextService{db: gdb}
}

// BuildContext 加载参与者及其近 30 天数据并聚合成快照。
// 只读操作，无任何副作用；参与者不存在时返回 ErrUserNotFound。
func (s *UserContextService) BuildContext(userID uint) (*UserContext, error) {
	return s.buildContext(userID, time.Now())
}

func (s *UserContextService) buildContext(userID uint, now time.Time) (*UserContext, error) {
	var user db.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	windowStart := now.AddDate(0, 0, -contextLookbackDays)

	var entries []db.MetricEntry
	if err := s.db.Where("user_id = ? AND recorded_at >= ?", userID, windowStart).
		Order("recorded_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load metric entries: %w", err)
	}

	var latestFood db.FoodLog
	foodFound := true
	if err := s.db.Where("user_id = ?", userID).
		Order("logged_at DESC").
		First(&latestFood).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load latest food log: %w", err)
		}
		foodFound = false
	}

	ctx := &UserContext{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	}

	var target db.MacroTarget
	if err := s.db.Where("user_id = ?", userID).First(&target).Error; err == nil {
		ctx.Target = &MacroTargetSummary{
			Calories: target.Calories,
			Protein:  target.Protein,
			Carbs:    target.Carbs,
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load macro target: %w", err)
	}

	ctx.Metrics = summarizeMetrics(entries, now)

	var lastLog *time.Time
	for _, entry := range entries {
		recorded := entry.RecordedAt
		if lastLog == nil || recorded.After(*lastLog) {
			lastLog = &recorded
		}
	}
	if foodFound {
		logged := latestFood.LoggedAt
		if lastLog == nil || logged.After(*lastLog) {
			lastLog = &logged
		}
	}

	if lastLog != nil {
		ctx.LastLogDate = lastLog
		days := int(now.Sub(*lastLog).Hours() / 24)
		if days < 0 {
			days = 0
		}
		ctx.DaysSinceLastLog = &days
	}

	return ctx, nil
}

// summarizeMetrics 把按时间升序排列的读数压缩为各指标摘要
func summarizeMetrics(entries []db.MetricEntry, now time.Time) MetricSummary {
	var summary MetricSummary

	sevenDayStart := now.AddDate(0, 0, -7)
	highDayThreshold := startOfDay(now).AddDate(0, 0, -2)

	var glucoseSum float64
	var glucoseCount int
	glucoseHighDays := make(map[string]struct{})
	bpElevatedDays := make(map[string]struct{})
	var firstWeight, lastWeight float64
	var weightCount int

	for _, entry := range entries {
		switch entry.MetricType {
		case db.MetricGlucose:
			value, ok := scalarValue(entry)
			if !ok {
				continue
			}
			v := value
			summary.Glucose.Latest = &v
			if !entry.RecordedAt.Before(sevenDayStart) {
				glucoseSum += value
				glucoseCount++
			}
			if value >= glucoseHighValue && !entry.RecordedAt.Before(highDayThreshold) {
				glucoseHighDays[dayKey(entry.RecordedAt)] = struct{}{}
			}
		case db.MetricBloodPressure:
			reading, ok := bpValue(entry)
			if !ok {
				continue
			}
			r := reading
			summary.BloodPressure.Latest = &r
			if reading.Systolic >= bpElevatedSystolic || reading.Diastolic >= bpElevatedDiastolic {
				bpElevatedDays[dayKey(entry.RecordedAt)] = struct{}{}
			}
		case db.MetricWeight:
			value, ok := scalarValue(entry)
			if !ok {
				continue
			}
			v := value
			if weightCount == 0 {
				firstWeight = value
			}
			lastWeight = value
			weightCount++
			summary.Weight.Latest = &v
		case db.MetricKetones:
			value, ok := scalarValue(entry)
			if !ok {
				continue
			}
			v := value
			summary.Ketones.Latest = &v
		}
	}

	if glucoseCount > 0 {
		avg := glucoseSum / float64(glucoseCount)
		summary.Glucose.Average7Day = &avg
	}
	summary.Glucose.HighDays = len(glucoseHighDays)
	summary.BloodPressure.ElevatedDays = len(bpElevatedDays)

	if weightCount >= 2 {
		change := lastWeight - firstWeight
		summary.Weight.Change30Day = &change
	}

	return summary
}

type scalarPayload struct {
	Value *float64 `json:"value"`
}

// scalarValue 解析 {"value":x} 形式的载荷，格式不符时静默跳过该读数
func scalarValue(entry db.MetricEntry) (float64, bool) {
	var payload scalarPayload
	if err := json.Unmarshal(entry.ValueJSON, &payload); err != nil || payload.Value == nil {
		return 0, false
	}
	return *payload.Value, true
}

type bpPayload struct {
	Systolic  *float64 `json:"systolic"`
	Diastolic *float64 `json:"diastolic"`
}

// bpValue 解析 {"systolic":x,"diastolic":y} 形式的载荷
func bpValue(entry db.MetricEntry) (BPReading, bool) {
	var payload bpPayload
	if err := json.Unmarshal(entry.ValueJSON, &payload); err != nil || payload.Systolic == nil || payload.Diastolic == nil {
		return BPReading{}, false
	}
	return BPReading{Systolic: *payload.Systolic, Diastolic: *payload.Diastolic}, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
