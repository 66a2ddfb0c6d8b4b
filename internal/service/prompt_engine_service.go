package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vitalog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrDeliveryNotFound 在指定投递记录不存在时返回
	ErrDeliveryNotFound = errors.New("delivery not found")
	// ErrDeliveryStatusInvalid 在外部回写的状态不受支持时返回
	ErrDeliveryStatusInvalid = errors.New("invalid delivery status")
)

// DeliveryResult 描述一次投递决策的结果，是引擎与外部通道的契约边界
type DeliveryResult struct {
	Success   bool   `json:"success"`
	PromptID  uint   `json:"prompt_id"`
	PromptKey string `json:"prompt_key"`
	RuleKey   string `json:"rule_key"`
	Channel   string `json:"channel"`
	Message   string `json:"message"`
	Reference string `json:"reference_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PromptEngineService 组合上下文构建、规则评估、冷却判断与投递落库。
// 通过构造函数显式注入依赖，不依赖任何全局单例，便于用内存库做隔离测试。
type PromptEngineService struct {
	db       *gorm.DB
	contexts *UserContextService
	prompts  *PromptService
}

// NewPromptEngineService 构造 PromptEngineService
func NewPromptEngineService(gdb *gorm.DB) *PromptEngineService {
	return &PromptEngineService{
		db:       gdb,
		contexts: NewUserContextService(gdb),
		prompts:  NewPromptService(gdb),
	}
}

// EvaluateAndFire 对单个参与者评估全部启用规则。
// 快照只构建一次；规则按优先级降序逐条处理，冷却中的跳过，命中的全部投递——
// 多条独立规则同时命中时用户会收到多条不同的消息。
func (s *PromptEngineService) EvaluateAndFire(userID uint) ([]DeliveryResult, error) {
	ctx, err := s.contexts.BuildContext(userID)
	if err != nil {
		return nil, err
	}

	rules, err := s.prompts.ListActiveRules()
	if err != nil {
		return nil, err
	}

	return s.fireMatching(ctx, rules, time.Now()), nil
}

// ProcessScheduledPrompts 顺序扫描全部在随访的参与者并逐个评估。
// 刻意不做并发扇出，避免压垮共享的关系库；单个参与者失败只记日志，不中断扫描。
func (s *PromptEngineService) ProcessScheduledPrompts() (map[uint][]DeliveryResult, error) {
	var users []db.User
	if err := s.db.Where("status = ?", db.UserStatusActive).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}

	results := make(map[uint][]DeliveryResult)
	for _, user := range users {
		fired, err := s.EvaluateAndFire(user.ID)
		if err != nil {
			log.Printf("[PromptEngine] sweep: user %d evaluation failed: %v", user.ID, err)
			continue
		}
		if len(fired) > 0 {
			results[user.ID] = fired
		}
	}

	return results, nil
}

// OnMetricLogged 在新读数落库后立即做增量评估，只看指标类型匹配的事件型规则。
// 补录的读数（逻辑时间早于入库时间一小时以上）一律不触发，避免为历史数据补发通知。
func (s *PromptEngineService) OnMetricLogged(userID uint, metricType string, entry db.MetricEntry) ([]DeliveryResult, error) {
	if entry.Backfilled() {
		return nil, nil
	}

	ctx, err := s.contexts.BuildContext(userID)
	if err != nil {
		return nil, err
	}

	rules, err := s.prompts.ListActiveEventRules()
	if err != nil {
		return nil, err
	}

	matching := make([]db.PromptRule, 0, len(rules))
	for _, rule := range rules {
		cond, err := ParseEventCondition(rule.ConditionsJSON)
		if err != nil {
			log.Printf("[PromptEngine] rule %s: bad event payload: %v", rule.Key, err)
			continue
		}
		if cond.MetricType == metricType {
			matching = append(matching, rule)
		}
	}

	return s.fireMatching(ctx, matching, time.Now()), nil
}

// fireMatching 对一组候选规则执行「冷却 → 匹配 → 投递」流水线
func (s *PromptEngineService) fireMatching(ctx *UserContext, rules []db.PromptRule, now time.Time) []DeliveryResult {
	results := make([]DeliveryResult, 0)

	for _, rule := range rules {
		if !rule.Prompt.Active {
			continue
		}
		if s.isInCooldown(ctx.UserID, rule.PromptID, rule.CooldownHours, now) {
			continue
		}
		if !ruleMatches(rule, ctx, now) {
			continue
		}
		results = append(results, s.deliverPrompt(rule.Prompt, rule, ctx, now))
	}

	return results
}

// isInCooldown 判断 (用户, 消息) 是否仍处于冷却窗口内。
// 依据唯一事实来源 prompt_deliveries：窗口内存在 sent 记录即视为冷却中。
// 注意这里是先读后写，与稍后的落库之间没有事务栅栏；并发的扫描与事件评估
// 存在双发窗口，收敛到存储层条件插入时只需替换此查询。
func (s *PromptEngineService) isInCooldown(userID, promptID uint, cooldownHours int, now time.Time) bool {
	if cooldownHours <= 0 {
		return false
	}

	windowStart := now.Add(-time.Duration(cooldownHours) * time.Hour)

	var count int64
	if err := s.db.Model(&db.PromptDelivery{}).
		Where("user_id = ? AND prompt_id = ? AND status = ? AND fired_at >= ?",
			userID, promptID, db.DeliveryStatusSent, windowStart).
		Count(&count).Error; err != nil {
		log.Printf("[PromptEngine] cooldown check failed for user %d prompt %d: %v", userID, promptID, err)
		// 查询失败时按冷却中处理，宁可漏发不可重发
		return true
	}

	return count > 0
}

// triggerContext 是投递记录里留存的触发现场快照
type triggerContext struct {
	RuleID           uint          `json:"rule_id"`
	RuleKey          string        `json:"rule_key"`
	TriggerType      string        `json:"trigger_type"`
	DaysSinceLastLog *int          `json:"days_since_last_log,omitempty"`
	Metrics          MetricSummary `json:"metrics"`
}

// deliverPrompt 渲染消息并落库一条投递记录。
// 任何失败都转化为 Success=false 的结果返回，绝不向上抛出，
// 保证一条消息的失败不会中断其余规则的评估。
func (s *PromptEngineService) deliverPrompt(prompt db.Prompt, rule db.PromptRule, ctx *UserContext, now time.Time) DeliveryResult {
	message := RenderTemplate(prompt.MessageTemplate, ctx)

	result := DeliveryResult{
		PromptID:  prompt.ID,
		PromptKey: prompt.Key,
		RuleKey:   rule.Key,
		Channel:   prompt.Channel,
		Message:   message,
	}

	snapshot, err := json.Marshal(triggerContext{
		RuleID:           rule.ID,
		RuleKey:          rule.Key,
		TriggerType:      rule.TriggerType,
		DaysSinceLastLog: ctx.DaysSinceLastLog,
		Metrics:          ctx.Metrics,
	})
	if err != nil {
		result.Error = fmt.Sprintf("marshal trigger context: %v", err)
		return result
	}

	delivery := db.PromptDelivery{
		ReferenceID:        uuid.NewString(),
		UserID:             ctx.UserID,
		PromptID:           prompt.ID,
		FiredAt:            now,
		TriggerContextJSON: snapshot,
		Status:             db.DeliveryStatusSent,
	}

	if err := s.db.Create(&delivery).Error; err != nil {
		log.Printf("[PromptEngine] record delivery failed for user %d prompt %s: %v", ctx.UserID, prompt.Key, err)
		result.Error = fmt.Sprintf("record delivery: %v", err)
		return result
	}

	result.Success = true
	result.Reference = delivery.ReferenceID
	return result
}

// ListDeliveries 返回某参与者的投递历史，按触发时间倒序，供审计接口使用
func (s *PromptEngineService) ListDeliveries(userID uint) ([]db.PromptDelivery, error) {
	var deliveries []db.PromptDelivery
	if err := s.db.Where("user_id = ?", userID).
		Order("fired_at DESC").
		Find(&deliveries).Error; err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return deliveries, nil
}

// UpdateDeliveryStatus 供外部通道按回执更新投递状态（failed/opened）。
// 引擎自身写入后不再修改记录，这是唯一的外部回写入口。
func (s *PromptEngineService) UpdateDeliveryStatus(referenceID, status string) (*db.PromptDelivery, error) {
	if status != db.DeliveryStatusFailed && status != db.DeliveryStatusOpened {
		return nil, ErrDeliveryStatusInvalid
	}

	var delivery db.PromptDelivery
	if err := s.db.Where("reference_id = ?", referenceID).First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("find delivery: %w", err)
	}

	delivery.Status = status
	if err := s.db.Save(&delivery).Error; err != nil {
		return nil, fmt.Errorf("update delivery status: %w", err)
	}
	return &delivery, nil
}
