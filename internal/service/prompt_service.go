package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vitalog/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrPromptNotFound 在指定消息模板不存在时返回
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrPromptRuleNotFound 在指定规则不存在时返回
	ErrPromptRuleNotFound = errors.New("prompt rule not found")
	// ErrPromptReferenced 在消息模板仍被规则引用时返回，保证引用完整性
	ErrPromptReferenced = errors.New("prompt is referenced by rules")
	// ErrPromptInvalid 当模板配置异常时返回
	ErrPromptInvalid = errors.New("invalid prompt configuration")
)

// PromptService 负责消息模板与触发规则的维护，供后台管理接口使用
// 引擎只读取 Active 的行，写路径全部收口在这里
type PromptService struct {
	db *gorm.DB
}

// NewPromptService 构造 PromptService
func NewPromptService(gdb *gorm.DB) *PromptService {
	return &PromptService{db: gdb}
}

// PromptInput 定义创建/更新消息模板时可配置字段
type PromptInput struct {
	Key             string
	Category        string
	MessageTemplate string
	Channel         string
	Active          bool
}

// PromptRuleInput 定义创建/更新触发规则时可配置字段
type PromptRuleInput struct {
	Key            string
	PromptID       uint
	TriggerType    string
	ScheduleJSON   datatypes.JSON
	ConditionsJSON datatypes.JSON
	CooldownHours  int
	Priority       int
	Active         bool
}

// ListPrompts 返回全部消息模板
func (s *PromptService) ListPrompts() ([]db.Prompt, error) {
	var prompts []db.Prompt
	if err := s.db.Order("created_at DESC").Find(&prompts).Error; err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return prompts, nil
}

// GetPrompt 根据 ID 获取消息模板
func (s *PromptService) GetPrompt(id uint) (*db.Prompt, error) {
	var prompt db.Prompt
	if err := s.db.First(&prompt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &prompt, nil
}

// CreatePrompt 新建消息模板
func (s *PromptService) CreatePrompt(input PromptInput) (*db.Prompt, error) {
	if err := validatePromptInput(input); err != nil {
		return nil, err
	}

	prompt := db.Prompt{
		Key:             strings.TrimSpace(input.Key),
		Category:        input.Category,
		MessageTemplate: input.MessageTemplate,
		Channel:         input.Channel,
		Active:          input.Active,
	}

	if err := s.db.Create(&prompt).Error; err != nil {
		return nil, fmt.Errorf("create prompt: %w", err)
	}
	return &prompt, nil
}

// UpdatePrompt 更新消息模板
func (s *PromptService) UpdatePrompt(id uint, input PromptInput) (*db.Prompt, error) {
	if err := validatePromptInput(input); err != nil {
		return nil, err
	}

	var existing db.Prompt
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("find prompt: %w", err)
	}

	existing.Key = strings.TrimSpace(input.Key)
	existing.Category = input.Category
	existing.MessageTemplate = input.MessageTemplate
	existing.Channel = input.Channel
	existing.Active = input.Active

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update prompt: %w", err)
	}
	return &existing, nil
}

// DeletePrompt 删除消息模板；仍被规则引用时拒绝删除
func (s *PromptService) DeletePrompt(id uint) error {
	var count int64
	if err := s.db.Model(&db.PromptRule{}).Where("prompt_id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("count referencing rules: %w", err)
	}
	if count > 0 {
		return ErrPromptReferenced
	}

	if err := s.db.Delete(&db.Prompt{}, id).Error; err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	return nil
}

// ListRules 返回全部触发规则，按优先级降序
func (s *PromptService) ListRules() ([]db.PromptRule, error) {
	var rules []db.PromptRule
	if err := s.db.Preload("Prompt").
		Order("priority DESC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list prompt rules: %w", err)
	}
	return rules, nil
}

// ListActiveRules 返回所有启用的规则及其消息模板，按优先级降序。
// 这是引擎评估一个用户时的规则读取入口。
func (s *PromptService) ListActiveRules() ([]db.PromptRule, error) {
	var rules []db.PromptRule
	if err := s.db.Preload("Prompt").
		Where("active = ?", true).
		Order("priority DESC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list active prompt rules: %w", err)
	}
	return rules, nil
}

// ListActiveEventRules 返回所有启用的事件型规则，供指标记录后的增量评估使用
func (s *PromptService) ListActiveEventRules() ([]db.PromptRule, error) {
	var rules []db.PromptRule
	if err := s.db.Preload("Prompt").
		Where("active = ? AND trigger_type = ?", true, db.TriggerEvent).
		Order("priority DESC, id ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list active event rules: %w", err)
	}
	return rules, nil
}

// GetRule 根据 ID 获取触发规则
func (s *PromptService) GetRule(id uint) (*db.PromptRule, error) {
	var rule db.PromptRule
	if err := s.db.Preload("Prompt").First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptRuleNotFound
		}
		return nil, fmt.Errorf("get prompt rule: %w", err)
	}
	return &rule, nil
}

// CreateRule 新建触发规则；载荷在此一次性校验，评估路径不再防御
func (s *PromptService) CreateRule(input PromptRuleInput) (*db.PromptRule, error) {
	if err := s.validateRuleInput(input); err != nil {
		return nil, err
	}

	rule := db.PromptRule{
		Key:            strings.TrimSpace(input.Key),
		PromptID:       input.PromptID,
		TriggerType:    input.TriggerType,
		ScheduleJSON:   input.ScheduleJSON,
		ConditionsJSON: input.ConditionsJSON,
		CooldownHours:  input.CooldownHours,
		Priority:       input.Priority,
		Active:         input.Active,
	}

	if err := s.db.Create(&rule).Error; err != nil {
		return nil, fmt.Errorf("create prompt rule: %w", err)
	}
	return &rule, nil
}

// UpdateRule 更新触发规则
func (s *PromptService) UpdateRule(id uint, input PromptRuleInput) (*db.PromptRule, error) {
	if err := s.validateRuleInput(input); err != nil {
		return nil, err
	}

	var existing db.PromptRule
	if err := s.db.First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromptRuleNotFound
		}
		return nil, fmt.Errorf("find prompt rule: %w", err)
	}

	existing.Key = strings.TrimSpace(input.Key)
	existing.PromptID = input.PromptID
	existing.TriggerType = input.TriggerType
	existing.ScheduleJSON = input.ScheduleJSON
	existing.ConditionsJSON = input.ConditionsJSON
	existing.CooldownHours = input.CooldownHours
	existing.Priority = input.Priority
	existing.Active = input.Active

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update prompt rule: %w", err)
	}
	return &existing, nil
}

// DeleteRule 删除触发规则
func (s *PromptService) DeleteRule(id uint) error {
	if err := s.db.Delete(&db.PromptRule{}, id).Error; err != nil {
		return fmt.Errorf("delete prompt rule: %w", err)
	}
	return nil
}

func validatePromptInput(input PromptInput) error {
	if strings.TrimSpace(input.Key) == "" {
		return fmt.Errorf("%w: key is required", ErrPromptInvalid)
	}
	if strings.TrimSpace(input.MessageTemplate) == "" {
		return fmt.Errorf("%w: message template is required", ErrPromptInvalid)
	}

	switch input.Category {
	case db.PromptCategoryReminder, db.PromptCategoryIntervention, db.PromptCategoryEducation:
	default:
		return fmt.Errorf("%w: unsupported category %q", ErrPromptInvalid, input.Category)
	}

	switch input.Channel {
	case db.ChannelInApp, db.ChannelEmail, db.ChannelSMS:
	default:
		return fmt.Errorf("%w: unsupported channel %q", ErrPromptInvalid, input.Channel)
	}

	return nil
}

func (s *PromptService) validateRuleInput(input PromptRuleInput) error {
	if strings.TrimSpace(input.Key) == "" {
		return fmt.Errorf("%w: key is required", ErrPromptInvalid)
	}
	if input.CooldownHours < 0 {
		return fmt.Errorf("%w: cooldownHours must be >= 0", ErrPromptInvalid)
	}

	if err := ValidateRulePayload(input.TriggerType, input.ScheduleJSON, input.ConditionsJSON); err != nil {
		return err
	}

	var prompt db.Prompt
	if err := s.db.First(&prompt, input.PromptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPromptNotFound
		}
		return fmt.Errorf("find prompt: %w", err)
	}

	return nil
}
