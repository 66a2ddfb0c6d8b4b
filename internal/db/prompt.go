package db

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// PromptCategoryReminder 常规提醒类消息
	PromptCategoryReminder = "reminder"
	// PromptCategoryIntervention 指标异常时的干预类消息
	PromptCategoryIntervention = "intervention"
	// PromptCategoryEducation 健康教育类消息
	PromptCategoryEducation = "education"
)

const (
	// ChannelInApp 应用内消息
	ChannelInApp = "in_app"
	// ChannelEmail 邮件
	ChannelEmail = "email"
	// ChannelSMS 短信
	ChannelSMS = "sms"
)

const (
	// TriggerSchedule 按墙钟时间触发
	TriggerSchedule = "schedule"
	// TriggerEvent 按指标事件触发
	TriggerEvent = "event"
	// TriggerMissed 按缺勤（长时间未打卡）触发
	TriggerMissed = "missed"
)

// Prompt 定义了一条教练消息模板
// MessageTemplate 中的 {{token}} 占位符在投递时由用户上下文替换
// 被规则引用期间不允许删除，约束在规则维护入口处执行，引擎本身不做校验
type Prompt struct {
	gorm.Model
	Key             string `gorm:"uniqueIndex;not null"`
	Category        string `gorm:"not null"`
	MessageTemplate string `gorm:"not null"`
	Channel         string `gorm:"not null"`
	Active          bool   `gorm:"default:true"`
}

// PromptRule 定义了一条触发规则，绑定唯一的 Prompt
// ScheduleJSON 仅对 schedule 类型有意义，ConditionsJSON 仅对 event/missed 有意义
// Priority 越大越先评估；CooldownHours 约束同一 (用户, 消息) 的最小投递间隔
type PromptRule struct {
	gorm.Model
	Key            string         `gorm:"uniqueIndex;not null"`
	PromptID       uint           `gorm:"index;not null"`
	Prompt         Prompt         `gorm:"constraint:OnDelete:RESTRICT"`
	TriggerType    string         `gorm:"not null"`
	ScheduleJSON   datatypes.JSON
	ConditionsJSON datatypes.JSON
	CooldownHours  int            `gorm:"default:0"`
	Priority       int            `gorm:"default:0;index"`
	Active         bool           `gorm:"default:true"`
}
