package db

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// DeliveryStatusSent 引擎已决定投递并落库
	DeliveryStatusSent = "sent"
	// DeliveryStatusFailed 外部通道回报发送失败
	DeliveryStatusFailed = "failed"
	// DeliveryStatusOpened 用户已打开消息，由外部回写
	DeliveryStatusOpened = "opened"
)

// PromptDelivery 是一条不可变的投递记录，也是冷却判断的唯一数据来源
// ReferenceID 提供给外部通道（邮件/短信/推送）做回执关联
// TriggerContextJSON 快照触发时的规则与指标摘要，便于审计排查
type PromptDelivery struct {
	gorm.Model
	ReferenceID        string         `gorm:"size:36;uniqueIndex"`
	UserID             uint           `gorm:"index:idx_delivery_cooldown"`
	PromptID           uint           `gorm:"index:idx_delivery_cooldown"`
	FiredAt            time.Time      `gorm:"index:idx_delivery_cooldown"`
	TriggerContextJSON datatypes.JSON
	Status             string         `gorm:"default:sent"`
}

// TableName 指定自定义表名。
func (PromptDelivery) TableName() string {
	return "prompt_deliveries"
}
