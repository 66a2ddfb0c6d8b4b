package db

import "gorm.io/gorm"

// MacroTarget 保存参与者的每日营养目标，用于消息个性化
// 每位参与者至多一行
type MacroTarget struct {
	gorm.Model
	UserID   uint `gorm:"uniqueIndex"`
	Calories int
	Protein  int
	Carbs    int
}
