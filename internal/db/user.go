package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	// UserStatusActive 表示参与者正在接受随访与提醒
	UserStatusActive = "active"
	// UserStatusInactive 表示参与者已退出，批量扫描会跳过
	UserStatusInactive = "inactive"
)

// User 定义了参与者模型
// Password 仅存 bcrypt 哈希，登录鉴权由外部网关负责
type User struct {
	gorm.Model
	Name     string `gorm:"not null"`
	Email    string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	Status   string `gorm:"default:active"`
}

// EnsureUser 存在性检查：若提供的邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的参与者。
func EnsureUser(name, email, password string) error {
	trimmedEmail := strings.TrimSpace(email)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedEmail == "" || trimmedPassword == "" {
		return nil
	}

	if DB == nil {
		return errors.New("database not initialized")
	}

	var existing User
	if err := DB.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		return DB.Create(&User{
			Name:     strings.TrimSpace(name),
			Email:    trimmedEmail,
			Password: string(hashed),
			Status:   UserStatusActive,
		}).Error
	}

	return nil
}
