package models

import (
	"time"

	"gorm.io/gorm"
)

// User 账号模型（postgres）。实时数据（档案、成员关系）见 Profile 文档。
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UID          string `gorm:"uniqueIndex;not null" json:"uid"` // 文档库中的用户标识
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	SkillLevel   int    `gorm:"default:0" json:"skill_level"`
	Verified     bool   `gorm:"default:false" json:"verified"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
