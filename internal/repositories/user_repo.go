package repositories

import (
	"gorm.io/gorm"

	"github.com/squadup/squadup/internal/models"
)

// UserRepository 账号仓储（postgres）
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建账号仓储实例
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create 创建账号
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByUID 根据文档库标识获取账号
func (r *UserRepository) GetByUID(uid string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername 根据用户名获取账号
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取账号
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Update 更新账号
func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}
