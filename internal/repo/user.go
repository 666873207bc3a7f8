package repo

import (
	"context"

	"github.com/Skotchmaster/auth_center/internal/models"
	"gorm.io/gorm"
)

func (r *GormRepo) GetUser(ctx context.Context, filter models.UserFilter) (*models.User, error) {
	if filter.Empty() {
		return nil, nil
	}
	q := r.DB.WithContext(ctx)
	if filter.ID != "" {
		q = q.Where("id = ?", filter.ID)
	}
	if filter.Username != "" {
		q = q.Where("username = ?", filter.Username)
	}
	if filter.Email != "" {
		q = q.Where("email = ?", filter.Email)
	}
	if filter.Phone != "" {
		q = q.Where("phone = ?", filter.Phone)
	}
	if filter.OpenID != "" {
		q = q.Where("openid = ?", filter.OpenID)
	}

	var user models.User
	err := q.Order("created_at").First(&user).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *GormRepo) SaveUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Save(u).Error
}

// ListUsers pages through users that are not blocked, oldest first.
func (r *GormRepo) ListUsers(ctx context.Context, offset, limit int) ([]models.User, int64, error) {
	visible := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&models.User{}).Where("status <> ?", models.UserBlocked)
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	users := make([]models.User, 0, limit)
	if err := visible().Order("created_at").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *GormRepo) SetUserStatus(ctx context.Context, id string, status models.UserStatus) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteUser removes the user together with its tokens and codes.
func (r *GormRepo) DeleteUser(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Token{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.AuthorizationCode{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}
