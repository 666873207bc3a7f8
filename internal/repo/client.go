package repo

import (
	"context"

	"github.com/Skotchmaster/auth_center/internal/models"
	"gorm.io/gorm"
)

// GetClient looks a client up by its public id. An empty secret means an
// id-only lookup; otherwise the secret must match as well.
func (r *GormRepo) GetClient(ctx context.Context, clientID, secret string) (*models.Client, error) {
	if clientID == "" {
		return nil, nil
	}
	q := r.DB.WithContext(ctx).Where("client_id = ?", clientID)
	if secret != "" {
		q = q.Where("secret = ?", secret)
	}
	var client models.Client
	err := q.First(&client).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *GormRepo) FindClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&client).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ClientTaken reports whether clientID or displayName is already used by a
// client other than exceptID. Empty arguments are not checked.
func (r *GormRepo) ClientTaken(ctx context.Context, clientID, displayName, exceptID string) (bool, error) {
	q := r.DB.WithContext(ctx).Model(&models.Client{})
	switch {
	case clientID != "" && displayName != "":
		q = q.Where("client_id = ? OR display_name = ?", clientID, displayName)
	case clientID != "":
		q = q.Where("client_id = ?", clientID)
	case displayName != "":
		q = q.Where("display_name = ?", displayName)
	default:
		return false, nil
	}
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *GormRepo) CreateClient(ctx context.Context, c *models.Client) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *GormRepo) ListClients(ctx context.Context, offset, limit int) ([]models.Client, int64, error) {
	visible := func() *gorm.DB {
		return r.DB.WithContext(ctx).Model(&models.Client{}).Where("status <> ?", models.ClientBlocked)
	}

	var total int64
	if err := visible().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	clients := make([]models.Client, 0, limit)
	if err := visible().Order("created_at").Offset(offset).Limit(limit).Find(&clients).Error; err != nil {
		return nil, 0, err
	}
	return clients, total, nil
}

// UpdateClient applies column updates and returns the fresh record, or nil
// when id is unknown.
func (r *GormRepo) UpdateClient(ctx context.Context, id string, updates map[string]any) (*models.Client, error) {
	if len(updates) > 0 {
		res := r.DB.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
	}
	return r.FindClient(ctx, id)
}

func (r *GormRepo) DeleteClient(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", id).Delete(&models.Token{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", id).Delete(&models.AuthorizationCode{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Client{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		return nil
	})
	return deleted, err
}
