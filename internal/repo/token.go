package repo

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/auth_center/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GormRepo) GetAccessToken(ctx context.Context, accessToken string) (*models.Token, error) {
	if accessToken == "" {
		return nil, nil
	}
	var token models.Token
	err := r.DB.WithContext(ctx).
		Preload("Client").Preload("User").
		Where("access_token = ?", accessToken).
		First(&token).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormRepo) GetRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	if refreshToken == "" {
		return nil, nil
	}
	var token models.Token
	err := r.DB.WithContext(ctx).
		Preload("Client").Preload("User").
		Where("refresh_token = ?", refreshToken).
		First(&token).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormRepo) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	if code == "" {
		return nil, nil
	}
	var ac models.AuthorizationCode
	err := r.DB.WithContext(ctx).
		Preload("Client").Preload("User").
		Where("code = ?", code).
		First(&ac).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *GormRepo) SaveToken(ctx context.Context, token *models.Token, client *models.Client, user *models.User) (*models.Token, error) {
	if client == nil || user == nil {
		return nil, errors.New("save token: client and user are required")
	}
	saved := *token
	saved.ClientID = client.ID
	saved.UserID = user.ID
	saved.Client = nil
	saved.User = nil

	if err := r.DB.WithContext(ctx).Omit(clause.Associations).Create(&saved).Error; err != nil {
		return nil, err
	}
	saved.Client = client
	saved.User = user
	return &saved, nil
}

func (r *GormRepo) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user *models.User) (*models.AuthorizationCode, error) {
	if client == nil || user == nil {
		return nil, errors.New("save authorization code: client and user are required")
	}
	saved := *code
	saved.ClientID = client.ID
	saved.UserID = user.ID
	saved.Client = nil
	saved.User = nil

	if err := r.DB.WithContext(ctx).Omit(clause.Associations).Create(&saved).Error; err != nil {
		return nil, err
	}
	saved.Client = client
	saved.User = user
	return &saved, nil
}

// RevokeToken deletes the token record. It reports false when the token was
// already gone.
func (r *GormRepo) RevokeToken(ctx context.Context, token *models.Token) (bool, error) {
	if token == nil {
		return false, nil
	}
	q := r.DB.WithContext(ctx)
	switch {
	case token.ID != "":
		q = q.Where("id = ?", token.ID)
	case token.RefreshToken != "":
		q = q.Where("refresh_token = ?", token.RefreshToken)
	case token.AccessToken != "":
		q = q.Where("access_token = ?", token.AccessToken)
	default:
		return false, nil
	}
	res := q.Delete(&models.Token{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) RevokeAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (bool, error) {
	if code == nil || code.Code == "" {
		return false, nil
	}
	res := r.DB.WithContext(ctx).Where("code = ?", code.Code).Delete(&models.AuthorizationCode{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormRepo) VerifyScope(token *models.Token, scope string) bool {
	if token == nil {
		return false
	}
	return models.ScopeCovers(token.Scope, scope)
}

// DeleteExpired removes tokens that can no longer be used or refreshed, and
// authorization codes past their expiry.
func (r *GormRepo) DeleteExpired(ctx context.Context, now time.Time) (tokens, codes int64, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("access_token_expires_at < ? AND (refresh_token = '' OR refresh_token IS NULL OR refresh_token_expires_at < ?)", now, now).
			Delete(&models.Token{})
		if res.Error != nil {
			return res.Error
		}
		tokens = res.RowsAffected

		res = tx.Where("expires_at < ?", now).Delete(&models.AuthorizationCode{})
		if res.Error != nil {
			return res.Error
		}
		codes = res.RowsAffected
		return nil
	})
	return tokens, codes, err
}
