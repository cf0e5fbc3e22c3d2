package repositories

import (
	"context"
	"fmt"

	"github.com/relaychat/notifier/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores the push endpoints registered by user devices.
type DeviceTokenRepository interface {
	GetByUser(ctx context.Context, uid string) ([]models.DeviceToken, error)
	Register(ctx context.Context, token *models.DeviceToken) error
	Remove(ctx context.Context, uid, token string) error
	// DisableTokens flips rows off after the provider reported them gone.
	DisableTokens(ctx context.Context, tokens []string) error
}

type postgresDeviceTokenRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &postgresDeviceTokenRepository{db: db}
}

func (r *postgresDeviceTokenRepository) GetByUser(ctx context.Context, uid string) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	err := r.db.WithContext(ctx).Where("uid = ?", uid).Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("get device tokens of %s: %w", uid, err)
	}
	return tokens, nil
}

// Register upserts on the token value. Re-registering an existing token (an
// app reinstall, a permission change) moves it to the new user and re-enables
// it instead of failing the unique index.
func (r *postgresDeviceTokenRepository) Register(ctx context.Context, token *models.DeviceToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"uid", "channel", "subscription", "device_info", "enabled", "permission_granted", "updated_at"}),
	}).Create(token).Error
	if err != nil {
		return fmt.Errorf("register device token: %w", err)
	}
	return nil
}

func (r *postgresDeviceTokenRepository) Remove(ctx context.Context, uid, token string) error {
	err := r.db.WithContext(ctx).Where("uid = ? AND token = ?", uid, token).Delete(&models.DeviceToken{}).Error
	if err != nil {
		return fmt.Errorf("remove device token: %w", err)
	}
	return nil
}

func (r *postgresDeviceTokenRepository) DisableTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Model(&models.DeviceToken{}).
		Where("token IN ?", tokens).
		Update("enabled", false).Error
	if err != nil {
		return fmt.Errorf("disable device tokens: %w", err)
	}
	return nil
}
