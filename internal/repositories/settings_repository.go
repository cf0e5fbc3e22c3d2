package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaychat/notifier/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository stores per-user notification preference documents.
type SettingsRepository interface {
	// GetSettings returns the user's resolved preferences. Users without a
	// stored document get the defaults.
	GetSettings(ctx context.Context, uid string) (models.NotificationSettings, error)
	GetRecord(ctx context.Context, uid string) (*models.NotificationSettingsRecord, error)
	UpsertSettings(ctx context.Context, uid string, doc datatypes.JSON) error
}

type postgresSettingsRepository struct {
	db *gorm.DB
}

func NewPostgresSettingsRepository(db *gorm.DB) SettingsRepository {
	return &postgresSettingsRepository{db: db}
}

func (r *postgresSettingsRepository) GetSettings(ctx context.Context, uid string) (models.NotificationSettings, error) {
	rec, err := r.GetRecord(ctx, uid)
	if err != nil {
		return models.DefaultNotificationSettings(), err
	}
	return models.ResolveSettings(rec), nil
}

func (r *postgresSettingsRepository) GetRecord(ctx context.Context, uid string) (*models.NotificationSettingsRecord, error) {
	var rec models.NotificationSettingsRecord
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings of %s: %w", uid, err)
	}
	return &rec, nil
}

func (r *postgresSettingsRepository) UpsertSettings(ctx context.Context, uid string, doc datatypes.JSON) error {
	rec := models.NotificationSettingsRecord{UID: uid, Doc: doc, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"doc", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upsert settings of %s: %w", uid, err)
	}
	return nil
}
