package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaychat/notifier/internal/models"
	"gorm.io/gorm"
)

// UserRepository reads the mirrored user profiles. Unknown uids return
// (nil, nil); the engine falls back to the identity provider for those.
type UserRepository interface {
	GetByUID(ctx context.Context, uid string) (*models.User, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL.
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetByUID(ctx context.Context, uid string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", uid, err)
	}
	return &user, nil
}
