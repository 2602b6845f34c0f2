package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/ringlink/internal/entity"
	"gorm.io/gorm"
)

// ProfileRepo is the repository for user profiles
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo creates a new ProfileRepo
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// GetProfile gets the profile of a user
func (r *ProfileRepo) GetProfile(ctx context.Context, userId string) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetProfiles gets the profiles of several users, missing ones are skipped
func (r *ProfileRepo) GetProfiles(ctx context.Context, userIds []string) ([]*entity.Profile, error) {
	var profiles []*entity.Profile
	if len(userIds) == 0 {
		return profiles, nil
	}
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIds).Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// SaveProfile creates or replaces a profile
func (r *ProfileRepo) SaveProfile(ctx context.Context, profile *entity.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
