package service

import (
	"context"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/mbeoliero/ringlink/internal/repository"
	"github.com/mbeoliero/ringlink/pkg/errcode"
	"github.com/mbeoliero/ringlink/pkg/phone"
)

// ProfileService handles the calling identity of users
type ProfileService struct {
	store  repository.Store
	region string
}

// NewProfileService creates a new ProfileService
func NewProfileService(store repository.Store, region string) *ProfileService {
	return &ProfileService{
		store:  store,
		region: region,
	}
}

// GetProfile gets the profile of a user
func (s *ProfileService) GetProfile(ctx context.Context, userId string) (*entity.ProfileInfo, error) {
	profile, err := s.store.GetProfile(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get profile failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	if profile == nil {
		return nil, errcode.ErrProfileNotFound
	}
	return profile.ToProfileInfo(), nil
}

// UpdateProfileRequest represents profile update request
type UpdateProfileRequest struct {
	Nickname string `json:"nickname,omitempty"`
	Number   string `json:"number,omitempty"`
}

// UpdateProfile creates or updates a profile. The number is stored in E.164.
func (s *ProfileService) UpdateProfile(ctx context.Context, userId string, req *UpdateProfileRequest) (*entity.ProfileInfo, error) {
	profile, err := s.store.GetProfile(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get profile failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	if profile == nil {
		profile = &entity.Profile{UserId: userId}
	}

	if nickname := strings.TrimSpace(req.Nickname); nickname != "" {
		profile.Nickname = nickname
	}
	if req.Number != "" {
		number, err := phone.E164(req.Number, s.region)
		if err != nil {
			log.CtxDebug(ctx, "invalid number: user_id=%s, error=%v", userId, err)
			return nil, errcode.ErrInvalidNumber
		}
		profile.Number = number
	}

	if err := s.store.SaveProfile(ctx, profile); err != nil {
		log.CtxError(ctx, "save profile failed: user_id=%s, error=%v", userId, err)
		return nil, errcode.ErrInternalServer
	}
	log.CtxInfo(ctx, "profile updated: user_id=%s, number=%s", userId, phone.Mask(profile.Number))
	return profile.ToProfileInfo(), nil
}
