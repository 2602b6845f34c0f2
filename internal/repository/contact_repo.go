package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/ringlink/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContactRepo is the repository for contact operations
type ContactRepo struct {
	db *gorm.DB
}

// NewContactRepo creates a new ContactRepo
func NewContactRepo(db *gorm.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

// CreateContact creates the owner -> peer edge unless it already exists
func (r *ContactRepo) CreateContact(ctx context.Context, contact *entity.Contact) (bool, error) {
	now := entity.NowUnixMilli()
	contact.CreatedAt = now
	contact.UpdatedAt = now
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "peer_id"}},
		DoNothing: true,
	}).Create(contact)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetContact gets the owner -> peer edge
func (r *ContactRepo) GetContact(ctx context.Context, ownerId, peerId string) (*entity.Contact, error) {
	var contact entity.Contact
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND peer_id = ?", ownerId, peerId).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

// ListContacts lists the owner's contacts, unread first
func (r *ContactRepo) ListContacts(ctx context.Context, ownerId, keyword string, limit int) ([]*entity.Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerId)
	if keyword != "" {
		query = query.Where("keywords LIKE ?", "%"+keyword+"%")
	}

	var contacts []*entity.Contact
	err := query.Order("unread DESC").Order("last_at DESC").Limit(limit).Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// CountUnreadContacts counts unblocked contacts with unread messages
func (r *ContactRepo) CountUnreadContacts(ctx context.Context, ownerId string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Contact{}).
		Where("owner_id = ? AND unread > 0 AND is_block = ?", ownerId, false).
		Count(&count).Error
	return count, err
}

// SaveContact writes every column of contact
func (r *ContactRepo) SaveContact(ctx context.Context, contact *entity.Contact) error {
	contact.UpdatedAt = entity.NowUnixMilli()
	return r.db.WithContext(ctx).Save(contact).Error
}
