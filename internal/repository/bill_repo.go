package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/ringlink/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BillRepo is the repository for call bills
type BillRepo struct {
	db *gorm.DB
}

// NewBillRepo creates a new BillRepo
func NewBillRepo(db *gorm.DB) *BillRepo {
	return &BillRepo{db: db}
}

// CreateBillIfAbsent stores bill unless the call already has one
func (r *BillRepo) CreateBillIfAbsent(ctx context.Context, bill *entity.BillDetail) (bool, error) {
	bill.CreatedAt = entity.NowUnixMilli()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "call_id"}},
		DoNothing: true,
	}).Create(bill)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetBill gets the bill of a call
func (r *BillRepo) GetBill(ctx context.Context, callId string) (*entity.BillDetail, error) {
	var bill entity.BillDetail
	err := r.db.WithContext(ctx).Where("call_id = ?", callId).First(&bill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bill, nil
}
