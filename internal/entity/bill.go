package entity

// BillDetail is the billing record of a successful call, one per call id
type BillDetail struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	CallId    string `json:"call_id" gorm:"column:call_id;uniqueIndex"`
	UserId    string `json:"user_id" gorm:"column:user_id;index"`
	Duration  int64  `json:"duration" gorm:"column:duration"`
	Amount    int32  `json:"amount" gorm:"column:amount"`
	Summary   string `json:"summary" gorm:"column:summary"`
	BillAt    int64  `json:"bill_at" gorm:"column:bill_at"`
	IsFree    bool   `json:"is_free" gorm:"column:is_free"`
	DayIndex  int32  `json:"day_index" gorm:"column:day_index"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
}

// TableName returns the table name for BillDetail
func (BillDetail) TableName() string {
	return "bill_details"
}
