package entity

import "github.com/mbeoliero/ringlink/pkg/phone"

// Profile is the calling identity of a user. The number never leaves the
// server in plain text.
type Profile struct {
	UserId    string `json:"user_id" gorm:"column:user_id;primaryKey;size:64"`
	Nickname  string `json:"nickname" gorm:"column:nickname"`
	Number    string `json:"-" gorm:"column:number;serializer:sealed"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// HasNumber reports whether a phone number is bound
func (p *Profile) HasNumber() bool {
	return p != nil && p.Number != ""
}

// ProfileInfo is the public view of a profile
type ProfileInfo struct {
	UserId      string `json:"user_id"`
	Nickname    string `json:"nickname"`
	NumberBound bool   `json:"number_bound"`
	Number      string `json:"number,omitempty"`
}

// ToProfileInfo converts Profile to ProfileInfo with the number masked
func (p *Profile) ToProfileInfo() *ProfileInfo {
	info := &ProfileInfo{UserId: p.UserId, Nickname: p.Nickname, NumberBound: p.HasNumber()}
	if info.NumberBound {
		info.Number = phone.Mask(p.Number)
	}
	return info
}
