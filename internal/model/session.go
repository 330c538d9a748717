package model

import "time"

// SessionRecord is the persisted form of one browser session.
type SessionRecord struct {
	ID              string    `gorm:"primaryKey;size:36"`
	IsAuthenticated bool      `gorm:"not null;default:false"`
	AccessToken     string    `gorm:"type:text"`
	RefreshToken    string    `gorm:"type:text"`
	UserJSON        string    `gorm:"type:text"`
	ProfileJSON     string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}
