package model

import (
	"time"

	"github.com/google/uuid"
)

type Preset struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name            string    `gorm:"type:varchar(100);not null"`
	PrimaryColor    string    `gorm:"type:varchar(9);not null"`
	SecondaryColor  string    `gorm:"type:varchar(9);not null"`
	AccentColor     string    `gorm:"type:varchar(9);not null"`
	BackgroundColor string    `gorm:"type:varchar(9);not null"`
	ForegroundColor string    `gorm:"type:varchar(9);not null"`
	Theme           string    `gorm:"type:varchar(10);not null;default:'system'"`
	HeadingFont     string    `gorm:"type:varchar(100)"`
	BodyFont        string    `gorm:"type:varchar(100)"`
	BorderRadius    string    `gorm:"type:varchar(20)"`
	IsFavorite      bool      `gorm:"default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Preset) TableName() string {
	return "website_settings_presets"
}

// WebsiteSettings binds one preset to an (environment, route) pair.
type WebsiteSettings struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Environment string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_website_settings_env_route,priority:1"`
	Route       string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_website_settings_env_route,priority:2"`
	PresetId    uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	Preset Preset `gorm:"foreignKey:PresetId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (WebsiteSettings) TableName() string {
	return "website_settings"
}
