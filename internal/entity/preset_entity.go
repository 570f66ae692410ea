package entity

import (
	"time"

	"github.com/google/uuid"
)

type Preset struct {
	Id              uuid.UUID
	Name            string
	PrimaryColor    string
	SecondaryColor  string
	AccentColor     string
	BackgroundColor string
	ForegroundColor string
	Theme           string
	HeadingFont     string
	BodyFont        string
	BorderRadius    string
	IsFavorite      bool
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

type WebsiteSettings struct {
	Id          uuid.UUID
	Environment string
	Route       string
	PresetId    uuid.UUID
	Preset      *Preset
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
