package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreatePresetRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=100"`
	PrimaryColor    string `json:"primary_color" validate:"required,hexcolor"`
	SecondaryColor  string `json:"secondary_color" validate:"required,hexcolor"`
	AccentColor     string `json:"accent_color" validate:"required,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"required,hexcolor"`
	ForegroundColor string `json:"foreground_color" validate:"required,hexcolor"`
	Theme           string `json:"theme" validate:"omitempty,oneof=light dark system"`
	HeadingFont     string `json:"heading_font" validate:"max=100"`
	BodyFont        string `json:"body_font" validate:"max=100"`
	BorderRadius    string `json:"border_radius" validate:"max=20"`
	IsFavorite      bool   `json:"is_favorite"`
}

type UpdatePresetRequest struct {
	Id              uuid.UUID `json:"-"`
	Name            *string   `json:"name" validate:"omitempty,min=1,max=100"`
	PrimaryColor    *string   `json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor  *string   `json:"secondary_color" validate:"omitempty,hexcolor"`
	AccentColor     *string   `json:"accent_color" validate:"omitempty,hexcolor"`
	BackgroundColor *string   `json:"background_color" validate:"omitempty,hexcolor"`
	ForegroundColor *string   `json:"foreground_color" validate:"omitempty,hexcolor"`
	Theme           *string   `json:"theme" validate:"omitempty,oneof=light dark system"`
	HeadingFont     *string   `json:"heading_font" validate:"omitempty,max=100"`
	BodyFont        *string   `json:"body_font" validate:"omitempty,max=100"`
	BorderRadius    *string   `json:"border_radius" validate:"omitempty,max=20"`
}

type PresetResponse struct {
	Id              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	PrimaryColor    string     `json:"primary_color"`
	SecondaryColor  string     `json:"secondary_color"`
	AccentColor     string     `json:"accent_color"`
	BackgroundColor string     `json:"background_color"`
	ForegroundColor string     `json:"foreground_color"`
	Theme           string     `json:"theme"`
	HeadingFont     string     `json:"heading_font,omitempty"`
	BodyFont        string     `json:"body_font,omitempty"`
	BorderRadius    string     `json:"border_radius,omitempty"`
	IsFavorite      bool       `json:"is_favorite"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

type ApplyPresetRequest struct {
	PresetId    uuid.UUID `json:"preset_id" validate:"required"`
	Environment string    `json:"environment" validate:"required,oneof=development staging production"`
	Route       string    `json:"route" validate:"omitempty,max=255,startswith=/"`
	Confirmed   bool      `json:"confirmed"`
}

type WebsiteSettingsQuery struct {
	Environment string `query:"environment" validate:"required,oneof=development staging production"`
	Route       string `query:"route" validate:"omitempty,max=255,startswith=/"`
}

type WebsiteSettingsResponse struct {
	Id          uuid.UUID       `json:"id"`
	Environment string          `json:"environment"`
	Route       string          `json:"route"`
	PresetId    uuid.UUID       `json:"preset_id"`
	Preset      *PresetResponse `json:"preset,omitempty"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}

type GeneratePresetRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3,max=500"`
}

type NamePresetRequest struct {
	PrimaryColor    string `json:"primary_color" validate:"required,hexcolor"`
	SecondaryColor  string `json:"secondary_color" validate:"required,hexcolor"`
	AccentColor     string `json:"accent_color" validate:"required,hexcolor"`
	BackgroundColor string `json:"background_color" validate:"required,hexcolor"`
	ForegroundColor string `json:"foreground_color" validate:"required,hexcolor"`
	Theme           string `json:"theme" validate:"omitempty,oneof=light dark system"`
}

type NamePresetResponse struct {
	Name string `json:"name"`
}

// PresetChangeEvent is pushed to websocket subscribers after every preset mutation.
type PresetChangeEvent struct {
	Event    string          `json:"event"`
	PresetId uuid.UUID       `json:"preset_id"`
	Preset   *PresetResponse `json:"preset,omitempty"`
}
