package main

import (
	"log"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/model"

	"gorm.io/gorm"
)

// SeedPresets inserts the built-in palettes and binds the first one to "/" in development.
func SeedPresets(db *gorm.DB) {
	presets := []model.Preset{
		{Name: "Ocean Ledger", PrimaryColor: "#0f4c81", SecondaryColor: "#1b998b", AccentColor: "#f4a261", BackgroundColor: "#ffffff", ForegroundColor: "#1d1d1f", Theme: constant.ThemeLight, HeadingFont: "Inter", BodyFont: "Inter", BorderRadius: "0.5rem", IsFavorite: true},
		{Name: "Midnight Desk", PrimaryColor: "#7c3aed", SecondaryColor: "#22d3ee", AccentColor: "#facc15", BackgroundColor: "#0b0f19", ForegroundColor: "#e5e7eb", Theme: constant.ThemeDark, HeadingFont: "Space Grotesk", BodyFont: "Inter", BorderRadius: "0.75rem"},
		{Name: "Paper Trail", PrimaryColor: "#374151", SecondaryColor: "#9ca3af", AccentColor: "#dc2626", BackgroundColor: "#faf7f2", ForegroundColor: "#111827", Theme: constant.ThemeSystem, HeadingFont: "Merriweather", BodyFont: "Source Sans 3", BorderRadius: "0.25rem"},
	}

	for i := range presets {
		var existing model.Preset
		if err := db.Where("name = ?", presets[i].Name).First(&existing).Error; err == nil {
			log.Printf("Preset '%s' already exists, skipping...", presets[i].Name)
			presets[i] = existing
			continue
		}
		if err := db.Create(&presets[i]).Error; err != nil {
			log.Printf("Error creating preset '%s': %v", presets[i].Name, err)
			continue
		}
		log.Printf("Created preset: %s", presets[i].Name)
	}

	binding := model.WebsiteSettings{
		Environment: constant.EnvironmentDevelopment,
		Route:       constant.DefaultRoute,
		PresetId:    presets[0].Id,
	}
	var existing model.WebsiteSettings
	if err := db.Where("environment = ? AND route = ?", binding.Environment, binding.Route).First(&existing).Error; err == nil {
		log.Println("Development binding already exists, skipping...")
		return
	}
	if err := db.Omit("Preset").Create(&binding).Error; err != nil {
		log.Printf("Error binding default preset: %v", err)
	}
}
