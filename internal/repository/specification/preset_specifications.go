package specification

import "gorm.io/gorm"

type ByEnvironmentRoute struct {
	Environment string
	Route       string
}

func (s ByEnvironmentRoute) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("environment = ? AND route = ?", s.Environment, s.Route)
}

// FavoritesFirst orders favorite presets ahead of the rest, newest first inside each group
type FavoritesFirst struct{}

func (s FavoritesFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("is_favorite DESC").Order("updated_at DESC")
}
