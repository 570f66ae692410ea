package main

import (
	"log"

	"research-chat-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedCatalog gives one user a project with two reports and a knowledge base to chat against.
func SeedCatalog(db *gorm.DB, userId uuid.UUID) {
	project := model.Project{
		UserId:      userId,
		Name:        "B2B Analytics Launch",
		Description: "Go-to-market research for the analytics add-on",
		Metadata:    datatypes.JSON([]byte(`{"stage":"discovery"}`)),
	}
	if err := db.Where("user_id = ? AND name = ?", userId, project.Name).FirstOrCreate(&project).Error; err != nil {
		log.Printf("Error creating project: %v", err)
		return
	}

	documents := []model.Document{
		{UserId: userId, ProjectId: &project.Id, Title: "ICP Profile: Mid-market SaaS", Description: "Ideal customer profile for mid-market SaaS buyers", ReportType: "icp", Metadata: datatypes.JSON([]byte(`{"sections":6}`))},
		{UserId: userId, ProjectId: &project.Id, Title: "Niche Evaluation: Revenue Ops", Description: "Scoring of the revenue operations niche", ReportType: "niche", Metadata: datatypes.JSON([]byte(`{"score":78}`))},
	}
	for i := range documents {
		if err := db.Where("user_id = ? AND title = ?", userId, documents[i].Title).FirstOrCreate(&documents[i]).Error; err != nil {
			log.Printf("Error creating document '%s': %v", documents[i].Title, err)
		}
	}

	kb := model.KnowledgeBase{
		UserId:      userId,
		Name:        "Competitor Notes",
		Description: "Interview notes and pricing pages of competitors",
	}
	if err := db.Where("user_id = ? AND name = ?", userId, kb.Name).FirstOrCreate(&kb).Error; err != nil {
		log.Printf("Error creating knowledge base: %v", err)
	}
}
