package unitofwork

import (
	"context"

	"research-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	MessageRepository() contract.MessageRepository
	ConversationContextRepository() contract.ConversationContextRepository
	CatalogRepository() contract.CatalogRepository
	PresetRepository() contract.PresetRepository
	WebsiteSettingsRepository() contract.WebsiteSettingsRepository
}
