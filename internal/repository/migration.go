package repository

import (
	"fmt"

	"support-chat/internal/domain/conversation"
	"support-chat/internal/domain/message"
	"support-chat/internal/domain/outbox"
	"support-chat/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.Session{},
		&conversation.Conversation{},
		&message.Message{},
		&outbox.Event{},
	}
}

// InitSchema runs gorm auto-migration for all models. The unique index on
// conversations.pair_key is what keeps one conversation per pair.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// TruncateAll deletes every row, children first.
func TruncateAll(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
			return fmt.Errorf("truncate %T: %w", models[i], err)
		}
	}
	return nil
}
