package db

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatgateway-backend/internal/domain/billing"
	"github.com/yungbote/chatgateway-backend/internal/domain/chat"
	"github.com/yungbote/chatgateway-backend/internal/domain/user"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// identity
		&user.User{},

		// conversations
		&chat.Thread{},
		&chat.Turn{},

		// billing
		&billing.QuotaLedger{},
		&billing.SubscriptionRecord{},
		&billing.PaymentRecord{},
		&billing.Order{},
	)
}
