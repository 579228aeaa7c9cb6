package app

import (
	"gorm.io/gorm"

	billingrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/billing"
	chatrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/chat"
	userrepo "github.com/yungbote/chatgateway-backend/internal/data/repos/user"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type Repos struct {
	User userrepo.UserRepo

	Threads chatrepo.ThreadRepo
	Turns   chatrepo.TurnRepo

	Ledger        billingrepo.LedgerRepo
	Subscriptions billingrepo.SubscriptionRepo
	Payments      billingrepo.PaymentRepo
	Orders        billingrepo.OrderRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          userrepo.NewUserRepo(db, log),
		Threads:       chatrepo.NewThreadRepo(db, log),
		Turns:         chatrepo.NewTurnRepo(db, log),
		Ledger:        billingrepo.NewLedgerRepo(db, log),
		Subscriptions: billingrepo.NewSubscriptionRepo(db, log),
		Payments:      billingrepo.NewPaymentRepo(db, log),
		Orders:        billingrepo.NewOrderRepo(db, log),
	}
}
