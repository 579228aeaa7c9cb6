package user

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/chatgateway-backend/internal/domain/user"
	"github.com/yungbote/chatgateway-backend/internal/platform/dbctx"
	"github.com/yungbote/chatgateway-backend/internal/platform/logger"
)

type UserRepo interface {
	// UpsertByGoogleSub creates the user on first sign-in and refreshes the
	// profile fields afterwards. The stored row is returned.
	UpsertByGoogleSub(dbc dbctx.Context, u *user.User) (*user.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*user.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (ur *userRepo) UpsertByGoogleSub(dbc dbctx.Context, u *user.User) (*user.User, error) {
	if u == nil || u.GoogleSub == "" {
		return nil, fmt.Errorf("user requires google_sub")
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if err := dbc.DB(ur.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "google_sub"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "avatar_url", "updated_at"}),
		}).
		Create(u).Error; err != nil {
		return nil, err
	}
	var out user.User
	if err := dbc.DB(ur.db).Where("google_sub = ?", u.GoogleSub).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// GetByID returns (nil, nil) when the user does not exist.
func (ur *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*user.User, error) {
	var out user.User
	err := dbc.DB(ur.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
