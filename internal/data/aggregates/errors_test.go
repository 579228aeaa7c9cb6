package aggregates

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/chatgateway-backend/internal/domain/aggregates"
	"gorm.io/gorm"
)

func TestMapError_PgUniqueViolation(t *testing.T) {
	err := MapError("op", &pgconn.PgError{Code: "23505"})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_DuplicatedKey(t *testing.T) {
	if !IsUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key to be a unique violation")
	}
}

func TestMapError_SQLiteUniqueMessage(t *testing.T) {
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: payments.payment_id")) {
		t.Fatalf("expected sqlite unique message to map to conflict")
	}
}

func TestMapError_NotFound(t *testing.T) {
	err := MapError("op", gorm.ErrRecordNotFound)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got %q (%v)", domainagg.CodeOf(err), err)
	}
}

func TestMapError_PassthroughDomainErrors(t *testing.T) {
	sentinel := errors.New("forbidden")
	if out := MapError("op", sentinel); !errors.Is(out, sentinel) {
		t.Fatalf("expected sentinel to survive mapping, got %v", out)
	}
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	if out := MapError("other", in); out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
}
