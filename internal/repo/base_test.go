package repo

import (
	"context"
	"testing"

	"github.com/coursehub/coursehub-backend/pkg/db/dbtest"
)

type ctxKey struct{}

func TestBaseDB_BindsContext(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil || withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseBind(t *testing.T) {
	db := dbtest.Open(t)
	base := NewBase(db)

	if got := base.Bind(nil); got.db != db {
		t.Fatalf("expected nil tx to keep pooled connection")
	}

	tx := db.Begin()
	defer tx.Rollback()
	if got := base.Bind(tx); got.db != tx {
		t.Fatalf("expected bound base to use the transaction")
	}
}
