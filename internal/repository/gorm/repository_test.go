package gormrepository

import (
	"context"
	"errors"
	"testing"

	"propdesk/internal/repository"
)

func TestInTxWithoutDatabase(t *testing.T) {
	called := false
	fn := func(tx repository.Tx) error {
		called = true
		return nil
	}
	for _, s := range []*Store{nil, New(nil)} {
		err := s.InTx(context.Background(), fn)
		if !errors.Is(err, ErrNoDatabase) {
			t.Fatalf("err=%v want=%v", err, ErrNoDatabase)
		}
	}
	if called {
		t.Fatalf("fn must not run without a database")
	}
}
