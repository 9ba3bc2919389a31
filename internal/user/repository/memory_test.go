package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"identity-registry/internal/user/domain"
)

func mustEmailUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := domain.NewEmailUser("John Doe", email, "secret")
	if err != nil {
		t.Fatalf("NewEmailUser(%q): %v", email, err)
	}
	return u
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u := mustEmailUser(t, "John@Example.com")
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByLogin(ctx, "john@example.com")
	if err != nil {
		t.Fatalf("GetByLogin: %v", err)
	}
	if got != u {
		t.Errorf("GetByLogin = %v, want stored user", got)
	}
	missing, err := repo.GetByLogin(ctx, "nobody@example.com")
	if err != nil || missing != nil {
		t.Errorf("GetByLogin(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestMemoryRepository_DuplicateLogin(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	if err := repo.Create(ctx, mustEmailUser(t, "john@example.com")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, mustEmailUser(t, " JOHN@example.com "))
	if !errors.Is(err, ErrDuplicateLogin) {
		t.Errorf("Create duplicate err = %v, want ErrDuplicateLogin", err)
	}
}

func TestMemoryRepository_ConcurrentCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := domain.NewEmailUser("John", "race@example.com", "p")
			if err != nil {
				t.Errorf("NewEmailUser: %v", err)
				return
			}
			if repo.Create(ctx, u) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("successful creates = %d, want 1", wins.Load())
	}
}

func TestMemoryRepository_ListClear(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	for _, email := range []string{"c@example.com", "a@example.com", "b@example.com"} {
		if err := repo.Create(ctx, mustEmailUser(t, email)); err != nil {
			t.Fatalf("Create(%q): %v", email, err)
		}
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a@example.com", "b@example.com", "c@example.com"}
	if len(list) != len(want) {
		t.Fatalf("List len = %d, want %d", len(list), len(want))
	}
	for i, u := range list {
		if u.Login() != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, u.Login(), want[i])
		}
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	list, _ = repo.List(ctx)
	if len(list) != 0 {
		t.Errorf("List after Clear len = %d, want 0", len(list))
	}
}

func TestMemoryRepository_NilUser(t *testing.T) {
	if err := NewMemoryRepository().Create(context.Background(), nil); err == nil {
		t.Error("Create(nil) err = nil, want error")
	}
}
