package services

import (
	"context"
	"errors"
	"testing"

	"support-chat/internal/domain/user"
	"support-chat/internal/testutil"
	chat_errors "support-chat/pkg/errors"

	"github.com/google/uuid"
)

func TestResolveOrCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.CreateUser(t, f.db, "customer")
	admin := testutil.CreateUser(t, f.db, "agent", user.RoleAdmin)

	first, created, err := f.convSvc.ResolveOrCreate(ctx, customer.ID, admin.ID, "hello")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !created || first.LastMessage != "hello" || first.TotalMessages != 0 {
		t.Fatalf("first = %+v created=%v", first, created)
	}

	again, created, err := f.convSvc.ResolveOrCreate(ctx, admin.ID, customer.ID, "ignored")
	if err != nil {
		t.Fatalf("again: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("second resolve created a new conversation")
	}
	if again.LastMessage != "hello" {
		t.Fatalf("resolve mutated the summary: %q", again.LastMessage)
	}
}

func TestResolveOrCreateRejectsBadPairs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, f.db, "alpha", user.RoleAdmin)
	b := testutil.CreateUser(t, f.db, "bravo", user.RoleAdmin)

	if _, _, err := f.convSvc.ResolveOrCreate(ctx, a.ID, b.ID, ""); !errors.Is(err, chat_errors.ErrInvalidInput) {
		t.Fatalf("two admins err = %v", err)
	}
	if _, _, err := f.convSvc.ResolveOrCreate(ctx, a.ID, uuid.New(), ""); !errors.Is(err, chat_errors.ErrNotFound) {
		t.Fatalf("unknown receiver err = %v", err)
	}
}

func TestGetOrCreateSupport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	customer := testutil.CreateUser(t, f.db, "customer")
	firstAdmin := testutil.CreateUser(t, f.db, "first", user.RoleAdmin)
	secondAdmin := testutil.CreateUser(t, f.db, "second", user.RoleAdmin)

	view, created, err := f.convSvc.GetOrCreateSupport(ctx, customer.ID, nil)
	if err != nil {
		t.Fatalf("support: %v", err)
	}
	if !created || view.AdminID != firstAdmin.ID.String() {
		t.Fatalf("expected new conversation with earliest admin, got %+v", view)
	}
	if view.Counterpart == nil || view.Counterpart.Name != "first" {
		t.Fatalf("counterpart = %+v", view.Counterpart)
	}

	chosen, created, err := f.convSvc.GetOrCreateSupport(ctx, customer.ID, &secondAdmin.ID)
	if err != nil {
		t.Fatalf("explicit admin: %v", err)
	}
	if !created || chosen.AdminID != secondAdmin.ID.String() {
		t.Fatalf("explicit admin = %+v", chosen)
	}

	if _, err := f.msgSvc.Send(ctx, principalOf(customer), SendInput{ReceiverID: secondAdmin.ID.String(), Text: "bump"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	latest, created, err := f.convSvc.GetOrCreateSupport(ctx, customer.ID, nil)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if created || latest.ID != chosen.ID {
		t.Fatalf("expected most recent conversation %s, got %s", chosen.ID, latest.ID)
	}
}

func TestListAndMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.db, "agent", user.RoleAdmin)
	older := testutil.CreateUser(t, f.db, "older")
	newer := testutil.CreateUser(t, f.db, "newer")

	for _, u := range []user.User{older, newer} {
		if _, err := f.msgSvc.Send(ctx, principalOf(u), SendInput{ReceiverID: admin.ID.String(), Text: "hi from " + u.Name}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	list, err := f.convSvc.ListForAdmin(ctx, admin.ID, 1, 20)
	if err != nil {
		t.Fatalf("list admin: %v", err)
	}
	if len(list.Conversations) != 2 || list.Pagination.TotalCount != 2 {
		t.Fatalf("admin list = %+v", list)
	}
	if c := list.Conversations[0].Counterpart; c == nil || c.Name != "newer" {
		t.Fatalf("first item counterpart = %+v, want newer", c)
	}

	mine, err := f.convSvc.ListForUser(ctx, older.ID, 1, 20)
	if err != nil {
		t.Fatalf("list user: %v", err)
	}
	if len(mine.Conversations) != 1 || mine.Conversations[0].Counterpart.Name != "agent" {
		t.Fatalf("user list = %+v", mine)
	}

	convID := mine.Conversations[0].ID
	if err := f.convSvc.MarkRead(ctx, newer.ID, convID); !errors.Is(err, chat_errors.ErrForbidden) {
		t.Fatalf("outsider mark read err = %v", err)
	}
	if err := f.convSvc.MarkRead(ctx, admin.ID, convID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, err := f.convSvc.Get(ctx, admin.ID, convID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UnreadCount != 0 || got.TotalMessages != 1 {
		t.Fatalf("after mark read = %+v", got)
	}

	latest, err := f.convSvc.LatestForAdmin(ctx, admin.ID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID.String() != list.Conversations[0].ID {
		t.Fatalf("latest = %s, want %s", latest.ID, list.Conversations[0].ID)
	}
}
