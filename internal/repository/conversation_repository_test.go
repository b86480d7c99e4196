package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"support-chat/internal/domain/conversation"
	"support-chat/internal/domain/user"
	"support-chat/internal/repository"
	"support-chat/internal/testutil"
	chat_errors "support-chat/pkg/errors"
)

func TestCreateIfAbsentKeepsFirstRow(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	customer := testutil.CreateUser(t, db, "customer")
	admin := testutil.CreateUser(t, db, "agent", user.RoleAdmin)

	first, created, err := repo.CreateIfAbsent(ctx, conversation.New(customer.ID, admin.ID, "first"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatalf("expected first insert to create")
	}

	// Same pair with the columns swapped still hits the pair key.
	second, created, err := repo.CreateIfAbsent(ctx, conversation.New(admin.ID, customer.ID, "second"))
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if created {
		t.Fatalf("expected existing row to be returned")
	}
	if second.ID != first.ID {
		t.Fatalf("got conversation %s, want %s", second.ID, first.ID)
	}
	if second.LastMessage != "first" || second.UserID != customer.ID {
		t.Fatalf("existing row was modified: %+v", second)
	}

	count, err := repo.CountByPair(ctx, customer.ID, admin.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 conversation, got %d", count)
	}
}

func TestRecordMessageAppliesDeltas(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	customer := testutil.CreateUser(t, db, "customer")
	admin := testutil.CreateUser(t, db, "agent", user.RoleAdmin)
	conv, _, err := repo.CreateIfAbsent(ctx, conversation.New(customer.ID, admin.ID, ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now().Add(time.Minute)
	for _, text := range []string{"one", "two", "three"} {
		if err := repo.RecordMessage(ctx, conv.ID, text, at); err != nil {
			t.Fatalf("record %s: %v", text, err)
		}
	}

	got, err := repo.GetByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalMessages != 3 || got.UnreadCount != 3 {
		t.Fatalf("counters = %d/%d, want 3/3", got.TotalMessages, got.UnreadCount)
	}
	if got.LastMessage != "three" {
		t.Fatalf("last message = %q", got.LastMessage)
	}
	if !got.UpdatedAt.After(conv.UpdatedAt) {
		t.Fatalf("updated_at not refreshed")
	}

	if err := repo.ResetUnread(ctx, conv.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, _ = repo.GetByID(ctx, conv.ID)
	if got.UnreadCount != 0 || got.TotalMessages != 3 {
		t.Fatalf("reset touched the wrong counters: %+v", got)
	}
}

func TestRecordMessageUnknownConversation(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewConversationRepository(db)

	err := repo.RecordMessage(context.Background(), conversation.New(testutil.CreateUser(t, db, "a").ID, testutil.CreateUser(t, db, "b").ID, "").ID, "x", time.Now())
	if !errors.Is(err, chat_errors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByAdminOrdersByRecency(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewConversationRepository(db)
	ctx := context.Background()

	admin := testutil.CreateUser(t, db, "agent", user.RoleAdmin)
	older := testutil.CreateUser(t, db, "older")
	newer := testutil.CreateUser(t, db, "newer")

	c1, _, _ := repo.CreateIfAbsent(ctx, conversation.New(older.ID, admin.ID, ""))
	c2, _, _ := repo.CreateIfAbsent(ctx, conversation.New(newer.ID, admin.ID, ""))
	if err := repo.RecordMessage(ctx, c1.ID, "bump", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("record: %v", err)
	}

	list, total, err := repo.ListByAdmin(ctx, admin.ID, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d/%d", len(list), total)
	}
	if list[0].ID != c1.ID || list[1].ID != c2.ID {
		t.Fatalf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}

	latest, err := repo.LatestByAdmin(ctx, admin.ID)
	if err != nil || latest.ID != c1.ID {
		t.Fatalf("latest = %s, %v", latest.ID, err)
	}

	ok, err := repo.IsParticipant(ctx, c2.ID, older.ID)
	if err != nil || ok {
		t.Fatalf("older should not be a participant of c2 (%v)", err)
	}
}
