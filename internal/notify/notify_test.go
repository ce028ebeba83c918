// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/eventboard/internal/apperr"
	"github.com/olegiv/eventboard/internal/model"
	"github.com/olegiv/eventboard/internal/store"
	"github.com/olegiv/eventboard/internal/testutil"
)

func TestMain(m *testing.M) {
	testutil.CheapHashing()
	os.Exit(m.Run())
}

type recordingMailer struct {
	mu    sync.Mutex
	mails []Mail
	gate  chan struct{} // when set, Send blocks until closed
	err   error
}

func (r *recordingMailer) Send(_ context.Context, m Mail) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mails = append(r.mails, m)
	return r.err
}

func (r *recordingMailer) sent() []Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mail(nil), r.mails...)
}

func TestAsyncDispatcher_StoresAndMails(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	u := testutil.CreateUser(t, db, "Stu", "stu@example.com", "Passw0rd!", model.RoleStudent, true)

	mailer := &recordingMailer{}
	d := NewAsyncDispatcher(db, mailer, testutil.TestLoggerSilent(), nil, DefaultConfig())
	d.Start(context.Background())

	ok := d.Create(context.Background(), Message{
		UserID: u.ID, Title: "Hello", Body: "World", RelatedType: model.RelatedEvent, RelatedID: 9, SendEmail: true,
	})
	require.True(t, ok)
	d.Stop()

	inbox := NewInbox(db)
	items, err := inbox.List(context.Background(), u.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Hello", items[0].Title)
	assert.Equal(t, KindInfo, items[0].Kind, "empty kind defaults to info")
	assert.Equal(t, model.RelatedEvent, items[0].RelatedType.String)
	assert.Equal(t, int64(9), items[0].RelatedID.Int64)

	mails := mailer.sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "stu@example.com", mails[0].To)
	assert.Equal(t, "Hello", mails[0].Subject)
}

func TestAsyncDispatcher_InlineWhenNotRunning(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	u := testutil.CreateUser(t, db, "Stu", "stu@example.com", "Passw0rd!", model.RoleStudent, true)

	d := NewAsyncDispatcher(db, &recordingMailer{}, testutil.TestLoggerSilent(), nil, DefaultConfig())
	require.True(t, d.Create(context.Background(), Message{UserID: u.ID, Title: "T", Body: "B"}))

	n, err := NewInbox(db).UnreadCount(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAsyncDispatcher_QueueFullDeliversInline(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	u := testutil.CreateUser(t, db, "Stu", "stu@example.com", "Passw0rd!", model.RoleStudent, true)

	mailer := &recordingMailer{gate: make(chan struct{})}
	d := NewAsyncDispatcher(db, mailer, testutil.TestLoggerSilent(), nil, Config{Workers: 1, QueueSize: 1})
	d.Start(context.Background())

	ctx := context.Background()
	// The worker picks this one up and blocks in the mailer.
	require.True(t, d.Create(ctx, Message{UserID: u.ID, Title: "first", SendEmail: true}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)

	// Fills the queue.
	require.True(t, d.Create(ctx, Message{UserID: u.ID, Title: "second"}))
	// No room left: stored inline before Create returns.
	require.True(t, d.Create(ctx, Message{UserID: u.ID, Title: "third"}))

	items, err := NewInbox(db).List(ctx, u.ID, 10, 0)
	require.NoError(t, err)
	titles := map[string]bool{}
	for _, n := range items {
		titles[n.Title] = true
	}
	assert.True(t, titles["third"], "overflow message should be stored inline")

	close(mailer.gate)
	d.Stop()

	n, err := NewInbox(db).UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "nothing is lost on stop")
}

func TestAsyncDispatcher_CreateForUsers(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	a := testutil.CreateUser(t, db, "A", "a@example.com", "Passw0rd!", model.RoleStudent, true)
	b := testutil.CreateUser(t, db, "B", "b@example.com", "Passw0rd!", model.RoleStudent, true)

	d := NewAsyncDispatcher(db, nil, testutil.TestLoggerSilent(), nil, DefaultConfig())
	n := d.CreateForUsers(context.Background(), []int64{a.ID, b.ID}, Message{Title: "All"})
	assert.Equal(t, 2, n)

	for _, id := range []int64{a.ID, b.ID} {
		c, err := NewInbox(db).UnreadCount(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c)
	}
}

func TestAsyncDispatcher_StorageFailureReportsFalse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("INSERT INTO notifications").WillReturnError(errors.New("disk I/O error"))

	mailer := &recordingMailer{}
	d := NewAsyncDispatcher(db, mailer, testutil.TestLoggerSilent(), nil, DefaultConfig())
	assert.False(t, d.Create(context.Background(), Message{UserID: 1, Title: "T", SendEmail: true}))
	assert.Empty(t, mailer.sent(), "no mail for an unstored notification")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAsyncDispatcher_MailFailureDoesNotFailCreate(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	u := testutil.CreateUser(t, db, "Stu", "stu@example.com", "Passw0rd!", model.RoleStudent, true)

	d := NewAsyncDispatcher(db, &recordingMailer{err: errors.New("smtp down")}, testutil.TestLoggerSilent(), nil, DefaultConfig())
	assert.True(t, d.Create(context.Background(), Message{UserID: u.ID, Title: "T", SendEmail: true}))
	assert.False(t, d.SendMail(context.Background(), Mail{To: "x@example.com", Subject: "S"}))
}

func TestStatusChangeMessage(t *testing.T) {
	ev := model.Event{ID: 3, Title: "Fall Fair", CreatedBy: 11}

	tests := []struct {
		to    model.EventStatus
		title string
		kind  string
	}{
		{model.EventApproved, "✅ Your event has been approved!", KindSuccess},
		{model.EventRejected, "❌ Your event has been rejected.", KindError},
		{model.EventPending, "⏳ Your event is pending review.", KindInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			msg := StatusChangeMessage(ev, model.EventPending, tt.to)
			assert.Equal(t, int64(11), msg.UserID)
			assert.Equal(t, tt.title, msg.Title)
			assert.Equal(t, tt.kind, msg.Kind)
			assert.Equal(t, model.RelatedEvent, msg.RelatedType)
			assert.Equal(t, int64(3), msg.RelatedID)
			assert.True(t, msg.SendEmail)
			assert.Contains(t, msg.Body, "Fall Fair")
		})
	}
}

func TestNotifyNewEvent_NoStudents(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	d := NewAsyncDispatcher(db, nil, testutil.TestLoggerSilent(), nil, DefaultConfig())
	assert.Equal(t, 0, NotifyNewEvent(context.Background(), d, nil, model.Event{ID: 1, Title: "X"}))
}

func TestInbox(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "O", "o@example.com", "Passw0rd!", model.RoleStudent, true)
	other := testutil.CreateUser(t, db, "X", "x@example.com", "Passw0rd!", model.RoleStudent, true)

	q := store.New(db)
	var ids []int64
	for i := 0; i < 3; i++ {
		n, err := q.CreateNotification(ctx, store.CreateNotificationParams{
			UserID: owner.ID, Title: "T", Message: "M", Kind: KindInfo, CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	inbox := NewInbox(db)

	err := inbox.MarkRead(ctx, other.ID, ids[0])
	assert.ErrorIs(t, err, apperr.ErrNotFound, "foreign notification")
	require.NoError(t, inbox.MarkRead(ctx, owner.ID, ids[0]))
	require.NoError(t, inbox.MarkRead(ctx, owner.ID, ids[0]), "already read is fine")

	c, err := inbox.UnreadCount(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c)

	assert.ErrorIs(t, inbox.Delete(ctx, other.ID, ids[1]), apperr.ErrNotFound)
	require.NoError(t, inbox.Delete(ctx, owner.ID, ids[1]))

	n, err := inbox.MarkAllRead(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = inbox.DeleteAllRead(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	items, err := inbox.List(ctx, owner.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
}

func TestInbox_Cleanup(t *testing.T) {
	db, cleanup := testutil.TestDB(t)
	defer cleanup()
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "O", "o@example.com", "Passw0rd!", model.RoleStudent, true)

	q := store.New(db)
	n, err := q.CreateNotification(ctx, store.CreateNotificationParams{
		UserID: u.ID, Title: "old", Message: "M", Kind: KindInfo, CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	})
	require.NoError(t, err)
	_, err = q.MarkNotificationRead(ctx, n.ID, u.ID, time.Now().Add(-31*24*time.Hour))
	require.NoError(t, err)
	_, err = q.CreateNotification(ctx, store.CreateNotificationParams{
		UserID: u.ID, Title: "unread", Message: "M", Kind: KindInfo, CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	})
	require.NoError(t, err)

	removed, err := NewInbox(db).Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
