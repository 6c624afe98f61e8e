package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/access"
	"github.com/neuromagic/academy/core/learning"
	"github.com/neuromagic/academy/core/payment"
	"github.com/neuromagic/academy/core/user"
	"github.com/neuromagic/academy/storage/database"
	sqlxrepos "github.com/neuromagic/academy/storage/database/sqlx"
	testutil "github.com/neuromagic/academy/tests"
)

func TestUserRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	usr := testutil.CreateUser(t, repo, "alice", "alice@test.ru", "secret-pass-42", true, false)

	t.Run("get", func(t *testing.T) {
		for _, filter := range []user.GetFilter{
			{ID: usr.ID},
			{Username: "alice"},
			{Email: "alice@test.ru"},
			{UsernameOrEmail: "alice@test.ru"},
		} {
			got, err := repo.GetUser(ctx, filter)
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.NoError(t, got.CheckPassword("secret-pass-42"))
		}
		_, err := repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{TelegramID: 42})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "alice", "other@test.ru", nil))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "bob", "alice@test.ru", nil))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "alice", "alice@test.ru", []user.User{usr}))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "bob", "bob@test.ru", nil))
	})

	t.Run("update", func(t *testing.T) {
		usr.TelegramID = 42
		usr.TelegramUsername = "alice_tg"
		usr.LastLogin = time.Now().UTC().Truncate(time.Second)
		_, err := repo.UpdateUser(ctx, usr)
		require.NoError(t, err)

		got, err := repo.GetUser(ctx, user.GetFilter{TelegramID: 42})
		require.NoError(t, err)
		assert.Equal(t, "alice_tg", got.TelegramUsername)
		assert.True(t, usr.LastLogin.Equal(got.LastLogin))

		_, err = repo.UpdateUser(ctx, user.User{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("verifications", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		ev := user.EmailVerification{
			Email:        "bob@test.ru",
			Username:     "bob",
			PasswordHash: []byte("hash"),
			Code:         "123456",
			ExpiresAt:    now.Add(10 * time.Minute),
			SentAt:       now,
			CreatedAt:    now,
		}
		_, err := repo.CreateVerification(ctx, ev)
		require.NoError(t, err)
		ev.Code = "654321"
		ev.CreatedAt = now.Add(time.Second)
		second, err := repo.CreateVerification(ctx, ev)
		require.NoError(t, err)

		got, err := repo.GetPendingVerification(ctx, "bob@test.ru")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		assert.Equal(t, "654321", got.Code)

		got.VerifiedAt = now
		_, err = repo.UpdateVerification(ctx, got)
		require.NoError(t, err)
		_, err = repo.GetPendingVerification(ctx, "bob@test.ru")
		assert.Equal(t, user.ErrVerificationNotFound, err)
	})
}

func TestAttemptStore(t *testing.T) {
	db := testutil.OpenDB(t)
	store := sqlxrepos.NewAttemptStore(db)
	ctx := context.Background()
	id := user.AttemptIdentifier("Alice", "10.0.0.1")

	la, err := store.GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.LoginAttempt{Identifier: id}, la)

	now := time.Now().UTC().Truncate(time.Second)
	la.Attempts = 5
	la.LastAttemptAt = now
	la.BlockedUntil = now.Add(15 * time.Minute)
	require.NoError(t, store.SaveAttempt(ctx, la))
	la.Attempts = 6
	require.NoError(t, store.SaveAttempt(ctx, la))

	got, err := store.GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Attempts)
	assert.True(t, got.IsBlocked(now))

	require.NoError(t, store.ResetAttempts(ctx, id))
	got, err = store.GetAttempt(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)
}

func TestEnrollmentRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewEnrollmentRepository(db)
	ctx := context.Background()
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "alice", "alice@test.ru", "", true, false)

	now := time.Now().UTC().Truncate(time.Second)
	e := access.Enrollment{
		UserID:        usr.ID,
		CourseSlug:    "ai-for-beginners",
		PurchasedAt:   now,
		PricePaid:     decimal.RequireFromString("24000.00"),
		PaymentMethod: access.MethodAdmin,
		Status:        access.StatusPaid,
		UpdatedAt:     now,
	}
	enr, created, err := repo.CreateEnrollment(ctx, e)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.CreateEnrollment(ctx, e)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, enr.ID, again.ID)
	assert.True(t, e.PricePaid.Equal(again.PricePaid))

	enr.Status = access.StatusActive
	enr.UpdatedAt = now.Add(time.Minute)
	enr, err = repo.UpdateEnrollmentStatus(ctx, enr)
	require.NoError(t, err)
	assert.Equal(t, access.StatusActive, enr.Status)

	enrs, err := repo.QueryEnrollments(ctx, usr.ID)
	require.NoError(t, err)
	assert.Len(t, enrs, 1)

	require.NoError(t, repo.DeleteEnrollment(ctx, usr.ID, "ai-for-beginners"))
	assert.Equal(t, access.ErrNotFound, repo.DeleteEnrollment(ctx, usr.ID, "ai-for-beginners"))
	_, err = repo.GetEnrollment(ctx, usr.ID, "ai-for-beginners")
	assert.Equal(t, access.ErrNotFound, err)
}

func TestLearningRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewLearningRepository(db)
	ctx := context.Background()
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "alice", "alice@test.ru", "", true, false)

	quiz := &learning.Quiz{Questions: []learning.Question{
		{Question: "2+2?", Answers: []string{"3", "4"}, Correct: 1, Explanation: "arithmetic"},
	}}
	mods := []learning.Module{
		{Order: 1, Title: "Intro", Lessons: []learning.Lesson{
			{Order: 1, Title: "Hello", ContentType: learning.ContentText, ContentText: "# Hi", EstimatedTimeMinutes: 15, IsFree: true},
			{Order: 2, Title: "Check", ContentType: learning.ContentQuiz, Quiz: quiz, EstimatedTimeMinutes: 5},
		}},
		{Order: 2, Title: "Video", Lessons: []learning.Lesson{
			{Order: 1, Title: "Watch", ContentType: learning.ContentVideo, VideoURL: "https://v.test/1", VideoDurationMinutes: 12, EstimatedTimeMinutes: 12},
		}},
	}
	tx := database.NewTransactor(db)

	var stored []learning.Module
	err := tx.RunInTx(ctx, func(exec core.DBExecutor) (err error) {
		stored, err = repo.ReplaceCourseContent(ctx, "vibe-coding", mods, exec)
		return err
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Len(t, stored[0].Lessons, 2)

	lsn, err := repo.GetLesson(ctx, stored[0].Lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "vibe-coding", lsn.CourseSlug)
	require.True(t, lsn.HasQuiz())
	assert.Equal(t, 1, lsn.Quiz.Questions[0].Correct)
	assert.Equal(t, "arithmetic", lsn.Quiz.Questions[0].Explanation)

	t.Run("re-import keeps IDs", func(t *testing.T) {
		mods[0].Lessons = mods[0].Lessons[:1]
		mods[0].Lessons[0].Title = "Hello again"
		again, err := repo.ReplaceCourseContent(ctx, "vibe-coding", mods[:1])
		require.NoError(t, err)
		require.Len(t, again, 1)
		require.Len(t, again[0].Lessons, 1)
		assert.Equal(t, stored[0].ID, again[0].ID)
		assert.Equal(t, stored[0].Lessons[0].ID, again[0].Lessons[0].ID)
		assert.Equal(t, "Hello again", again[0].Lessons[0].Title)

		_, err = repo.GetLesson(ctx, stored[1].Lessons[0].ID)
		assert.Equal(t, learning.ErrLessonNotFound, err)
	})

	t.Run("progress", func(t *testing.T) {
		lessonID := stored[0].Lessons[0].ID
		p, err := repo.GetProgress(ctx, usr.ID, lessonID)
		require.NoError(t, err)
		assert.Equal(t, learning.StatusNotStarted, p.Status)

		now := time.Now().UTC().Truncate(time.Second)
		p.Status = learning.StatusCompleted
		p.StartedAt = now
		p.CompletedAt = now
		p.LastAccessedAt = now
		p.TimeSpentSeconds = 90
		_, err = repo.SaveProgress(ctx, p)
		require.NoError(t, err)
		p.TimeSpentSeconds = 120
		_, err = repo.SaveProgress(ctx, p)
		require.NoError(t, err)

		progs, err := repo.QueryProgress(ctx, usr.ID, "vibe-coding")
		require.NoError(t, err)
		require.Len(t, progs, 1)
		assert.Equal(t, 120, progs[0].TimeSpentSeconds)
		assert.True(t, progs[0].IsCompleted())

		progs, err = repo.QueryProgress(ctx, usr.ID, "ai-for-beginners")
		require.NoError(t, err)
		assert.Empty(t, progs)
	})
}

func TestPaymentRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewPaymentRepository(db)
	ctx := context.Background()
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "alice", "alice@test.ru", "", true, false)

	now := time.Now().UTC().Truncate(time.Second)
	pay, err := repo.CreatePayment(ctx, payment.Payment{
		UserID:           usr.ID,
		CourseSlug:       "ai-for-beginners",
		GatewayPaymentID: "gw-1",
		Amount:           decimal.RequireFromString("24000.00"),
		Currency:         payment.CurrencyRUB,
		Status:           payment.StatusPending,
		ConfirmationURL:  "https://pay.test/1",
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)

	got, err := repo.GetPayment(ctx, payment.GetFilter{GatewayPaymentID: "gw-1"})
	require.NoError(t, err)
	assert.Equal(t, pay.ID, got.ID)
	assert.True(t, pay.Amount.Equal(got.Amount))

	err = database.NewTransactor(db).RunInTx(ctx, func(exec core.DBExecutor) error {
		locked, err := repo.GetPayment(ctx, payment.GetFilter{ID: pay.ID, ForUpdate: true}, exec)
		if err != nil {
			return err
		}
		locked.Status = payment.StatusSucceeded
		locked.PaidAt = now
		_, err = repo.UpdatePayment(ctx, locked, exec)
		return err
	})
	require.NoError(t, err)

	pays, err := repo.QueryPayments(ctx, usr.ID)
	require.NoError(t, err)
	require.Len(t, pays, 1)
	assert.Equal(t, payment.StatusSucceeded, pays[0].Status)
	assert.True(t, now.Equal(pays[0].PaidAt))

	_, err = repo.GetPayment(ctx, payment.GetFilter{ID: "nope"})
	assert.Equal(t, payment.ErrNotFound, err)
}
