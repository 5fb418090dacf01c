package services

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/esports-booking/live"
	"github.com/Dosada05/esports-booking/models"
	"github.com/Dosada05/esports-booking/utils"
)

func TestMain(m *testing.M) {
	utils.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestAccessService_VerifyAdmin(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	admins := &memAdminRepo{db: db}
	require.NoError(t, admins.Create(ctx, nil, &models.Admin{Name: "Staff", Email: "staff@arena.test", Role: models.RoleSubAdmin}))

	access := NewAccessService(" Owner@Arena.test ", admins)

	tests := []struct {
		name     string
		email    string
		wantRole models.Role
		wantName string
		wantErr  error
	}{
		{name: "owner", email: "owner@arena.test", wantRole: models.RoleSuperAdmin, wantName: superAdminName},
		{name: "owner any case", email: "OWNER@arena.TEST", wantRole: models.RoleSuperAdmin, wantName: superAdminName},
		{name: "sub admin", email: "Staff@Arena.test", wantRole: models.RoleSubAdmin, wantName: "Staff"},
		{name: "player", email: "player@arena.test", wantErr: ErrForbiddenOperation},
		{name: "empty", email: " ", wantErr: ErrForbiddenOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, name, err := access.VerifyAdmin(ctx, tt.email)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, role)
			assert.Equal(t, tt.wantName, name)
		})
	}

	role, err := access.ResolveRole(ctx, "player@arena.test")
	require.NoError(t, err)
	assert.Equal(t, models.RolePlayer, role)

	// Сбой хранилища не превращается в "не админ".
	boom := errors.New("connection reset")
	db.failOn("admins.GetByEmail", boom)
	_, err = access.ResolveRole(ctx, "staff@arena.test")
	assert.ErrorIs(t, err, boom)
}

func TestAuthService(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	admins := &memAdminRepo{db: db}
	auth := NewAuthService(&memUserRepo{db: db}, admins, superAdmin.Email, discardLogger())

	email := gofakeit.Email()
	password := gofakeit.Password(true, true, true, false, false, 12)

	user, err := auth.Register(ctx, RegisterInput{Name: "Ravi", Email: email, Password: password, Mobile: " 98765 "})
	require.NoError(t, err)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, "98765", user.Mobile)

	_, err = auth.Register(ctx, RegisterInput{Name: "Ravi", Email: email, Password: password})
	assert.ErrorIs(t, err, ErrUserEmailConflict)
	_, err = auth.Register(ctx, RegisterInput{Name: "Ravi", Email: "not-an-email", Password: password})
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = auth.Register(ctx, RegisterInput{Name: "Ravi", Email: gofakeit.Email(), Password: "123"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	logged, err := auth.Login(ctx, LoginInput{Email: email, Password: password})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.NotNil(t, logged.LastLogin)
	assert.Empty(t, logged.PasswordHash)

	_, err = auth.Login(ctx, LoginInput{Email: email, Password: password + "x"})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
	_, err = auth.Login(ctx, LoginInput{Email: "ghost@arena.test", Password: password})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	me, err := auth.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, me.Email)
	assert.Empty(t, me.PasswordHash)

	t.Run("staff emails cannot be registered", func(t *testing.T) {
		require.NoError(t, admins.Create(ctx, nil, &models.Admin{Name: "Mod", Email: "mod@arena.test", Role: models.RoleSubAdmin}))

		for _, email := range []string{"OWNER@arena.test", " owner@Arena.test", "Mod@arena.test"} {
			_, err := auth.Register(ctx, RegisterInput{Name: "Mallory", Email: email, Password: password})
			assert.ErrorIs(t, err, ErrUserEmailConflict, email)
			_, err = auth.Login(ctx, LoginInput{Email: email, Password: password})
			assert.ErrorIs(t, err, ErrAuthInvalidCredentials, email)
		}

		boom := errors.New("roster unavailable")
		db.failOn("admins.GetByEmail", boom)
		defer db.failOn("admins.GetByEmail", nil)
		_, err := auth.Register(ctx, RegisterInput{Name: "Later", Email: gofakeit.Email(), Password: password})
		assert.ErrorIs(t, err, boom)
	})
}

func TestAdminService(t *testing.T) {
	ctx := context.Background()
	db := newMemDB()
	users := &memUserRepo{db: db}
	admins := &memAdminRepo{db: db}
	svc := NewAdminService(admins, users, &memTransactor{db: db}, discardLogger())

	t.Run("only the owner manages staff", func(t *testing.T) {
		_, err := svc.CreateSubAdmin(ctx, subAdmin, CreateSubAdminInput{Name: "New", Email: "new@arena.test", Password: "secret1"})
		assert.ErrorIs(t, err, ErrForbiddenOperation)
		_, err = svc.ListSubAdmins(ctx, subAdmin)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
		_, err = svc.ListLogs(ctx, subAdmin, 0)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
	})

	t.Run("creates account with hashed password", func(t *testing.T) {
		admin, err := svc.CreateSubAdmin(ctx, superAdmin, CreateSubAdminInput{Name: "Mod", Email: " Mod@Arena.test ", Password: "secret1"})
		require.NoError(t, err)
		assert.Equal(t, "mod@arena.test", admin.Email)
		assert.Equal(t, superAdmin.Email, admin.CreatedBy)

		u, err := users.GetByEmail(ctx, nil, "mod@arena.test")
		require.NoError(t, err)
		assert.NotEqual(t, "secret1", u.PasswordHash)
		assert.True(t, utils.CheckPasswordHash("secret1", u.PasswordHash))
	})

	t.Run("registered email cannot become staff", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, nil, &models.User{Name: "Vet", Email: "vet@arena.test", PasswordHash: "attacker"}))
		_, err := svc.CreateSubAdmin(ctx, superAdmin, CreateSubAdminInput{Name: "Vet", Email: "vet@arena.test", Password: "secret1"})
		require.ErrorIs(t, err, ErrAdminEmailConflict)

		_, err = admins.GetByEmail(ctx, "vet@arena.test")
		assert.ErrorIs(t, err, ErrAdminNotFound)
		u, err := users.GetByEmail(ctx, nil, "vet@arena.test")
		require.NoError(t, err)
		assert.Equal(t, "attacker", u.PasswordHash)
	})

	t.Run("short password rolls back roster entry", func(t *testing.T) {
		_, err := svc.CreateSubAdmin(ctx, superAdmin, CreateSubAdminInput{Name: "Weak", Email: "weak@arena.test", Password: "123"})
		require.ErrorIs(t, err, ErrPasswordTooShort)
		_, err = users.GetByEmail(ctx, nil, "weak@arena.test")
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = admins.GetByEmail(ctx, "weak@arena.test")
		assert.Error(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := svc.CreateSubAdmin(ctx, superAdmin, CreateSubAdminInput{Name: "Mod", Email: "mod@arena.test", Password: "secret1"})
		assert.ErrorIs(t, err, ErrAdminEmailConflict)
	})

	t.Run("list delete and logs", func(t *testing.T) {
		staff, err := svc.ListSubAdmins(ctx, superAdmin)
		require.NoError(t, err)
		require.Len(t, staff, 1)

		require.NoError(t, svc.DeleteSubAdmin(ctx, superAdmin, staff[0].ID))
		assert.ErrorIs(t, svc.DeleteSubAdmin(ctx, superAdmin, staff[0].ID), ErrAdminNotFound)

		logs, err := svc.ListLogs(ctx, superAdmin, 0)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Contains(t, logs[0].Action, "Deleted admin")
		assert.Equal(t, superAdmin.Email, logs[0].AdminEmail)
	})

	t.Run("failed log write is not fatal", func(t *testing.T) {
		db.failOn("admins.CreateLog", errors.New("log table locked"))
		defer db.failOn("admins.CreateLog", nil)
		assert.NotPanics(t, func() { svc.Record(ctx, subAdmin, "anything") })
	})

	t.Run("owner bootstrap", func(t *testing.T) {
		_, err := svc.EnsureOwner(ctx, "not-an-email", "", "secret1")
		assert.ErrorIs(t, err, ErrValidationFailed)
		_, err = svc.EnsureOwner(ctx, superAdmin.Email, "", "123")
		assert.ErrorIs(t, err, ErrPasswordTooShort)

		owner, err := svc.EnsureOwner(ctx, " OWNER@arena.test ", "", "first-pass")
		require.NoError(t, err)
		assert.Equal(t, superAdmin.Email, owner.Email)
		assert.Equal(t, "Owner", owner.Name)
		assert.Empty(t, owner.PasswordHash)

		again, err := svc.EnsureOwner(ctx, superAdmin.Email, "Ignored", "second-pass")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, again.ID)

		stored, err := users.GetByEmail(ctx, nil, superAdmin.Email)
		require.NoError(t, err)
		assert.True(t, utils.CheckPasswordHash("second-pass", stored.PasswordHash))
		assert.False(t, utils.CheckPasswordHash("first-pass", stored.PasswordHash))
	})

	t.Run("users", func(t *testing.T) {
		_, err := svc.ListUsers(ctx, playerActor(1), 10, 0)
		assert.ErrorIs(t, err, ErrForbiddenOperation)
		list, err := svc.ListUsers(ctx, subAdmin, 10, -3)
		require.NoError(t, err)
		assert.Len(t, list, 3)
	})
}

func TestNotificationService(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	users := &memUserRepo{db: env.db}
	player := &models.User{Name: "Kiran", Email: "kiran@arena.test"}
	require.NoError(t, users.Create(ctx, nil, player))

	t.Run("custom message goes to inbox and live room", func(t *testing.T) {
		_, err := env.notifications.SendCustom(ctx, playerActor(9), player.ID, "", "hi")
		assert.ErrorIs(t, err, ErrForbiddenOperation)
		_, err = env.notifications.SendCustom(ctx, subAdmin, player.ID, "", "  ")
		assert.ErrorIs(t, err, ErrValidationFailed)
		_, err = env.notifications.SendCustom(ctx, subAdmin, 4242, "", "hi")
		assert.ErrorIs(t, err, ErrUserNotFound)

		n, err := env.notifications.SendCustom(ctx, subAdmin, player.ID, "", "Your slot moved to 9pm")
		require.NoError(t, err)
		assert.Equal(t, customNotificationTitle, n.Title)

		events := env.publisher.inRoom(live.UserRoom(player.ID))
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeNotificationCreated, events[0].Type)
		assert.Equal(t, 1, env.metrics.notifications)

		unread, err := env.notifications.UnreadInboxCount(ctx, player.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, unread)
	})

	t.Run("read state is per owner", func(t *testing.T) {
		notes, err := env.notifications.ListForUser(ctx, player.ID, 0)
		require.NoError(t, err)
		require.Len(t, notes, 1)

		assert.ErrorIs(t, env.notifications.MarkRead(ctx, player.ID+1, notes[0].ID), ErrNotificationNotFound)
		require.NoError(t, env.notifications.MarkRead(ctx, player.ID, notes[0].ID))

		inbox, err := env.notifications.ListInbox(ctx, player.ID, 0)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.ErrorIs(t, env.notifications.MarkInboxRead(ctx, player.ID+1, inbox[0].ID), ErrInboxEntryNotFound)
		require.NoError(t, env.notifications.MarkInboxRead(ctx, player.ID, inbox[0].ID))

		unread, err := env.notifications.UnreadInboxCount(ctx, player.ID)
		require.NoError(t, err)
		assert.Zero(t, unread)
	})

	t.Run("prune removes only old read notifications", func(t *testing.T) {
		created, err := env.notifications.Dispatch(ctx, nil, []NotificationInput{{UserID: player.ID, Title: "fresh", Message: "unread"}})
		require.NoError(t, err)
		require.Len(t, created, 1)

		removed, err := env.notifications.PruneRead(ctx, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, removed)

		removed, err = env.notifications.PruneRead(ctx, -time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		left, err := env.notifications.ListForUser(ctx, player.ID, 0)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, "fresh", left[0].Title)
	})

	t.Run("fan out targets approved bookings", func(t *testing.T) {
		tour := env.seedTournament(nil)
		a, err := env.submit(21, tour.ID, "Alpha")
		require.NoError(t, err)
		_, err = env.bookings.Approve(ctx, subAdmin, a.ID, "")
		require.NoError(t, err)
		_, err = env.submit(22, tour.ID, "Bravo")
		require.NoError(t, err)

		created, err := env.notifications.FanOutToApproved(ctx, nil, tour.ID, "Heads up", "Lobby opens soon")
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, 21, created[0].UserID)

		none, err := env.notifications.Dispatch(ctx, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}
