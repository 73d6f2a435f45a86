package userstore

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := Open("sqlite", dsn, false)
	require.NoError(t, err)

	store := New(db)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateUser(ctx, " Alice@Example.com ", "Alice", "hash")
	require.NoError(t, err)
	assert.Len(t, created.ID, 36)
	assert.Equal(t, "alice@example.com", created.Email)
	assert.True(t, created.IsActive)

	byEmail, err := store.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byID, err := store.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)
	assert.True(t, byID.LastLogin.IsZero())
}

func TestLookupMissingMatchesErrUserNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, sessionguard.ErrUserNotFound)

	_, err = store.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sessionguard.ErrUserNotFound)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateUser(ctx, "bob@example.com", "Bob", "hash")
	require.NoError(t, err)

	_, err = store.CreateUser(ctx, "BOB@example.com", "Bob", "hash")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, sessionguard.ErrConflict)
}

func TestSaveUserPersistsDevicesAndLastLogin(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "carol@example.com", "Carol", "hash")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	u.LastLogin = now
	u.PasswordHash = "new-hash"
	u.Devices = []device.Device{{
		DeviceID:   "d1",
		Browser:    "Chrome",
		OS:         "Windows",
		DeviceType: "desktop",
		SourceIP:   "192.0.2.1",
		FirstSeen:  now,
		LastSeen:   now,
		LoginCount: 2,
		IsActive:   true,
	}}
	require.NoError(t, store.SaveUser(ctx, u))

	got, err := store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.True(t, got.LastLogin.Equal(now))
	require.Len(t, got.Devices, 1)
	assert.Equal(t, "d1", got.Devices[0].DeviceID)
	assert.Equal(t, 2, got.Devices[0].LoginCount)
	assert.True(t, got.Devices[0].LastSeen.Equal(now))
}

func TestSaveUserWritesFalseActiveFlag(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "dave@example.com", "Dave", "hash")
	require.NoError(t, err)

	u.IsActive = false
	require.NoError(t, store.SaveUser(ctx, u))

	got, err := store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, store.SetActive(ctx, u.ID, true))
	got, err = store.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestSaveUnknownUser(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveUser(context.Background(), &sessionguard.User{ID: "ghost", Email: "ghost@example.com"})
	assert.ErrorIs(t, err, sessionguard.ErrUserNotFound)

	err = store.SaveUser(context.Background(), &sessionguard.User{})
	assert.ErrorIs(t, err, sessionguard.ErrValidation)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", false)
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
