package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/auth"
	"cashflow/internal/backend"
	"cashflow/internal/core"
)

type fakeAuth struct {
	signInErr error
	signedOut []string
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (auth.Identity, error) {
	if f.signInErr != nil {
		return auth.Identity{}, f.signInErr
	}
	return auth.Identity{UID: "u1", Email: email}, nil
}

func (f *fakeAuth) SignUp(_ context.Context, email, _ string) (auth.Identity, error) {
	return auth.Identity{UID: "u2", Email: email}, nil
}

func (f *fakeAuth) SignOut(_ context.Context, uid string) error {
	f.signedOut = append(f.signedOut, uid)
	return nil
}

func newShell(t *testing.T, withCloud bool) (*Shell, *fakeAuth) {
	t.Helper()
	opts := Options{Local: backend.NewLocal(backend.NewMemoryKV(), backend.MemoryBackend, nil)}
	fa := &fakeAuth{}
	if withCloud {
		// A local engine reporting the cloud type stands in for Firestore.
		opts.Cloud = backend.NewLocal(backend.NewMemoryKV(), backend.FirestoreBackend, nil)
		opts.Auth = fa
	}
	s := New(opts)
	t.Cleanup(s.Close)
	return s, fa
}

func TestStartWithoutCloudEntersTestMode(t *testing.T) {
	s, _ := newShell(t, false)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, core.ModeTest, s.Mode())

	store, err := s.Ledger()
	require.NoError(t, err)
	assert.Equal(t, core.ModeTest, store.Snapshot().Mode)
	assert.Equal(t, backend.MemoryBackend, store.BackendType())

	_, err = s.SignIn(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrCloudUnavailable)
}

func TestStartWithCloudWaitsForSelection(t *testing.T) {
	s, _ := newShell(t, true)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, core.ModeSelection, s.Mode())

	_, err := s.Ledger()
	assert.ErrorIs(t, err, ErrNoMode)
}

func TestSignInAndLogout(t *testing.T) {
	ctx := context.Background()
	s, fa := newShell(t, true)

	id, err := s.SignIn(ctx, "mei@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, core.ModeProduction, s.Mode())

	store, err := s.Ledger()
	require.NoError(t, err)
	snap := store.Snapshot()
	assert.Equal(t, core.ModeProduction, snap.Mode)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "u1", snap.Profile.UID)
	assert.Equal(t, "New User", snap.Profile.DisplayName)

	assert.ErrorIs(t, s.ChooseTestMode(ctx), ErrModeActive)

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, core.ModeSelection, s.Mode())
	assert.Equal(t, []string{"u1"}, fa.signedOut)
	_, ok := s.Identity()
	assert.False(t, ok)
	_, err = s.Ledger()
	assert.ErrorIs(t, err, ErrNoMode)
	assert.Equal(t, core.ModeSelection, store.Snapshot().Mode)
}

func TestSignInFailureStaysInSelection(t *testing.T) {
	s, fa := newShell(t, true)
	fa.signInErr = auth.ErrUserNotFound

	_, err := s.SignIn(context.Background(), "nobody@example.com", "pw")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
	assert.Equal(t, core.ModeSelection, s.Mode())
}

func TestTestModeLogoutKeepsLocalData(t *testing.T) {
	ctx := context.Background()
	s, fa := newShell(t, true)

	require.NoError(t, s.ChooseTestMode(ctx))
	require.NoError(t, s.ChooseTestMode(ctx))
	store, err := s.Ledger()
	require.NoError(t, err)
	_, err = store.AddAccount(ctx, "Cash", core.MoneyFromInt(300))
	require.NoError(t, err)
	store.Wait()

	require.NoError(t, s.Logout(ctx))
	assert.Empty(t, fa.signedOut)

	require.NoError(t, s.ChooseTestMode(ctx))
	store, err = s.Ledger()
	require.NoError(t, err)
	assert.Len(t, store.Snapshot().Accounts, 3)
}

func TestSwitchFromTestModeToCloudStartsFromSeedAccounts(t *testing.T) {
	ctx := context.Background()
	s, _ := newShell(t, true)

	require.NoError(t, s.ChooseTestMode(ctx))
	store, err := s.Ledger()
	require.NoError(t, err)
	_, err = store.AddAccount(ctx, "Cash", core.MoneyFromInt(300))
	require.NoError(t, err)
	store.Wait()
	require.Len(t, store.Snapshot().Accounts, 3)

	require.NoError(t, s.Logout(ctx))
	_, err = s.SignIn(ctx, "mei@example.com", "pw")
	require.NoError(t, err)

	store, err = s.Ledger()
	require.NoError(t, err)
	snap := store.Snapshot()
	require.Len(t, snap.Accounts, 2)
	acc1, ok := snap.FindAccount("acc1")
	require.True(t, ok)
	assert.True(t, acc1.Balance.Equal(core.MoneyFromInt(50000)), "acc1 %s", acc1.Balance)
	acc2, ok := snap.FindAccount("acc2")
	require.True(t, ok)
	assert.True(t, acc2.Balance.Equal(core.MoneyFromInt(25000)), "acc2 %s", acc2.Balance)
}
