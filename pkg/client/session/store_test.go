package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurseryfinder/nurseryfinder-backend/pkg/enums"
)

func testToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test"))
	require.NoError(t, err)
	return token
}

func adminUser() *UserSummary {
	return &UserSummary{ID: uuid.New(), Email: "admin@example.com", Role: enums.RoleAdmin}
}

func parentUser() *UserSummary {
	return &UserSummary{ID: uuid.New(), Email: "parent@example.com", FirstName: "Pat", LastName: "Doe", Role: enums.RoleParent}
}

func TestCurrentWithoutSessionIsSignedOut(t *testing.T) {
	storage := NewMemoryStorage()
	assert.Equal(t, Snapshot{}, NewAdminStore(storage).Current())
	assert.Equal(t, Snapshot{}, NewUserStore(storage).Current())
}

func TestSetAndCurrent(t *testing.T) {
	storage := NewMemoryStorage()
	users := NewUserStore(storage)
	user := parentUser()
	user.NurseryName = "Little Oaks"

	require.NoError(t, users.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour)), Refresh: "r"}, user))

	snap := users.Current()
	require.True(t, snap.Authenticated)
	assert.Equal(t, enums.RoleParent, snap.Role)
	assert.Equal(t, user, snap.User)

	first, _ := storage.Get("firstName")
	nursery, _ := storage.Get("nurseryName")
	refresh, _ := storage.Get("refreshToken")
	assert.Equal(t, "Pat", first)
	assert.Equal(t, "Little Oaks", nursery)
	assert.Equal(t, "r", refresh)
	_, hasPhone := storage.Get("phone")
	assert.False(t, hasPhone)
}

func TestSetIsAllOrNothing(t *testing.T) {
	valid := testToken(t, time.Now().Add(time.Hour))
	cases := []struct {
		name   string
		tokens Tokens
		user   *UserSummary
		err    error
	}{
		{"missing token", Tokens{}, adminUser(), ErrMissingToken},
		{"garbage token", Tokens{Access: "not-a-jwt"}, adminUser(), ErrMalformedToken},
		{"missing user", Tokens{Access: valid}, nil, ErrMissingIdentity},
		{"missing email", Tokens{Access: valid}, &UserSummary{Role: enums.RoleAdmin}, ErrMissingIdentity},
		{"wrong role", Tokens{Access: valid}, parentUser(), ErrRoleNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage := NewMemoryStorage()
			admins := NewAdminStore(storage)
			err := admins.Set(tc.tokens, tc.user)
			require.True(t, errors.Is(err, tc.err), "got %v", err)
			for _, key := range admins.keys.all() {
				_, ok := storage.Get(key)
				assert.False(t, ok, "key %s written on failure", key)
			}
		})
	}
}

func TestUserStoreRejectsAdmin(t *testing.T) {
	users := NewUserStore(NewMemoryStorage())
	err := users.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser())
	assert.ErrorIs(t, err, ErrRoleNotAllowed)
}

func TestExpiredTokenReadsSignedOut(t *testing.T) {
	storage := NewMemoryStorage()
	admins := NewAdminStore(storage)
	require.NoError(t, admins.Set(Tokens{Access: testToken(t, time.Now().Add(time.Minute))}, adminUser()))

	admins.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.False(t, admins.Current().Authenticated)
	assert.Empty(t, admins.AccessToken())
}

func TestCorruptIdentityReadsSignedOut(t *testing.T) {
	storage := NewMemoryStorage()
	admins := NewAdminStore(storage)
	require.NoError(t, admins.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser()))

	require.NoError(t, storage.Update(map[string]string{"adminUser": "{nope"}, nil))
	assert.Equal(t, Snapshot{}, admins.Current())
}

func TestDomainsArePartitioned(t *testing.T) {
	storage := NewMemoryStorage()
	admins := NewAdminStore(storage)
	users := NewUserStore(storage)

	require.NoError(t, admins.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser()))
	assert.True(t, admins.Current().Authenticated)
	assert.False(t, users.Current().Authenticated, "admin login must not sign in the user domain")

	require.NoError(t, users.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, parentUser()))
	require.NoError(t, admins.Clear())
	assert.False(t, admins.Current().Authenticated)
	assert.True(t, users.Current().Authenticated, "admin logout must not sign out the user domain")
}

func TestClearIsIdempotent(t *testing.T) {
	users := NewUserStore(NewMemoryStorage())
	require.NoError(t, users.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, parentUser()))
	require.NoError(t, users.Clear())
	require.NoError(t, users.Clear())
	assert.False(t, users.Current().Authenticated)
}

func TestOnExternalChange(t *testing.T) {
	storage := NewMemoryStorage()
	tabA := NewAdminStore(storage)
	tabB := NewAdminStore(storage)
	users := NewUserStore(storage)

	var got []Snapshot
	cancel := tabA.OnExternalChange(func(s Snapshot) { got = append(got, s) })
	defer cancel()

	require.NoError(t, tabA.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser()))
	assert.Empty(t, got, "own writes are not external")

	require.NoError(t, users.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, parentUser()))
	assert.Empty(t, got, "the other domain's keys are ignored")

	require.NoError(t, tabB.Clear())
	require.Len(t, got, 1)
	assert.False(t, got[0].Authenticated)

	cancel()
	require.NoError(t, tabB.Set(Tokens{Access: testToken(t, time.Now().Add(time.Hour))}, adminUser()))
	assert.Len(t, got, 1)
}
