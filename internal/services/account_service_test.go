package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/byteboard/internal/docstore"
	apperrors "github.com/anonto42/byteboard/internal/errors"
	"github.com/anonto42/byteboard/internal/logger"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/validators"
)

type fakeIdentities struct {
	created []string
	deleted []string
	updated map[string]string
	failOn  string
}

func (f *fakeIdentities) CreateUser(_ context.Context, email, _, _ string) (string, error) {
	if f.failOn == "create" {
		return "", errStoreDown
	}
	uid := "uid-" + strings.Split(email, "@")[0]
	f.created = append(f.created, uid)
	return uid, nil
}

func (f *fakeIdentities) UpdateUser(_ context.Context, uid, displayName, _ string) error {
	if f.updated == nil {
		f.updated = make(map[string]string)
	}
	f.updated[uid] = displayName
	return nil
}

func (f *fakeIdentities) DeleteUser(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

func setupAccountService(t *testing.T) (*AccountService, *fakeIdentities, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	users := repositories.NewDocUserRepository(store)
	ids := &fakeIdentities{}
	svc := NewAccountService(
		users,
		ids,
		NewProfileDirectory(users, logger.Discard()),
		validators.New(),
		rand.New(rand.NewPCG(1, 2)),
		logger.Discard(),
	)
	return svc, ids, store
}

func validSignup() models.SignupRequest {
	return models.SignupRequest{
		Email:    "  Ada@Example.com ",
		Password: "secret123",
		Name:     " Ada ",
		Handle:   "@@Ada.L",
		Age:      36,
	}
}

func TestSignup_WritesNormalisedProfile(t *testing.T) {
	ctx := context.Background()
	svc, ids, store := setupAccountService(t)

	user, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)
	assert.Equal(t, "@ada.l", user.Handle)
	assert.Equal(t, []string{"uid-ada"}, ids.created)

	doc, ok, err := store.Get(ctx, models.UsersCollection, user.UID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", doc.String(models.UserFieldEmail))
	assert.Equal(t, "ada@example.com", doc.String(models.UserFieldEmailLower))
	assert.Equal(t, "Ada", doc.String(models.UserFieldName))
	assert.Equal(t, "@ada.l", doc.String(models.UserFieldHandle))
	assert.Equal(t, "ada.l", doc.String(models.UserFieldHandleLower))
	assert.Equal(t, int64(36), doc.Int(models.UserFieldAge))
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.SignupRequest)
	}{
		{"handle too short", func(r *models.SignupRequest) { r.Handle = "ab" }},
		{"handle bad chars", func(r *models.SignupRequest) { r.Handle = "ada-l" }},
		{"handle too long", func(r *models.SignupRequest) { r.Handle = strings.Repeat("a", 21) }},
		{"too young", func(r *models.SignupRequest) { r.Age = 12 }},
		{"too old", func(r *models.SignupRequest) { r.Age = 121 }},
		{"bad email", func(r *models.SignupRequest) { r.Email = "not-an-email" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, ids, _ := setupAccountService(t)
			req := validSignup()
			tt.mutate(&req)

			_, err := svc.Signup(context.Background(), req)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "got %v", err)
			assert.Empty(t, ids.created)
		})
	}
}

func TestSignup_Uniqueness(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupAccountService(t)

	_, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	dupEmail := validSignup()
	dupEmail.Handle = "someone_else"
	_, err = svc.Signup(ctx, dupEmail)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyExists))

	dupHandle := validSignup()
	dupHandle.Email = "other@example.com"
	dupHandle.Handle = "ADA.L"
	_, err = svc.Signup(ctx, dupHandle)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyExists))
}

func TestSignup_ProfileFailureRollsBackIdentity(t *testing.T) {
	svc, ids, store := setupAccountService(t)
	store.FailNext(docstore.OpSet, errStoreDown)

	_, err := svc.Signup(context.Background(), validSignup())
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{"uid-ada"}, ids.deleted)
}

func TestEnsureProfile_GeneratesHandle(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupAccountService(t)

	created, err := svc.EnsureProfile(ctx, models.Identity{UID: "g1", Email: "Grace@Example.com", DisplayName: "Grace Hopper"})
	require.NoError(t, err)
	assert.True(t, created)

	doc, ok, _ := store.Get(ctx, models.UsersCollection, "g1")
	require.True(t, ok)
	handle := doc.String(models.UserFieldHandleLower)
	assert.True(t, strings.HasPrefix(handle, "gracehop_"), handle)
	assert.True(t, validators.ValidHandle(handle), handle)
	assert.Equal(t, "@"+handle, doc.String(models.UserFieldHandle))
	assert.Equal(t, "grace@example.com", doc.String(models.UserFieldEmailLower))

	created, err = svc.EnsureProfile(ctx, models.Identity{UID: "g1"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureProfile_FallsBackAfterAttempts(t *testing.T) {
	ctx := context.Background()
	svc, _, store := setupAccountService(t)
	svc.now = func() time.Time { return time.UnixMilli(1712345678901) }
	// Every candidate is reported as taken.
	taken := &takenUsers{UserRepository: svc.users}
	svc.users = taken

	_, err := svc.EnsureProfile(ctx, models.Identity{UID: "x1", Email: "x@example.com"})
	require.NoError(t, err)

	doc, _, _ := store.Get(ctx, models.UsersCollection, "x1")
	assert.Equal(t, "user45678901", doc.String(models.UserFieldHandleLower))
	assert.Equal(t, handleAttempts, taken.checks)
}

type takenUsers struct {
	repositories.UserRepository
	checks int
}

func (u *takenUsers) HandleTaken(context.Context, string) (bool, error) {
	u.checks++
	return true, nil
}

func TestNormalizeSeed(t *testing.T) {
	assert.Equal(t, "gracehop", normalizeSeed("Grace Hopper"))
	assert.Equal(t, "a.b_c", normalizeSeed("A.b_c!"))
	assert.Equal(t, "", normalizeSeed("!!!"))
}

func TestCandidateHandle_Shape(t *testing.T) {
	svc, _, _ := setupAccountService(t)
	for range 100 {
		h := svc.candidateHandle("")
		assert.True(t, validators.ValidHandle(h), h)
		assert.LessOrEqual(t, len(h), 20)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, ids, store := setupAccountService(t)
	user, err := svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	p, err := svc.UpdateProfile(ctx, user.UID, UpdateProfileRequest{Name: "Ada L", Handle: "@AdaL"})
	require.NoError(t, err)
	assert.Equal(t, "@adal", p.Handle)
	assert.Equal(t, "Ada L", ids.updated[user.UID])

	doc, _, _ := store.Get(ctx, models.UsersCollection, user.UID)
	assert.Equal(t, "adal", doc.String(models.UserFieldHandleLower))
	assert.Equal(t, "ada@example.com", doc.String(models.UserFieldEmail))
}

func TestSignup_IdentityFailureWritesNothing(t *testing.T) {
	svc, ids, store := setupAccountService(t)
	ids.failOn = "create"

	_, err := svc.Signup(context.Background(), validSignup())
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, store.Calls(docstore.OpSet))
}
