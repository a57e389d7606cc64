package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/anonto42/byteboard/internal/errors"
	"github.com/anonto42/byteboard/internal/models"
	"github.com/anonto42/byteboard/internal/repositories"
	"github.com/anonto42/byteboard/internal/validators"
)

// IdentityProvider manages the authentication identities backing profiles.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	UpdateUser(ctx context.Context, uid, displayName, photoURL string) error
	DeleteUser(ctx context.Context, uid string) error
}

const handleAttempts = 25

var (
	handleAdjectives = []string{"bright", "calm", "clever", "crisp", "happy", "kind", "lucky", "mellow", "quick", "sunny"}
	handleNouns      = []string{"coder", "otter", "panda", "pixel", "raven", "sailor", "sparrow", "tiger", "trail", "writer"}
)

// UpdateProfileRequest defines the request body for profile edits
type UpdateProfileRequest struct {
	Name     string `json:"name" validate:"max=50"`
	Handle   string `json:"handle" validate:"required,handle"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url"`
}

// AccountService creates and edits user profiles.
type AccountService struct {
	users      repositories.UserRepository
	identities IdentityProvider
	profiles   *ProfileDirectory
	validate   *validators.Validator
	logger     *slog.Logger
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewAccountService creates a new account service. rng drives handle
// generation for federated sign-ins.
func NewAccountService(users repositories.UserRepository, identities IdentityProvider, profiles *ProfileDirectory, validate *validators.Validator, rng *rand.Rand, logger *slog.Logger) *AccountService {
	return &AccountService{
		users:      users,
		identities: identities,
		profiles:   profiles,
		validate:   validate,
		logger:     logger,
		now:        time.Now,
		rng:        rng,
	}
}

// Signup registers an email/password account and writes its profile. If
// the profile write fails the new identity is deleted again.
func (s *AccountService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Handle = validators.NormalizeHandle(req.Handle)
	req.Name = strings.TrimSpace(req.Name)

	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	emailTaken, err := s.users.EmailTaken(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if emailTaken {
		return nil, apperrors.AlreadyExists("That email is already in use.")
	}
	handleTaken, err := s.users.HandleTaken(ctx, req.Handle)
	if err != nil {
		return nil, fmt.Errorf("check handle: %w", err)
	}
	if handleTaken {
		return nil, apperrors.AlreadyExists("That handle is already taken.")
	}

	uid, err := s.identities.CreateUser(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	user := &models.User{
		UID:         uid,
		Email:       req.Email,
		Name:        req.Name,
		Handle:      "@" + req.Handle,
		HandleLower: req.Handle,
		Age:         req.Age,
		CreatedAt:   s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if delErr := s.identities.DeleteUser(ctx, uid); delErr != nil {
			s.logger.Error("failed to roll back identity after profile write failure",
				"uid", uid,
				"error", delErr,
			)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("user signed up", "uid", uid, "handle", user.Handle)
	return user, nil
}

// EnsureProfile creates a profile for an identity that signed in without
// going through Signup, picking a free generated handle. An existing
// profile is left untouched.
func (s *AccountService) EnsureProfile(ctx context.Context, id models.Identity) (bool, error) {
	if id.UID == "" {
		return false, apperrors.Validation("uid is required")
	}

	_, exists, err := s.users.GetUserDocument(ctx, id.UID)
	if err != nil {
		return false, fmt.Errorf("read profile: %w", err)
	}
	if exists {
		return false, nil
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	name := strings.TrimSpace(id.DisplayName)
	seed := name
	if seed == "" {
		seed, _, _ = strings.Cut(email, "@")
	}
	if seed == "" {
		seed = "user"
	}

	handle, err := s.uniqueHandle(ctx, seed)
	if err != nil {
		return false, err
	}

	user := &models.User{
		UID:         id.UID,
		Email:       email,
		Name:        name,
		Handle:      "@" + handle,
		HandleLower: handle,
		CreatedAt:   s.now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info("profile created for federated sign-in", "uid", id.UID, "handle", user.Handle)
	return true, nil
}

// UpdateProfile edits the display fields of a profile and its identity.
func (s *AccountService) UpdateProfile(ctx context.Context, uid string, req UpdateProfileRequest) (models.Profile, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Handle = validators.NormalizeHandle(req.Handle)
	req.PhotoURL = strings.TrimSpace(req.PhotoURL)

	if err := s.validate.Validate(req); err != nil {
		return models.Profile{}, err
	}

	if err := s.identities.UpdateUser(ctx, uid, req.Name, req.PhotoURL); err != nil {
		return models.Profile{}, fmt.Errorf("update identity: %w", err)
	}

	fields := map[string]any{
		models.UserFieldName:        req.Name,
		models.UserFieldHandle:      "@" + req.Handle,
		models.UserFieldHandleLower: req.Handle,
		models.UserFieldPhotoURL:    nil,
	}
	if req.PhotoURL != "" {
		fields[models.UserFieldPhotoURL] = req.PhotoURL
	}
	if err := s.users.UpdateUser(ctx, uid, fields); err != nil {
		return models.Profile{}, fmt.Errorf("update profile: %w", err)
	}

	if s.profiles != nil {
		s.profiles.Forget(uid)
	}

	return models.Profile{
		DisplayName: req.Name,
		Handle:      "@" + req.Handle,
		AvatarURL:   req.PhotoURL,
	}, nil
}

func (s *AccountService) uniqueHandle(ctx context.Context, seed string) (string, error) {
	for range handleAttempts {
		candidate := s.candidateHandle(seed)
		taken, err := s.users.HandleTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check handle: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	ms := strconv.FormatInt(s.now().UnixMilli(), 10)
	return "user" + ms[max(len(ms)-8, 0):], nil
}

func (s *AccountService) candidateHandle(seed string) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	prefix := normalizeSeed(seed)
	if prefix == "" {
		prefix = handleAdjectives[s.rng.IntN(len(handleAdjectives))]
	}
	noun := handleNouns[s.rng.IntN(len(handleNouns))]
	suffix := 10 + s.rng.IntN(990)

	candidate := fmt.Sprintf("%s_%s%d", prefix, noun, suffix)
	if len(candidate) > 20 {
		candidate = candidate[:20]
	}
	if len(candidate) < 3 {
		return fmt.Sprintf("user%d", 100+s.rng.IntN(900))
	}
	return candidate
}

// normalizeSeed keeps the first eight handle-safe characters of seed.
func normalizeSeed(seed string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(seed) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return b.String()
}
