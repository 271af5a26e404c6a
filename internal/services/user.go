package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gerardinho-server/GestionUsuarios/internal/events"
	"github.com/Gerardinho-server/GestionUsuarios/internal/session"
	"github.com/Gerardinho-server/GestionUsuarios/internal/store"
	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByLogin(ctx context.Context, identifier string) (types.User, error)
	ExistsUsernameOrEmail(ctx context.Context, username, email string, excludeID int64) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User, withPassword bool) (types.User, error)
	UpdateProfile(ctx context.Context, id int64, username, email, passwordHash string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Delete(ctx context.Context, id int64) error
}

// RegisterInput is the data submitted by the registration form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// ProfileInput is the data submitted by the self-service profile form.
// An empty Password keeps the current one.
type ProfileInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// AdminEditInput is the data submitted by the admin edit form.
// An empty Password keeps the current one.
type AdminEditInput struct {
	Username string
	Email    string
	Password string
	Role     string
	IsActive bool
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo      UserRepository
	sessions  session.Store
	publisher *events.Publisher
	logger    zerolog.Logger
	hashCost  int
}

// Option customises a UserService.
type Option func(*UserService)

// WithHashCost overrides the bcrypt cost used for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *UserService) {
		s.hashCost = cost
	}
}

func NewUserService(
	repo UserRepository,
	sessions session.Store,
	publisher *events.Publisher,
	logger zerolog.Logger,
	opts ...Option,
) *UserService {
	s := &UserService{
		repo:      repo,
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		hashCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new account with the user role. It does not log the
// new user in.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return types.User{}, invalid("all fields are required")
	}
	if err := validateUsername(username); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return types.User{}, err
	}
	if err := validateEmail(email); err != nil {
		return types.User{}, err
	}

	if err := s.ensureAvailable(ctx, username, email, 0); err != nil {
		return types.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, errDuplicateAccount
		}
		return types.User{}, unavailable(err)
	}

	s.publisher.Publish(ctx, events.Event{
		Type:     events.UserRegistered,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	return user, nil
}

// UpdateProfile lets a user change their own username, email and password.
func (s *UserService) UpdateProfile(ctx context.Context, actorID, targetID int64, in ProfileInput) (types.User, error) {
	if actorID < 1 || actorID != targetID {
		return types.User{}, ErrNotOwner
	}

	username, email, err := normalizeIdentity(in.Username, in.Email)
	if err != nil {
		return types.User{}, err
	}
	if in.Password != "" || in.ConfirmPassword != "" {
		if in.Password != in.ConfirmPassword {
			return types.User{}, invalid("the new password and its confirmation do not match")
		}
		if err := validatePassword(in.Password); err != nil {
			return types.User{}, err
		}
	}

	if err := s.ensureAvailable(ctx, username, email, targetID); err != nil {
		return types.User{}, err
	}

	var hash string
	if in.Password != "" {
		if hash, err = s.hash(in.Password); err != nil {
			return types.User{}, err
		}
	}

	user, err := s.repo.UpdateProfile(ctx, targetID, username, email, hash)
	if err != nil {
		return types.User{}, s.mapWriteError(err)
	}

	s.publisher.Publish(ctx, events.Event{
		Type:     events.UserUpdated,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		ActorID:  actorID,
	})
	return user, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id int64) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &NotFoundError{Message: "user not found"}
		}
		return types.User{}, unavailable(err)
	}
	return user, nil
}

// List returns every account, newest first, without password hashes.
func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return users, nil
}

// AdminUpdate changes another account's identity, password, role and
// activation state. Sessions of the target are made to re-resolve their
// role, or are destroyed when the account was deactivated.
func (s *UserService) AdminUpdate(ctx context.Context, actorID, targetID int64, in AdminEditInput) (types.User, error) {
	username, email, err := normalizeIdentity(in.Username, in.Email)
	if err != nil {
		return types.User{}, err
	}
	role, err := types.ParseRole(in.Role)
	if err != nil {
		return types.User{}, invalid("the role must be one of admin, user or guest")
	}
	if in.Password != "" {
		if err := validatePassword(in.Password); err != nil {
			return types.User{}, err
		}
	}

	if err := s.ensureAvailable(ctx, username, email, targetID); err != nil {
		return types.User{}, err
	}

	user := types.User{
		ID:       targetID,
		Username: username,
		Email:    email,
		Role:     role,
		IsActive: in.IsActive,
	}
	withPassword := in.Password != ""
	if withPassword {
		if user.PasswordHash, err = s.hash(in.Password); err != nil {
			return types.User{}, err
		}
	}

	user, err = s.repo.Update(ctx, user, withPassword)
	if err != nil {
		return types.User{}, s.mapWriteError(err)
	}

	if user.IsActive {
		err = s.sessions.ForgetUser(ctx, targetID)
	} else {
		err = s.sessions.DeleteUser(ctx, targetID)
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("invalidate sessions after admin edit")
	}

	s.publisher.Publish(ctx, events.Event{
		Type:     events.UserUpdated,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		ActorID:  actorID,
	})
	return user, nil
}

// Delete removes an account on behalf of an admin. Admins cannot delete
// themselves.
func (s *UserService) Delete(ctx context.Context, actorID, targetID int64) error {
	if actorID == targetID {
		return &SelfDeleteError{}
	}

	if err := s.repo.Delete(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Message: "user not found"}
		}
		return unavailable(err)
	}

	if err := s.sessions.DeleteUser(ctx, targetID); err != nil {
		s.logger.Error().Err(err).Int64("user_id", targetID).Msg("drop sessions of deleted user")
	}

	s.publisher.Publish(ctx, events.Event{
		Type:    events.UserDeleted,
		UserID:  targetID,
		ActorID: actorID,
	})
	return nil
}

// EnsureAdmin creates an active admin account, or promotes and resets the
// password of the account that already uses username.
func (s *UserService) EnsureAdmin(ctx context.Context, in RegisterInput) (types.User, error) {
	username, email, err := normalizeIdentity(in.Username, in.Email)
	if err != nil {
		return types.User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return types.User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return types.User{}, err
	}

	existing, err := s.repo.GetByLogin(ctx, username)
	switch {
	case err == nil && existing.Username == username:
		existing.Email = email
		existing.Role = types.RoleAdmin
		existing.IsActive = true
		existing.PasswordHash = hash
		user, err := s.repo.Update(ctx, existing, true)
		if err != nil {
			return types.User{}, s.mapWriteError(err)
		}
		if err := s.sessions.ForgetUser(ctx, user.ID); err != nil {
			s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("invalidate sessions after promotion")
		}
		return user, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return types.User{}, unavailable(err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         types.RoleAdmin,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, errDuplicateAccount
		}
		return types.User{}, unavailable(err)
	}
	return user, nil
}

// ensureAvailable is the friendly pre-check; the unique constraints in the
// database remain the authority.
func (s *UserService) ensureAvailable(ctx context.Context, username, email string, excludeID int64) error {
	taken, err := s.repo.ExistsUsernameOrEmail(ctx, username, email, excludeID)
	if err != nil {
		return unavailable(err)
	}
	if taken {
		return errDuplicateAccount
	}
	return nil
}

func (s *UserService) mapWriteError(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return errDuplicateAccount
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Message: "user not found"}
	default:
		return unavailable(err)
	}
}

func (s *UserService) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", invalid("the password must be at most 72 bytes long")
		}
		return "", unavailable(fmt.Errorf("hash password: %w", err))
	}
	return string(hashed), nil
}
