package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/docvault/docvault/internal/apperrors"
	"github.com/docvault/docvault/internal/models"
)

// Service encapsulates user account business logic.
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// RegisterInput carries the fields accepted at registration. Role defaults
// to Viewer when empty.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// Register creates a new active user with a bcrypt-hashed password.
// A duplicate email is a Conflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.Invalidf("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, apperrors.Invalidf("password must be at least 8 characters")
	}
	role := in.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !role.Valid() {
		return nil, apperrors.Invalidf("unknown role %q", in.Role)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflictf("user with email %s already exists", email)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperrors.IOf("check existing email: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.IOf("hash password: %v", err)
	}

	u := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		Active:       true,
	}
	if _, err := s.repo.Create(ctx, u); err != nil {
		return nil, apperrors.IOf("persist user: %v", err)
	}
	return u, nil
}

// Authenticate validates email/password. Unknown emails, wrong passwords and
// deactivated accounts all fail the same way so login errors leak nothing.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.Forbiddenf("invalid credentials")
		}
		return nil, apperrors.IOf("load user: %v", err)
	}
	if !u.Active {
		return nil, apperrors.Forbiddenf("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperrors.Forbiddenf("invalid credentials")
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFoundf("user %s", id)
		}
		return nil, apperrors.IOf("load user %s: %v", id, err)
	}
	return u, nil
}

// List returns users ordered by newest first. Admin-only at the HTTP layer.
func (s *Service) List(ctx context.Context, page, limit int) ([]*models.User, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	out, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, apperrors.IOf("list users: %v", err)
	}
	return out, nil
}

// Update applies the non-nil patch fields.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*models.User, error) {
	if p.Role != nil && !p.Role.Valid() {
		return nil, apperrors.Invalidf("unknown role %q", *p.Role)
	}
	if err := s.repo.Apply(ctx, id, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperrors.NotFoundf("user %s", id)
		}
		return nil, apperrors.IOf("update user %s: %v", id, err)
	}
	return s.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperrors.NotFoundf("user %s", id)
		}
		return apperrors.IOf("delete user %s: %v", id, err)
	}
	return nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return apperrors.Forbiddenf("current password is incorrect")
	}
	if len(next) < 8 {
		return apperrors.Invalidf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.IOf("hash password: %v", err)
	}
	if err := s.repo.SetPasswordHash(ctx, id, string(hash)); err != nil {
		return apperrors.IOf("store password for user %s: %v", id, err)
	}
	return nil
}
