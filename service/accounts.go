package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type AccountService struct {
	base
}

func NewAccountService(st Store, opts ...Option) *AccountService {
	return &AccountService{base: newBase(st, nil, opts)}
}

// Authenticate checks email and password. Unknown email and wrong password fail the same way.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, Unauthorized("invalid email or password")
	}
	return user, nil
}

// SeedAdmin creates the configured admin account when the users collection is empty.
func (s *AccountService) SeedAdmin(ctx context.Context, email, password string) error {
	count, err := s.store.UsersCount(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 || email == "" || password == "" {
		return nil
	}
	if _, err := s.create(ctx, email, password, "Administrator", models.RoleAdmin); err != nil {
		return err
	}
	slog.Info("seeded admin user", "email", email)
	return nil
}

type UserInput struct {
	Email    string
	Password string
	Name     string
	Role     models.Role
}

func (s *AccountService) CreateUser(ctx context.Context, admin models.Principal, in UserInput) (*models.User, error) {
	if admin.Role != models.RoleAdmin {
		return nil, Forbidden("admin role required")
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	fields := map[string]string{}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		fields["email"] = "must be a valid email"
	}
	if len(in.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if !slices.Contains(models.ValidRoles, in.Role) {
		fields["role"] = "must be USER, LIBRARIAN or ADMIN"
	}
	if len(fields) > 0 {
		return nil, Validation("invalid user", fields)
	}
	return s.create(ctx, in.Email, in.Password, in.Name, in.Role)
}

func (s *AccountService) create(ctx context.Context, email, password, name string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Name:      name,
		Password:  string(hash),
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, Conflict(CodeDuplicateRequest, "email already in use")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AccountService) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, CodeUserNotFound, "user not found")
	}
	return user, nil
}

func (s *AccountService) List(ctx context.Context, admin models.Principal, role models.Role) ([]models.User, error) {
	if admin.Role != models.RoleAdmin {
		return nil, Forbidden("admin role required")
	}
	users, err := s.store.ListUsers(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
