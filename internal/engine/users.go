package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"upkeep/internal/domain"
	"upkeep/internal/engine/auth"
	"upkeep/internal/events"
	"upkeep/internal/repo"
)

// RegisterUser creates an account inside an organization. Email is the
// login identity and must be unique across all organizations.
func (e Engine) RegisterUser(ctx context.Context, orgID int64, email, password, fullName, role string, actorID int64) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.User{}, errors.New("email is required")
	}
	if password == "" {
		return domain.User{}, errors.New("password is required")
	}
	if role == "" {
		role = domain.RoleViewer
	}
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleViewer:
	default:
		return domain.User{}, errors.New("unknown role " + role)
	}
	if _, err := e.Repo.GetOrganization(ctx, orgID); err != nil {
		return domain.User{}, err
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	now := e.nowRFC3339()
	u, err := e.Repo.InsertUser(ctx, domain.User{
		Email:          email,
		HashedPassword: hashed,
		FullName:       fullName,
		Role:           role,
		IsActive:       true,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return u, err
	}
	err = e.audit(ctx, "user.registered", &orgID, "user", u.ID, actorID, events.EventPayload{"email": u.Email, "role": u.Role})
	return u, err
}

// Authenticate checks credentials and returns the account. Disabled accounts
// fail the same way wrong passwords do.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if !u.IsActive || !auth.CheckPassword(u.HashedPassword, password) {
		return domain.User{}, auth.ErrInvalidCredentials
	}
	return u, nil
}

func (e Engine) SetUserRole(ctx context.Context, id int64, role string, actorID int64) (domain.User, error) {
	switch role {
	case domain.RoleAdmin, domain.RoleManager, domain.RoleViewer:
	default:
		return domain.User{}, errors.New("unknown role " + role)
	}
	if err := e.Repo.SetUserRole(ctx, id, role, e.nowRFC3339()); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return u, err
	}
	err = e.audit(ctx, "user.role_changed", &u.OrganizationID, "user", u.ID, actorID, events.EventPayload{"role": role})
	return u, err
}

func (e Engine) SetUserActive(ctx context.Context, id int64, active bool, actorID int64) (domain.User, error) {
	if err := e.Repo.SetUserActive(ctx, id, active, e.nowRFC3339()); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return u, err
	}
	err = e.audit(ctx, "user.active_changed", &u.OrganizationID, "user", u.ID, actorID, events.EventPayload{"is_active": active})
	return u, err
}

// IssueAPIKey mints a key for a user and returns the plaintext once. Only
// the hash is stored.
func (e Engine) IssueAPIKey(ctx context.Context, userID int64, name string, actorID int64) (domain.APIKey, string, error) {
	u, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "uk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	k := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.nowRFC3339(),
	}
	if err := e.Repo.InsertAPIKey(ctx, k); err != nil {
		return domain.APIKey{}, "", err
	}
	err = e.audit(ctx, "apikey.issued", &u.OrganizationID, "api_key", 0, actorID, events.EventPayload{"key_id": k.ID, "user_id": u.ID})
	return k, plaintext, err
}

func (e Engine) RevokeAPIKey(ctx context.Context, id string, actorID int64) error {
	if err := e.Repo.DeleteAPIKey(ctx, id); err != nil {
		return err
	}
	return e.audit(ctx, "apikey.revoked", nil, "api_key", 0, actorID, events.EventPayload{"key_id": id})
}
