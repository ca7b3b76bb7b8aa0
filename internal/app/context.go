package app

import (
	"context"
	"errors"
	"fmt"

	"upkeep/internal/domain"
	"upkeep/internal/engine"
	"upkeep/internal/repo"
)

// BootstrapOptions configure first-run provisioning.
type BootstrapOptions struct {
	OrgName       string
	AdminEmail    string
	AdminPassword string
}

// Bootstrap provisions a workspace that has migrations applied: it ensures
// one organization, one admin account, and loads the config template catalog
// into the asset-type store. Safe to run repeatedly.
func Bootstrap(ctx context.Context, e engine.Engine, opts BootstrapOptions) (domain.Organization, domain.User, error) {
	if opts.OrgName == "" {
		opts.OrgName = "Default Organization"
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = "admin@localhost"
	}

	org, err := firstOrganization(ctx, e)
	if errors.Is(err, repo.ErrNotFound) {
		org, err = e.CreateOrganization(ctx, opts.OrgName, "", nil, 0)
	}
	if err != nil {
		return domain.Organization{}, domain.User{}, fmt.Errorf("ensure organization: %w", err)
	}

	admin, err := e.Repo.GetUserByEmail(ctx, opts.AdminEmail)
	if errors.Is(err, repo.ErrNotFound) {
		if opts.AdminPassword == "" {
			return org, domain.User{}, errors.New("admin password required for first run")
		}
		admin, err = e.RegisterUser(ctx, org.ID, opts.AdminEmail, opts.AdminPassword, "Administrator", domain.RoleAdmin, 0)
	}
	if err != nil {
		return org, domain.User{}, fmt.Errorf("ensure admin: %w", err)
	}

	if _, err := e.SeedTemplates(ctx, admin.ID); err != nil {
		return org, admin, fmt.Errorf("seed templates: %w", err)
	}
	return org, admin, nil
}

func firstOrganization(ctx context.Context, e engine.Engine) (domain.Organization, error) {
	orgs, err := e.Repo.ListOrganizations(ctx, 1, 0)
	if err != nil {
		return domain.Organization{}, err
	}
	if len(orgs) == 0 {
		return domain.Organization{}, repo.ErrNotFound
	}
	return orgs[0], nil
}
