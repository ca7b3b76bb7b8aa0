package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"upkeep/internal/config"
	"upkeep/internal/domain"
	"upkeep/internal/events"
	"upkeep/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// audit records an event for a mutation that did not run in its own
// transaction. Multi-row mutations append inside their transaction instead.
func (e Engine) audit(ctx context.Context, evtType string, orgID *int64, entityKind string, entityID, actorID int64, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.events().Append(ctx, tx, evtType, orgID, entityKind, entityID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.DB == nil {
		w.DB = e.DB
	}
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) CreateOrganization(ctx context.Context, name, address string, parentID *int64, actorID int64) (domain.Organization, error) {
	if name == "" {
		return domain.Organization{}, errors.New("name is required")
	}
	if parentID != nil {
		if _, err := e.Repo.GetOrganization(ctx, *parentID); err != nil {
			return domain.Organization{}, fmt.Errorf("parent organization: %w", err)
		}
	}
	now := e.nowRFC3339()
	o, err := e.Repo.InsertOrganization(ctx, domain.Organization{
		Name:      name,
		Address:   address,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return o, err
	}
	err = e.audit(ctx, "organization.created", &o.ID, "organization", o.ID, actorID, events.EventPayload{"name": o.Name})
	return o, err
}

func (e Engine) UpdateOrganization(ctx context.Context, id int64, name, address *string, actorID int64) (domain.Organization, error) {
	if err := e.Repo.UpdateOrganization(ctx, id, name, address, e.nowRFC3339()); err != nil {
		return domain.Organization{}, err
	}
	o, err := e.Repo.GetOrganization(ctx, id)
	if err != nil {
		return o, err
	}
	err = e.audit(ctx, "organization.updated", &o.ID, "organization", o.ID, actorID, nil)
	return o, err
}

func (e Engine) AddKeyContact(ctx context.Context, c domain.KeyContact, actorID int64) (domain.KeyContact, error) {
	if c.Name == "" {
		return c, errors.New("name is required")
	}
	if _, err := e.Repo.GetOrganization(ctx, c.OrganizationID); err != nil {
		return c, err
	}
	c.CreatedAt = e.nowRFC3339()
	c, err := e.Repo.InsertKeyContact(ctx, c)
	if err != nil {
		return c, err
	}
	err = e.audit(ctx, "contact.created", &c.OrganizationID, "key_contact", c.ID, actorID, events.EventPayload{"name": c.Name})
	return c, err
}

func (e Engine) CreateLocation(ctx context.Context, orgID int64, name, address string, actorID int64) (domain.Location, error) {
	if name == "" {
		return domain.Location{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetOrganization(ctx, orgID); err != nil {
		return domain.Location{}, err
	}
	now := e.nowRFC3339()
	l, err := e.Repo.InsertLocation(ctx, domain.Location{
		OrganizationID: orgID,
		Name:           name,
		Address:        address,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return l, err
	}
	err = e.audit(ctx, "location.created", &orgID, "location", l.ID, actorID, events.EventPayload{"name": l.Name})
	return l, err
}

func (e Engine) UpdateLocation(ctx context.Context, id int64, name, address *string, actorID int64) (domain.Location, error) {
	if err := e.Repo.UpdateLocation(ctx, id, name, address, e.nowRFC3339()); err != nil {
		return domain.Location{}, err
	}
	l, err := e.Repo.GetLocation(ctx, id)
	if err != nil {
		return l, err
	}
	err = e.audit(ctx, "location.updated", &l.OrganizationID, "location", l.ID, actorID, nil)
	return l, err
}

// CreateAssetType registers a checklist template under a globally unique
// name. The template text is stored verbatim; parsing happens at attach time.
func (e Engine) CreateAssetType(ctx context.Context, name, description, tmpl string, actorID int64) (domain.AssetType, error) {
	if name == "" {
		return domain.AssetType{}, errors.New("name is required")
	}
	if tmpl == "" {
		return domain.AssetType{}, errors.New("template is required")
	}
	at, err := e.Repo.InsertAssetType(ctx, domain.AssetType{
		Name:        name,
		Description: description,
		Template:    tmpl,
	})
	if err != nil {
		return at, err
	}
	err = e.audit(ctx, "asset_type.created", nil, "asset_type", at.ID, actorID, events.EventPayload{"name": at.Name})
	return at, err
}

// SeedTemplates loads the config catalog into the asset-type store. Names
// that already exist are left untouched, so reruns are safe.
func (e Engine) SeedTemplates(ctx context.Context, actorID int64) (int, error) {
	if e.Config == nil {
		return 0, errors.New("config not loaded")
	}
	var created int
	for name, entry := range e.Config.Templates.Catalog {
		_, err := e.CreateAssetType(ctx, name, entry.Description, entry.Template, actorID)
		if errors.Is(err, repo.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", name, err)
		}
		created++
	}
	return created, nil
}
