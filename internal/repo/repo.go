package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"upkeep/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

func (r Repo) InsertOrganization(ctx context.Context, o domain.Organization) (domain.Organization, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO organizations(name,address,parent_organization_id,created_at,updated_at) VALUES (?,?,?,?,?)`,
		o.Name, nullable(o.Address), o.ParentID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.ID, err = res.LastInsertId()
	return o, err
}

func (r Repo) GetOrganization(ctx context.Context, id int64) (domain.Organization, error) {
	var o domain.Organization
	var address sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,address,parent_organization_id,created_at,updated_at FROM organizations WHERE id=?`, id).
		Scan(&o.ID, &o.Name, &address, &o.ParentID, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if address.Valid {
		o.Address = address.String
	}
	return o, err
}

func (r Repo) ListOrganizations(ctx context.Context, limit, offset int) ([]domain.Organization, error) {
	query := `SELECT id,name,COALESCE(address,'') AS address,parent_organization_id,created_at,updated_at FROM organizations ORDER BY id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Address, &o.ParentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// UpdateOrganization patches the provided fields only.
func (r Repo) UpdateOrganization(ctx context.Context, id int64, name, address *string, now string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if address != nil {
		fields = append(fields, "address=?")
		args = append(args, nullable(*address))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE organizations SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertKeyContact(ctx context.Context, c domain.KeyContact) (domain.KeyContact, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO key_contacts(organization_id,name,title,email,phone,created_at) VALUES (?,?,?,?,?,?)`,
		c.OrganizationID, c.Name, nullable(c.Title), nullable(c.Email), nullable(c.Phone), c.CreatedAt)
	if err != nil {
		return c, err
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

func (r Repo) ListKeyContacts(ctx context.Context, orgID int64) ([]domain.KeyContact, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,organization_id,name,COALESCE(title,''),COALESCE(email,''),COALESCE(phone,''),created_at FROM key_contacts WHERE organization_id=? ORDER BY id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.KeyContact
	for rows.Next() {
		var c domain.KeyContact
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.Title, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertLocation(ctx context.Context, l domain.Location) (domain.Location, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO locations(organization_id,name,address,created_at,updated_at) VALUES (?,?,?,?,?)`,
		l.OrganizationID, l.Name, l.Address, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return l, err
	}
	l.ID, err = res.LastInsertId()
	return l, err
}

func (r Repo) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	var l domain.Location
	err := r.DB.QueryRowContext(ctx, `SELECT id,organization_id,name,address,created_at,updated_at FROM locations WHERE id=?`, id).
		Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Address, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

func (r Repo) ListLocations(ctx context.Context, orgID int64, limit, offset int) ([]domain.Location, error) {
	query := `SELECT id,organization_id,name,address,created_at,updated_at FROM locations WHERE organization_id=? ORDER BY id ASC`
	args := []any{orgID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Location
	for rows.Next() {
		var l domain.Location
		if err := rows.Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Address, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r Repo) UpdateLocation(ctx context.Context, id int64, name, address *string, now string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if address != nil {
		fields = append(fields, "address=?")
		args = append(args, *address)
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE locations SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertAssetType(ctx context.Context, at domain.AssetType) (domain.AssetType, error) {
	var existing int64
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM asset_types WHERE name=?`, at.Name).Scan(&existing)
	if err == nil {
		return at, ErrConflict
	}
	if err != sql.ErrNoRows {
		return at, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO asset_types(name,description,template) VALUES (?,?,?)`,
		at.Name, nullable(at.Description), at.Template)
	if err != nil {
		return at, err
	}
	at.ID, err = res.LastInsertId()
	return at, err
}

func (r Repo) GetAssetType(ctx context.Context, id int64) (domain.AssetType, error) {
	var at domain.AssetType
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),template FROM asset_types WHERE id=?`, id).
		Scan(&at.ID, &at.Name, &at.Description, &at.Template)
	if err == sql.ErrNoRows {
		return at, ErrNotFound
	}
	return at, err
}

func (r Repo) GetAssetTypeByName(ctx context.Context, name string) (domain.AssetType, error) {
	var at domain.AssetType
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,COALESCE(description,''),template FROM asset_types WHERE name=?`, name).
		Scan(&at.ID, &at.Name, &at.Description, &at.Template)
	if err == sql.ErrNoRows {
		return at, ErrNotFound
	}
	return at, err
}

func (r Repo) ListAssetTypes(ctx context.Context, limit, offset int) ([]domain.AssetType, error) {
	query := `SELECT id,name,COALESCE(description,''),template FROM asset_types ORDER BY id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AssetType
	for rows.Next() {
		var at domain.AssetType
		if err := rows.Scan(&at.ID, &at.Name, &at.Description, &at.Template); err != nil {
			return nil, err
		}
		res = append(res, at)
	}
	return res, rows.Err()
}

// InsertAssetTx creates the asset row inside the generation transaction so
// the attachment and its generated work commit together.
func (r Repo) InsertAssetTx(ctx context.Context, tx *sql.Tx, a domain.LocationAsset) (domain.LocationAsset, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO location_assets(location_id,asset_type_id,created_at) VALUES (?,?,?)`,
		a.LocationID, a.AssetTypeID, a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

func (r Repo) GetAsset(ctx context.Context, id int64) (domain.LocationAsset, error) {
	var a domain.LocationAsset
	err := r.DB.QueryRowContext(ctx, `SELECT id,location_id,asset_type_id,created_at FROM location_assets WHERE id=?`, id).
		Scan(&a.ID, &a.LocationID, &a.AssetTypeID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListAssetsForLocation(ctx context.Context, locationID int64) ([]domain.LocationAsset, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,location_id,asset_type_id,created_at FROM location_assets WHERE location_id=? ORDER BY id ASC`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.LocationAsset
	for rows.Next() {
		var a domain.LocationAsset
		if err := rows.Scan(&a.ID, &a.LocationID, &a.AssetTypeID, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
