package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"upkeep/internal/domain"
)

func (r Repo) InsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	var existing int64
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM users WHERE email=?`, u.Email).Scan(&existing)
	if err == nil {
		return u, ErrConflict
	}
	if err != sql.ErrNoRows {
		return u, err
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users(email,hashed_password,full_name,role,is_active,organization_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		u.Email, u.HashedPassword, nullable(u.FullName), u.Role, u.IsActive, u.OrganizationID, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return u, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx, userSelect+` WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx, userSelect+` WHERE email=?`, email))
}

func (r Repo) ListUsers(ctx context.Context, orgID int64) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, userSelect+` WHERE organization_id=? ORDER BY id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.IsActive, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) SetUserRole(ctx context.Context, id int64, role string, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role=?, updated_at=? WHERE id=?`, role, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetUserActive(ctx context.Context, id int64, active bool, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET is_active=?, updated_at=? WHERE id=?`, active, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const userSelect = `SELECT id,email,hashed_password,COALESCE(full_name,''),role,is_active,organization_id,created_at,updated_at FROM users`

func (r Repo) scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.IsActive, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// HashAPIKey is the storage form of an API key. Only the hash is persisted.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertAPIKey(ctx context.Context, k domain.APIKey) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO api_keys(id,user_id,name,key_hash,created_at) VALUES (?,?,?,?,?)`,
		k.ID, k.UserID, nullable(k.Name), k.KeyHash, k.CreatedAt)
	return err
}

func (r Repo) GetUserByAPIKey(ctx context.Context, key string) (domain.User, error) {
	var userID int64
	err := r.DB.QueryRowContext(ctx, `SELECT user_id FROM api_keys WHERE key_hash=?`, HashAPIKey(key)).Scan(&userID)
	if err == sql.ErrNoRows {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.GetUser(ctx, userID)
}

func (r Repo) ListAPIKeys(ctx context.Context, userID int64) ([]domain.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,COALESCE(name,''),key_hash,created_at FROM api_keys WHERE user_id=? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}

func (r Repo) DeleteAPIKey(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEventsAfter streams audit events past a cursor, oldest first. Used by
// the webhook dispatcher.
func (r Repo) ListEventsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,org_id,entity_kind,COALESCE(entity_id,0),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r Repo) ListRecentEvents(ctx context.Context, orgID int64, limit int) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,org_id,entity_kind,COALESCE(entity_id,0),actor_id,payload_json FROM events WHERE org_id=? ORDER BY id DESC LIMIT ?`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events`).Scan(&id)
	return id, err
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OrgID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
