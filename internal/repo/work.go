package repo

import (
	"context"
	"database/sql"

	"upkeep/internal/domain"
)

func (r Repo) InsertWorkAreaTx(ctx context.Context, tx *sql.Tx, a domain.WorkArea) (domain.WorkArea, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO work_areas(asset_id,statement,is_relevant,created_at,updated_at) VALUES (?,?,?,?,?)`,
		a.AssetID, a.Statement, a.IsRelevant, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return a, err
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

func (r Repo) InsertWorkItemTx(ctx context.Context, tx *sql.Tx, w domain.WorkItem) (domain.WorkItem, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO work_items(work_area_id,statement,description,created_at,updated_at) VALUES (?,?,?,?,?)`,
		w.WorkAreaID, w.Statement, w.Description, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return w, err
	}
	w.ID, err = res.LastInsertId()
	return w, err
}

func (r Repo) GetWorkArea(ctx context.Context, id int64) (domain.WorkArea, error) {
	var a domain.WorkArea
	err := r.DB.QueryRowContext(ctx, `SELECT id,asset_id,statement,is_relevant,created_at,updated_at FROM work_areas WHERE id=?`, id).
		Scan(&a.ID, &a.AssetID, &a.Statement, &a.IsRelevant, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) ListWorkAreas(ctx context.Context, assetID int64) ([]domain.WorkArea, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,asset_id,statement,is_relevant,created_at,updated_at FROM work_areas WHERE asset_id=? ORDER BY id ASC`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkArea
	for rows.Next() {
		var a domain.WorkArea
		if err := rows.Scan(&a.ID, &a.AssetID, &a.Statement, &a.IsRelevant, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) SetWorkAreaRelevance(ctx context.Context, id int64, relevant bool, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE work_areas SET is_relevant=?, updated_at=? WHERE id=?`, relevant, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetWorkItem(ctx context.Context, id int64) (domain.WorkItem, error) {
	var w domain.WorkItem
	err := r.DB.QueryRowContext(ctx, `SELECT id,work_area_id,statement,description,created_at,updated_at FROM work_items WHERE id=?`, id).
		Scan(&w.ID, &w.WorkAreaID, &w.Statement, &w.Description, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) ListWorkItems(ctx context.Context, workAreaID int64) ([]domain.WorkItem, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,work_area_id,statement,description,created_at,updated_at FROM work_items WHERE work_area_id=? ORDER BY id ASC`, workAreaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkItem
	for rows.Next() {
		var w domain.WorkItem
		if err := rows.Scan(&w.ID, &w.WorkAreaID, &w.Statement, &w.Description, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) InsertUpdateTx(ctx context.Context, tx *sql.Tx, u domain.Update) (domain.Update, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO updates(work_item_id,user_id,narrative,review_date,created_at) VALUES (?,?,?,?,?)`,
		u.WorkItemID, u.UserID, u.Narrative, u.ReviewDate, u.CreatedAt)
	if err != nil {
		return u, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func (r Repo) ListUpdates(ctx context.Context, workItemID int64) ([]domain.Update, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,work_item_id,user_id,narrative,review_date,created_at FROM updates WHERE work_item_id=? ORDER BY id ASC`, workItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUpdates(rows)
}

// ItemRow is the flattened work-item projection the dashboard reads.
// LocationName is nullable so a missing location can fall back to a
// placeholder instead of dropping the row.
type ItemRow struct {
	ID            int64
	Statement     string
	AreaStatement string
	LocationName  sql.NullString
}

// ListOrgItemRows returns every work item under the organization's
// locations, oldest first, with its work area and location context joined in.
func (r Repo) ListOrgItemRows(ctx context.Context, orgID int64) ([]ItemRow, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT wi.id, wi.statement, wa.statement, l.name
		FROM work_items wi
		JOIN work_areas wa ON wa.id = wi.work_area_id
		JOIN location_assets la ON la.id = wa.asset_id
		JOIN locations l ON l.id = la.location_id
		WHERE l.organization_id = ?
		ORDER BY wi.id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ItemRow
	for rows.Next() {
		var row ItemRow
		if err := rows.Scan(&row.ID, &row.Statement, &row.AreaStatement, &row.LocationName); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// ListOrgUpdates loads the full update history for every work item in the
// organization, keyed by item id. Within each item the slice is ordered by
// update id ascending, so the last element is the most recent update.
func (r Repo) ListOrgUpdates(ctx context.Context, orgID int64) (map[int64][]domain.Update, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.work_item_id, u.user_id, u.narrative, u.review_date, u.created_at
		FROM updates u
		JOIN work_items wi ON wi.id = u.work_item_id
		JOIN work_areas wa ON wa.id = wi.work_area_id
		JOIN location_assets la ON la.id = wa.asset_id
		JOIN locations l ON l.id = la.location_id
		WHERE l.organization_id = ?
		ORDER BY u.id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int64][]domain.Update{}
	for rows.Next() {
		var u domain.Update
		if err := rows.Scan(&u.ID, &u.WorkItemID, &u.UserID, &u.Narrative, &u.ReviewDate, &u.CreatedAt); err != nil {
			return nil, err
		}
		res[u.WorkItemID] = append(res[u.WorkItemID], u)
	}
	return res, rows.Err()
}

func (r Repo) CountOrgItems(ctx context.Context, orgID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM work_items wi
		JOIN work_areas wa ON wa.id = wi.work_area_id
		JOIN location_assets la ON la.id = wa.asset_id
		JOIN locations l ON l.id = la.location_id
		WHERE l.organization_id = ?`, orgID).Scan(&n)
	return n, err
}

// OrgIDForWorkArea resolves the owning organization of a work area, used by
// the API layer to enforce tenant scoping before mutating.
func (r Repo) OrgIDForWorkArea(ctx context.Context, areaID int64) (int64, error) {
	var orgID int64
	err := r.DB.QueryRowContext(ctx, `
		SELECT l.organization_id
		FROM work_areas wa
		JOIN location_assets la ON la.id = wa.asset_id
		JOIN locations l ON l.id = la.location_id
		WHERE wa.id = ?`, areaID).Scan(&orgID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return orgID, err
}

func (r Repo) OrgIDForWorkItem(ctx context.Context, itemID int64) (int64, error) {
	var orgID int64
	err := r.DB.QueryRowContext(ctx, `
		SELECT l.organization_id
		FROM work_items wi
		JOIN work_areas wa ON wa.id = wi.work_area_id
		JOIN location_assets la ON la.id = wa.asset_id
		JOIN locations l ON l.id = la.location_id
		WHERE wi.id = ?`, itemID).Scan(&orgID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return orgID, err
}

func scanUpdates(rows *sql.Rows) ([]domain.Update, error) {
	var res []domain.Update
	for rows.Next() {
		var u domain.Update
		if err := rows.Scan(&u.ID, &u.WorkItemID, &u.UserID, &u.Narrative, &u.ReviewDate, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
