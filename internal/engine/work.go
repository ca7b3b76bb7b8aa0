package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"upkeep/internal/domain"
	"upkeep/internal/events"
	"upkeep/internal/repo"
	"upkeep/internal/schedule"
	"upkeep/internal/template"
)

// GeneratedArea pairs a work area with the items materialized under it.
type GeneratedArea struct {
	Area  domain.WorkArea   `json:"area"`
	Items []domain.WorkItem `json:"items"`
}

// AttachResult is what an asset attachment produces.
type AttachResult struct {
	Asset domain.LocationAsset `json:"asset"`
	Areas []GeneratedArea      `json:"areas"`
}

// AttachAsset attaches an asset type to a location and materializes its
// checklist in the same transaction: one work area per template section, one
// work item per task, all marked relevant. Either the asset and its full
// structure commit together or nothing does. Attaching the same type twice
// generates a second independent copy.
func (e Engine) AttachAsset(ctx context.Context, locationID, assetTypeID, actorID int64) (AttachResult, error) {
	loc, err := e.Repo.GetLocation(ctx, locationID)
	if err != nil {
		return AttachResult{}, fmt.Errorf("location: %w", err)
	}
	at, err := e.Repo.GetAssetType(ctx, assetTypeID)
	if err != nil {
		return AttachResult{}, fmt.Errorf("asset type: %w", err)
	}

	now := e.nowRFC3339()
	sections := template.Parse(at.Template)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AttachResult{}, err
	}
	defer tx.Rollback()

	asset, err := e.Repo.InsertAssetTx(ctx, tx, domain.LocationAsset{
		LocationID:  locationID,
		AssetTypeID: assetTypeID,
		CreatedAt:   now,
	})
	if err != nil {
		return AttachResult{}, fmt.Errorf("insert asset: %w", err)
	}

	res := AttachResult{Asset: asset}
	for _, sec := range sections {
		area, err := e.Repo.InsertWorkAreaTx(ctx, tx, domain.WorkArea{
			AssetID:    asset.ID,
			Statement:  sec.Title,
			IsRelevant: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if err != nil {
			return AttachResult{}, fmt.Errorf("insert work area: %w", err)
		}
		gen := GeneratedArea{Area: area}
		for _, task := range sec.Tasks {
			item, err := e.Repo.InsertWorkItemTx(ctx, tx, domain.WorkItem{
				WorkAreaID: area.ID,
				Statement:  task,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if err != nil {
				return AttachResult{}, fmt.Errorf("insert work item: %w", err)
			}
			gen.Items = append(gen.Items, item)
		}
		res.Areas = append(res.Areas, gen)
	}

	if err := e.events().Append(ctx, tx, "asset.attached", &loc.OrganizationID, "location_asset", asset.ID, actorID, events.EventPayload{
		"location_id":   locationID,
		"asset_type_id": assetTypeID,
		"area_count":    len(res.Areas),
	}); err != nil {
		return AttachResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return AttachResult{}, err
	}
	return res, nil
}

// SetAreaRelevance marks a generated work area as applicable or not. Items
// under an irrelevant area are kept but expected to be ignored by callers.
func (e Engine) SetAreaRelevance(ctx context.Context, areaID int64, relevant bool, actorID int64) (domain.WorkArea, error) {
	orgID, err := e.Repo.OrgIDForWorkArea(ctx, areaID)
	if err != nil {
		return domain.WorkArea{}, err
	}
	if err := e.Repo.SetWorkAreaRelevance(ctx, areaID, relevant, e.nowRFC3339()); err != nil {
		return domain.WorkArea{}, err
	}
	area, err := e.Repo.GetWorkArea(ctx, areaID)
	if err != nil {
		return area, err
	}
	err = e.audit(ctx, "work_area.relevance", &orgID, "work_area", areaID, actorID, events.EventPayload{"is_relevant": relevant})
	return area, err
}

// AddUpdate appends a progress note to a work item. ReviewDate, when given,
// schedules the item for reconsideration. History is append-only.
func (e Engine) AddUpdate(ctx context.Context, itemID int64, userID int64, narrative string, reviewDate *string) (domain.Update, error) {
	if narrative == "" {
		return domain.Update{}, errors.New("narrative is required")
	}
	if reviewDate != nil {
		if _, err := time.Parse(time.RFC3339, *reviewDate); err != nil {
			return domain.Update{}, fmt.Errorf("review_date must be RFC3339: %w", err)
		}
	}
	orgID, err := e.Repo.OrgIDForWorkItem(ctx, itemID)
	if err != nil {
		return domain.Update{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Update{}, err
	}
	defer tx.Rollback()

	u, err := e.Repo.InsertUpdateTx(ctx, tx, domain.Update{
		WorkItemID: itemID,
		UserID:     userID,
		Narrative:  narrative,
		ReviewDate: reviewDate,
		CreatedAt:  e.nowRFC3339(),
	})
	if err != nil {
		return u, err
	}
	if err := e.events().Append(ctx, tx, "update.created", &orgID, "update", u.ID, userID, events.EventPayload{
		"work_item_id": itemID,
	}); err != nil {
		return u, err
	}
	if err := tx.Commit(); err != nil {
		return u, err
	}
	return u, nil
}

// DashboardStats reports the headline counts for an organization. An item
// can be both outstanding and due soon, so the two counts may overlap.
func (e Engine) DashboardStats(ctx context.Context, orgID int64) (domain.DashboardStats, error) {
	rows, updatesByItem, err := e.dashboardRows(ctx, orgID)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	now := e.now()
	stats := domain.DashboardStats{TotalItems: len(rows)}
	for _, row := range rows {
		ups := updatesByItem[row.ID]
		if schedule.Outstanding(ups, now) {
			stats.OutstandingCount++
		}
		if schedule.DueSoon(ups, now) {
			stats.DueSoonCount++
		}
	}
	return stats, nil
}

// DashboardOutstanding lists every outstanding item in the organization,
// oldest first, with its work area and location context.
func (e Engine) DashboardOutstanding(ctx context.Context, orgID int64) ([]domain.DashboardItem, error) {
	return e.dashboardList(ctx, orgID, schedule.Outstanding)
}

// DashboardDueSoon lists items with a review date inside the next 30 days.
func (e Engine) DashboardDueSoon(ctx context.Context, orgID int64) ([]domain.DashboardItem, error) {
	return e.dashboardList(ctx, orgID, schedule.DueSoon)
}

func (e Engine) dashboardList(ctx context.Context, orgID int64, include func([]domain.Update, time.Time) bool) ([]domain.DashboardItem, error) {
	rows, updatesByItem, err := e.dashboardRows(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	items := []domain.DashboardItem{}
	for _, row := range rows {
		ups := updatesByItem[row.ID]
		if !include(ups, now) {
			continue
		}
		item := domain.DashboardItem{
			ID:                row.ID,
			Statement:         row.Statement,
			WorkAreaStatement: row.AreaStatement,
			LocationName:      "Unknown",
			DaysSinceUpdate:   schedule.DaysSinceLastUpdate(ups, now),
		}
		if row.LocationName.Valid {
			item.LocationName = row.LocationName.String
		}
		items = append(items, item)
	}
	return items, nil
}

func (e Engine) dashboardRows(ctx context.Context, orgID int64) ([]repo.ItemRow, map[int64][]domain.Update, error) {
	rows, err := e.Repo.ListOrgItemRows(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	updatesByItem, err := e.Repo.ListOrgUpdates(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	return rows, updatesByItem, nil
}
