package domain

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

type Organization struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	ParentID  *int64 `json:"parent_organization_id,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type KeyContact struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Title          string `json:"title,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
}

type Location struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

// AssetType is a named checklist template. The template text is immutable
// once assets have been generated from it; edits never cascade into work
// already materialized.
type AssetType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template"`
}

// LocationAsset is one asset-type instance attached to a location. Its
// creation is the sole trigger for work generation.
type LocationAsset struct {
	ID          int64  `json:"id"`
	LocationID  int64  `json:"location_id"`
	AssetTypeID int64  `json:"asset_type_id"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type WorkArea struct {
	ID         int64  `json:"id"`
	AssetID    int64  `json:"asset_id"`
	Statement  string `json:"statement"`
	IsRelevant bool   `json:"is_relevant"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

type WorkItem struct {
	ID          int64   `json:"id"`
	WorkAreaID  int64   `json:"work_area_id"`
	Statement   string  `json:"statement"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// Update is an append-only progress note on a work item. ReviewDate, when
// set, is the point at which the item should be reconsidered. CreatedAt and
// ReviewDate are RFC3339 strings, but historical rows may lack a zone offset.
type Update struct {
	ID         int64   `json:"id"`
	WorkItemID int64   `json:"work_item_id"`
	UserID     int64   `json:"user_id"`
	Narrative  string  `json:"narrative"`
	ReviewDate *string `json:"review_date,omitempty" format:"date-time"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	HashedPassword string `json:"-"`
	FullName       string `json:"full_name,omitempty"`
	Role           string `json:"role" enum:"admin,manager,viewer"`
	IsActive       bool   `json:"is_active"`
	OrganizationID int64  `json:"organization_id"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OrgID      *int64 `json:"org_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// DashboardStats are the headline counts for one organization. The
// outstanding and due-soon sets overlap by design, so the counts are not a
// partition of the total.
type DashboardStats struct {
	OutstandingCount int `json:"outstanding_count"`
	DueSoonCount     int `json:"due_soon_count"`
	TotalItems       int `json:"total_items"`
}

// DashboardItem is an enriched work-item row for the outstanding and
// due-soon listings.
type DashboardItem struct {
	ID                int64  `json:"id"`
	Statement         string `json:"statement"`
	WorkAreaStatement string `json:"work_area_statement"`
	LocationName      string `json:"location_name"`
	DaysSinceUpdate   *int   `json:"days_since_update,omitempty"`
}
