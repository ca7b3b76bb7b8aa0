package server

import "upkeep/internal/domain"

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
	ExpiresIn   int    `json:"expires_in" doc:"Lifetime in seconds"`
}

type RegisterRequest struct {
	OrganizationID int64  `json:"organization_id"`
	Email          string `json:"email" format:"email"`
	Password       string `json:"password" minLength:"1"`
	FullName       string `json:"full_name,omitempty"`
	Role           string `json:"role,omitempty" enum:"admin,manager,viewer"`
}

type CreateOrganizationRequest struct {
	Name     string `json:"name" minLength:"1"`
	Address  string `json:"address,omitempty"`
	ParentID *int64 `json:"parent_organization_id,omitempty"`
}

type PatchOrganizationRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateKeyContactRequest struct {
	Name  string `json:"name" minLength:"1"`
	Title string `json:"title,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CreateLocationRequest struct {
	Name    string `json:"name" minLength:"1"`
	Address string `json:"address,omitempty"`
}

type PatchLocationRequest struct {
	Name    *string `json:"name,omitempty"`
	Address *string `json:"address,omitempty"`
}

type CreateAssetTypeRequest struct {
	Name        string `json:"name" minLength:"1"`
	Description string `json:"description,omitempty"`
	Template    string `json:"template" minLength:"1" doc:"Markdown checklist: ## headings become work areas, - bullets become work items"`
}

type AttachAssetRequest struct {
	AssetTypeID int64 `json:"asset_type_id"`
}

type SetRelevanceRequest struct {
	IsRelevant bool `json:"is_relevant"`
}

type AddUpdateRequest struct {
	Narrative  string  `json:"narrative" minLength:"1"`
	ReviewDate *string `json:"review_date,omitempty" format:"date-time"`
}

type IssueAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type IssueAPIKeyResponse struct {
	ID        string `json:"id"`
	Key       string `json:"key" doc:"Shown once; only a hash is stored"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type MeResponse struct {
	User domain.User `json:"user"`
	Via  string      `json:"via" enum:"jwt,api_key"`
}
