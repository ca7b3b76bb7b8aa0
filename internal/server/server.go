package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"upkeep/internal/domain"
	"upkeep/internal/engine"
	"upkeep/internal/engine/auth"
	"upkeep/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"location not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every failing response uses.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Upkeep API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Upkeep API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAuth(group, cfg.Engine, cfg.Auth)
	registerMe(group, cfg.Engine)
	registerOrganizations(group, cfg.Engine)
	registerLocations(group, cfg.Engine)
	registerAssetTypes(group, cfg.Engine)
	registerWork(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"role": fe.Role})
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrConflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown role"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			Status string `json:"status" example:"ok"`
		} `json:"body"`
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"ok"`
			} `json:"body"`
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})
}

func registerAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Exchange credentials for a bearer token",
		Errors:      []int{http.StatusUnauthorized, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		u, err := e.Authenticate(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, handleError(err)
		}
		ttl := time.Duration(e.Config.TokenTTLMinutes()) * time.Minute
		token, err := auth.SignToken([]byte(authCfg.JWTSecret), u, ttl, e.Now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: TokenResponse{AccessToken: token, TokenType: "bearer", ExpiresIn: int(ttl.Seconds())}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/auth/register",
		Summary:       "Create an account",
		Description:   "Unauthenticated callers always get the viewer role. Only an authenticated admin may assign another role.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		role := domain.RoleViewer
		var actorID int64
		if p, ok := principalFromContext(ctx); ok {
			actorID = p.UserID
			if p.Role == domain.RoleAdmin && input.Body.Role != "" {
				role = input.Body.Role
			}
		}
		u, err := e.RegisterUser(ctx, input.Body.OrganizationID, input.Body.Email, input.Body.Password, input.Body.FullName, role, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current account",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.Repo.GetUser(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{User: u, Via: p.Source}}, nil
	})
}

func registerOrganizations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-organization",
		Method:        http.MethodPost,
		Path:          "/organizations",
		Summary:       "Create organization",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateOrganizationRequest `json:"body"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleManager)
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.CreateOrganization(ctx, input.Body.Name, input.Body.Address, input.Body.ParentID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-organization",
		Method:      http.MethodGet,
		Path:        "/organizations/{id}",
		Summary:     "Get organization",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		if _, err := requireOrg(ctx, domain.RoleViewer, input.ID); err != nil {
			return nil, handleError(err)
		}
		o, err := e.Repo.GetOrganization(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "patch-organization",
		Method:      http.MethodPatch,
		Path:        "/organizations/{id}",
		Summary:     "Update organization",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   int64                    `path:"id"`
		Body PatchOrganizationRequest `json:"body"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		p, err := requireOrg(ctx, domain.RoleAdmin, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.UpdateOrganization(ctx, input.ID, input.Body.Name, input.Body.Address, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-key-contact",
		Method:        http.MethodPost,
		Path:          "/organizations/{id}/contacts",
		Summary:       "Add key contact",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ID   int64                   `path:"id"`
		Body CreateKeyContactRequest `json:"body"`
	}) (*struct {
		Body domain.KeyContact `json:"body"`
	}, error) {
		p, err := requireOrg(ctx, domain.RoleManager, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.AddKeyContact(ctx, domain.KeyContact{
			OrganizationID: input.ID,
			Name:           input.Body.Name,
			Title:          input.Body.Title,
			Email:          input.Body.Email,
			Phone:          input.Body.Phone,
		}, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.KeyContact `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-key-contacts",
		Method:      http.MethodGet,
		Path:        "/organizations/{id}/contacts",
		Summary:     "List key contacts",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []domain.KeyContact `json:"body"`
	}, error) {
		if _, err := requireOrg(ctx, domain.RoleViewer, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListKeyContacts(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.KeyContact{}
		}
		return &struct {
			Body []domain.KeyContact `json:"body"`
		}{Body: items}, nil
	})
}

func registerLocations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-location",
		Method:        http.MethodPost,
		Path:          "/locations",
		Summary:       "Create location",
		Description:   "The location is created in the caller's organization.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateLocationRequest `json:"body"`
	}) (*struct {
		Body domain.Location `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleManager)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := e.CreateLocation(ctx, p.OrgID, input.Body.Name, input.Body.Address, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Location `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-locations",
		Method:      http.MethodGet,
		Path:        "/locations",
		Summary:     "List locations",
	}, func(ctx context.Context, input *struct {
		Limit  int `query:"limit" default:"100" minimum:"1" maximum:"500"`
		Offset int `query:"offset" default:"0" minimum:"0"`
	}) (*struct {
		Body []domain.Location `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListLocations(ctx, p.OrgID, input.Limit, input.Offset)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Location{}
		}
		return &struct {
			Body []domain.Location `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-location",
		Method:      http.MethodGet,
		Path:        "/locations/{id}",
		Summary:     "Get location",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Location `json:"body"`
	}, error) {
		l, err := locationInCallerOrg(ctx, e, input.ID, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Location `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "patch-location",
		Method:      http.MethodPatch,
		Path:        "/locations/{id}",
		Summary:     "Update location",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   int64                `path:"id"`
		Body PatchLocationRequest `json:"body"`
	}) (*struct {
		Body domain.Location `json:"body"`
	}, error) {
		if _, err := locationInCallerOrg(ctx, e, input.ID, domain.RoleManager); err != nil {
			return nil, handleError(err)
		}
		p, _ := principalFromContext(ctx)
		l, err := e.UpdateLocation(ctx, input.ID, input.Body.Name, input.Body.Address, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Location `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "attach-asset",
		Method:        http.MethodPost,
		Path:          "/locations/{id}/assets",
		Summary:       "Attach asset type to location",
		Description:   "Materializes the asset type's checklist: one work area per template heading, one work item per bullet. Attaching the same type again generates a second independent copy.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ID   int64              `path:"id"`
		Body AttachAssetRequest `json:"body"`
	}) (*struct {
		Body engine.AttachResult `json:"body"`
	}, error) {
		if _, err := locationInCallerOrg(ctx, e, input.ID, domain.RoleManager); err != nil {
			return nil, handleError(err)
		}
		p, _ := principalFromContext(ctx)
		res, err := e.AttachAsset(ctx, input.ID, input.Body.AssetTypeID, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AttachResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-location-assets",
		Method:      http.MethodGet,
		Path:        "/locations/{id}/assets",
		Summary:     "List attached assets",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []domain.LocationAsset `json:"body"`
	}, error) {
		if _, err := locationInCallerOrg(ctx, e, input.ID, domain.RoleViewer); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAssetsForLocation(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.LocationAsset{}
		}
		return &struct {
			Body []domain.LocationAsset `json:"body"`
		}{Body: items}, nil
	})
}

func locationInCallerOrg(ctx context.Context, e engine.Engine, locationID int64, role string) (domain.Location, error) {
	p, err := requireRole(ctx, role)
	if err != nil {
		return domain.Location{}, err
	}
	l, err := e.Repo.GetLocation(ctx, locationID)
	if err != nil {
		return l, err
	}
	if l.OrganizationID != p.OrgID {
		return l, repo.ErrNotFound
	}
	return l, nil
}

func registerAssetTypes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-asset-type",
		Method:        http.MethodPost,
		Path:          "/asset-types",
		Summary:       "Create asset type",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAssetTypeRequest `json:"body"`
	}) (*struct {
		Body domain.AssetType `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		at, err := e.CreateAssetType(ctx, input.Body.Name, input.Body.Description, input.Body.Template, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AssetType `json:"body"`
		}{Body: at}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-asset-types",
		Method:      http.MethodGet,
		Path:        "/asset-types",
		Summary:     "List asset types",
	}, func(ctx context.Context, input *struct {
		Limit  int `query:"limit" default:"100" minimum:"1" maximum:"500"`
		Offset int `query:"offset" default:"0" minimum:"0"`
	}) (*struct {
		Body []domain.AssetType `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, domain.RoleViewer); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAssetTypes(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.AssetType{}
		}
		return &struct {
			Body []domain.AssetType `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-asset-type",
		Method:      http.MethodGet,
		Path:        "/asset-types/{id}",
		Summary:     "Get asset type",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.AssetType `json:"body"`
	}, error) {
		if _, err := requireRole(ctx, domain.RoleViewer); err != nil {
			return nil, handleError(err)
		}
		at, err := e.Repo.GetAssetType(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AssetType `json:"body"`
		}{Body: at}, nil
	})
}

func registerWork(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-work-areas",
		Method:      http.MethodGet,
		Path:        "/assets/{id}/areas",
		Summary:     "List work areas for an asset",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []domain.WorkArea `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.Repo.GetAsset(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := e.Repo.GetLocation(ctx, a.LocationID)
		if err != nil {
			return nil, handleError(err)
		}
		if l.OrganizationID != p.OrgID {
			return nil, handleError(repo.ErrNotFound)
		}
		items, err := e.Repo.ListWorkAreas(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.WorkArea{}
		}
		return &struct {
			Body []domain.WorkArea `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-work-area",
		Method:      http.MethodGet,
		Path:        "/areas/{id}",
		Summary:     "Get a work area",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.WorkArea `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		if err := checkAreaOrg(ctx, e, input.ID, p.OrgID); err != nil {
			return nil, handleError(err)
		}
		area, err := e.Repo.GetWorkArea(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkArea `json:"body"`
		}{Body: area}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-area-relevance",
		Method:      http.MethodPatch,
		Path:        "/areas/{id}/relevance",
		Summary:     "Mark a work area relevant or not",
		Errors:      []int{http.StatusNotFound, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   int64               `path:"id"`
		Body SetRelevanceRequest `json:"body"`
	}) (*struct {
		Body domain.WorkArea `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleManager)
		if err != nil {
			return nil, handleError(err)
		}
		if err := checkAreaOrg(ctx, e, input.ID, p.OrgID); err != nil {
			return nil, handleError(err)
		}
		area, err := e.SetAreaRelevance(ctx, input.ID, input.Body.IsRelevant, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkArea `json:"body"`
		}{Body: area}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-work-items",
		Method:      http.MethodGet,
		Path:        "/areas/{id}/items",
		Summary:     "List work items in an area",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []domain.WorkItem `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		if err := checkAreaOrg(ctx, e, input.ID, p.OrgID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListWorkItems(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.WorkItem{}
		}
		return &struct {
			Body []domain.WorkItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-work-item",
		Method:      http.MethodGet,
		Path:        "/items/{id}",
		Summary:     "Get a work item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.WorkItem `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		if err := checkItemOrg(ctx, e, input.ID, p.OrgID); err != nil {
			return nil, handleError(err)
		}
		item, err := e.Repo.GetWorkItem(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-update",
		Method:        http.MethodPost,
		Path:          "/items/{id}/updates",
		Summary:       "Append an update to a work item",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound, http.StatusForbidden, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ID   int64            `path:"id"`
		Body AddUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Update `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleManager)
		if err != nil {
			return nil, handleError(err)
		}
		if err := checkItemOrg(ctx, e, input.ID, p.OrgID); err != nil {
			return nil, handleError(err)
		}
		u, err := e.AddUpdate(ctx, input.ID, p.UserID, input.Body.Narrative, input.Body.ReviewDate)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Update `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-updates",
		Method:      http.MethodGet,
		Path:        "/items/{id}/updates",
		Summary:     "List updates for a work item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body []domain.Update `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		if err := checkItemOrg(ctx, e, input.ID, p.OrgID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListUpdates(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Update{}
		}
		return &struct {
			Body []domain.Update `json:"body"`
		}{Body: items}, nil
	})
}

func checkAreaOrg(ctx context.Context, e engine.Engine, areaID, orgID int64) error {
	owner, err := e.Repo.OrgIDForWorkArea(ctx, areaID)
	if err != nil {
		return err
	}
	if owner != orgID {
		return repo.ErrNotFound
	}
	return nil
}

func checkItemOrg(ctx context.Context, e engine.Engine, itemID, orgID int64) error {
	owner, err := e.Repo.OrgIDForWorkItem(ctx, itemID)
	if err != nil {
		return err
	}
	if owner != orgID {
		return repo.ErrNotFound
	}
	return nil
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard-stats",
		Method:      http.MethodGet,
		Path:        "/dashboard/stats",
		Summary:     "Dashboard counts",
		Description: "Outstanding and due-soon sets may overlap, so their counts are not a partition of total_items.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.DashboardStats `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		stats, err := e.DashboardStats(ctx, p.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DashboardStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-outstanding",
		Method:      http.MethodGet,
		Path:        "/dashboard/outstanding",
		Summary:     "Outstanding work items",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.DashboardItem `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.DashboardOutstanding(ctx, p.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.DashboardItem `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard-due-soon",
		Method:      http.MethodGet,
		Path:        "/dashboard/due-soon",
		Summary:     "Work items due within 30 days",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.DashboardItem `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleViewer)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.DashboardDueSoon(ctx, p.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.DashboardItem `json:"body"`
		}{Body: items}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users in the caller's organization",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.User `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListUsers(ctx, p.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.User{}
		}
		return &struct {
			Body []domain.User `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-role",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/role",
		Summary:     "Change a user's role",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body struct {
			Role string `json:"role" enum:"admin,manager,viewer"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		target, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if target.OrganizationID != p.OrgID {
			return nil, handleError(repo.ErrNotFound)
		}
		u, err := e.SetUserRole(ctx, input.ID, input.Body.Role, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-active",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/active",
		Summary:     "Enable or disable an account",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body struct {
			IsActive bool `json:"is_active"`
		} `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		target, err := e.Repo.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if target.OrganizationID != p.OrgID {
			return nil, handleError(repo.ErrNotFound)
		}
		u, err := e.SetUserActive(ctx, input.ID, input.Body.IsActive, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "issue-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Issue an API key for the caller",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body IssueAPIKeyRequest `json:"body"`
	}) (*struct {
		Body IssueAPIKeyResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		k, plaintext, err := e.IssueAPIKey(ctx, p.UserID, input.Body.Name, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueAPIKeyResponse `json:"body"`
		}{Body: IssueAPIKeyResponse{ID: k.ID, Key: plaintext, Name: k.Name, CreatedAt: k.CreatedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List the caller's API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListAPIKeys(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.APIKey{}
		}
		for i := range items {
			items[i].KeyHash = ""
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Revoke an API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, p.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		owned := false
		for _, k := range keys {
			if k.ID == input.ID {
				owned = true
				break
			}
		}
		if !owned {
			return nil, handleError(repo.ErrNotFound)
		}
		if err := e.RevokeAPIKey(ctx, input.ID, p.UserID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent audit events for the caller's organization",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		p, err := requireRole(ctx, domain.RoleAdmin)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListRecentEvents(ctx, p.OrgID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		path.Join("/", basePath, "health"):        true,
		path.Join("/", basePath, "auth/login"):    true,
		path.Join("/", basePath, "auth/register"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Upkeep API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css"/>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({ url: %q, dom_id: "#swagger-ui" });
      };
    </script>
  </body>
</html>`, specURL)
}
