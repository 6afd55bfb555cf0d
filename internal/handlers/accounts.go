package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/campusdesk/api/internal/domain"
	"github.com/campusdesk/api/internal/platform/auth"
	"github.com/campusdesk/api/internal/platform/httpx"
	"github.com/campusdesk/api/internal/services"
)

const maxAccountBodySize = 4 * 1024

// AccountHandlers exposes the authenticated principal's account record and
// the admin-only directory writes.
type AccountHandlers struct {
	authn      *auth.Authenticator
	principals services.PrincipalResolver
	accounts   services.AccountService
}

// NewAccountHandlers constructs a new AccountHandlers instance.
func NewAccountHandlers(authn *auth.Authenticator, principals services.PrincipalResolver, accounts services.AccountService) *AccountHandlers {
	return &AccountHandlers{
		authn:      authn,
		principals: principals,
		accounts:   accounts,
	}
}

// Routes registers the /accounts endpoints.
func (h *AccountHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.Require())
	}
	r.Get("/me", h.me)
	r.Put("/{accountID}", h.upsertAccount)
}

// me returns the account as the authorization policy sees it, which is what
// clients need to decide which views to render.
func (h *AccountHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	writeJSONResponse(w, http.StatusOK, accountResponse{Account: buildAccountPayload(principal)})
}

// upsertAccount provisions or re-assigns a directory record. The service
// enforces that only admins may write the directory.
func (h *AccountHandlers) upsertAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("account_service_unavailable", "account service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := resolvePrincipal(ctx, w, h.principals)
	if !ok {
		return
	}

	accountID := strings.TrimSpace(chi.URLParam(r, "accountID"))
	if accountID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "account id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxAccountBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertAccountRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	account, err := h.accounts.UpsertAccount(ctx, principal, services.UpsertAccountCommand{
		AccountID:    accountID,
		Email:        req.Email,
		Role:         domain.ParseRole(req.Role),
		RestaurantID: req.RestaurantID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, accountResponse{Account: buildAccountRecordPayload(account)})
}

type upsertAccountRequest struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	RestaurantID string `json:"restaurant_id"`
}

type accountResponse struct {
	Account accountPayload `json:"account"`
}

type accountPayload struct {
	ID           string `json:"id"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role"`
	RestaurantID string `json:"restaurant_id,omitempty"`
}

func buildAccountPayload(principal domain.Principal) accountPayload {
	return accountPayload{
		ID:           principal.ID,
		Email:        principal.Email,
		Role:         string(principal.Role),
		RestaurantID: principal.RestaurantID,
	}
}

func buildAccountRecordPayload(account domain.Account) accountPayload {
	return accountPayload{
		ID:           account.ID,
		Email:        account.Email,
		Role:         string(account.Role),
		RestaurantID: account.RestaurantID,
	}
}
