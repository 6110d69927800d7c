// Package ledger exposes the posting engine's inbound commands over HTTP.
// Callers are other modules of the platform; authentication and permission
// checks happen upstream.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/balances"
	"github.com/meridian-erp/meridian-erp/internal/ledger/posting"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	posting  *posting.Service
	balances *balances.Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, postingSvc *posting.Service, balanceSvc *balances.Service) *Handler {
	return &Handler{
		logger:   logger,
		posting:  postingSvc,
		balances: balanceSvc,
		validate: validator.New(),
	}
}

func (h *Handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	var req postPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.posting.PostPayment(r.Context(), posting.PaymentInput{
		TenantID:    req.TenantID,
		BranchID:    req.BranchID,
		Direction:   posting.PaymentDirection(req.Direction),
		Amount:      req.Amount,
		Method:      req.Method,
		CustomerID:  req.CustomerID,
		SupplierID:  req.SupplierID,
		InvoiceID:   req.InvoiceID,
		PurchaseID:  req.PurchaseID,
		ExternalRef: req.ExternalRef,
		Note:        req.Note,
		Date:        req.Date,
		ActorID:     req.ActorID,
	})
	h.respondPosting(w, result, err, "post payment")
}

func (h *Handler) PostOpeningStock(w http.ResponseWriter, r *http.Request) {
	var req postOpeningStockRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.posting.PostOpeningStock(r.Context(), posting.OpeningStockInput{
		TenantID:  req.TenantID,
		BranchID:  req.BranchID,
		Valuation: req.Valuation,
		ProductID: req.ProductID,
		Date:      req.Date,
		ActorID:   req.ActorID,
	})
	h.respondPosting(w, result, err, "post opening stock")
}

func (h *Handler) PostAdjustment(w http.ResponseWriter, r *http.Request) {
	var req postAdjustmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.posting.PostStockAdjustment(r.Context(), posting.StockAdjustmentInput{
		TenantID:  req.TenantID,
		BranchID:  req.BranchID,
		Direction: posting.AdjustmentDirection(req.Direction),
		Valuation: req.Valuation,
		ProductID: req.ProductID,
		Reason:    req.Reason,
		Date:      req.Date,
		ActorID:   req.ActorID,
	})
	h.respondPosting(w, result, err, "post adjustment")
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	h.reverse(w, r, h.posting.ReverseEvent)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.reverse(w, r, h.posting.CancelEvent)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tenantID int64, eventID uuid.UUID) (posting.PostingResult, error)) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid event id")
		return
	}
	var req reverseRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := fn(r.Context(), req.TenantID, eventID)
	h.respondPosting(w, result, err, "reverse event")
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid event id")
		return
	}
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	event, err := h.posting.GetEvent(r.Context(), tenantID, eventID)
	if err != nil {
		h.respondError(w, err, "get event")
		return
	}
	httpx.JSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	filter := balances.Filter{
		Type:       accounts.AccountType(r.URL.Query().Get("type")),
		CodePrefix: r.URL.Query().Get("code_prefix"),
	}
	views, err := h.balances.AccountsWithBalance(r.Context(), tenantID, filter)
	if err != nil {
		h.respondError(w, err, "list balances")
		return
	}
	out := make([]accountViewResponse, 0, len(views))
	for _, view := range views {
		out = append(out, toViewResponse(view))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	roots, err := h.balances.AccountHierarchy(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err, "account hierarchy")
		return
	}
	out := make([]accountNodeResponse, 0, len(roots))
	for _, root := range roots {
		out = append(out, toNodeResponse(root))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenantFromQuery(w, r)
	if !ok {
		return
	}
	summary, err := h.balances.Summary(r.Context(), tenantID)
	if err != nil {
		h.respondError(w, err, "tenant summary")
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) tenantFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id query parameter required")
		return 0, false
	}
	return tenantID, true
}

func (h *Handler) respondPosting(w http.ResponseWriter, result posting.PostingResult, err error, op string) {
	if err != nil {
		h.respondError(w, err, op)
		return
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	httpx.JSON(w, status, postingResponse{
		EventID:   result.EventID.String(),
		EntryIDs:  result.EntryIDs,
		Duplicate: result.Duplicate,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConfiguration):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Configuration Error", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrEventNotFound), errors.Is(err, shared.ErrAccountNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrTransientStore):
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "write conflict, retry the request")
	case errors.Is(err, shared.ErrReconciliationRequired):
		httpx.Problem(w, http.StatusAccepted, "Queued For Reconciliation", "the event was parked for manual reconciliation")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toEventResponse(event posting.Event) eventResponse {
	return eventResponse{
		ID:          event.ID.String(),
		TenantID:    event.TenantID,
		BranchID:    event.BranchID,
		Kind:        string(event.Kind),
		Direction:   event.Direction,
		Amount:      event.Amount.String(),
		Method:      event.Method,
		CustomerID:  event.CustomerID,
		SupplierID:  event.SupplierID,
		InvoiceID:   event.InvoiceID,
		PurchaseID:  event.PurchaseID,
		ProductID:   event.ProductID,
		ExternalRef: event.ExternalRef,
		Reason:      event.Reason,
		Status:      string(event.Status),
		PostedAt:    event.PostedAt,
		ReversedAt:  event.ReversedAt,
	}
}

func toViewResponse(view balances.AccountView) accountViewResponse {
	return accountViewResponse{
		ID:              view.Account.ID,
		Code:            view.Account.Code,
		Name:            view.Account.Name,
		Type:            string(view.Account.Type),
		IsGroup:         view.Account.IsGroup,
		TotalDebit:      view.TotalDebit.String(),
		TotalCredit:     view.TotalCredit.String(),
		RawBalance:      view.RawBalance.String(),
		ComputedBalance: view.ComputedBalance.String(),
		Balance:         view.Balance.String(),
	}
}

func toNodeResponse(node *balances.AccountNode) accountNodeResponse {
	out := accountNodeResponse{accountViewResponse: toViewResponse(node.AccountView)}
	for _, child := range node.Children {
		out.Children = append(out.Children, toNodeResponse(child))
	}
	return out
}
