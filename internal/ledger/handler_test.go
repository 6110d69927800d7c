package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/balances"
	"github.com/meridian-erp/meridian-erp/internal/ledger/entries"
	"github.com/meridian-erp/meridian-erp/internal/ledger/posting"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// stubPostingRepo applies writes directly; transactional behaviour is
// covered by the posting package tests.
type stubPostingRepo struct {
	events      map[uuid.UUID]posting.Event
	entries     []entries.LedgerEntry
	nextEntryID int64
}

func newStubPostingRepo() *stubPostingRepo {
	return &stubPostingRepo{events: make(map[uuid.UUID]posting.Event)}
}

func (r *stubPostingRepo) WithTx(ctx context.Context, fn func(context.Context, posting.TxRepository) error) error {
	return fn(ctx, r)
}

func (r *stubPostingRepo) GetEvent(ctx context.Context, tenantID int64, eventID uuid.UUID) (posting.Event, error) {
	event, ok := r.events[eventID]
	if !ok || event.TenantID != tenantID {
		return posting.Event{}, shared.ErrEventNotFound
	}
	return event, nil
}

func (r *stubPostingRepo) FindByExternalRef(ctx context.Context, tenantID int64, ref string) (posting.Event, []int64, error) {
	for _, event := range r.events {
		if event.TenantID == tenantID && event.ExternalRef != nil && *event.ExternalRef == ref {
			return event, r.entryIDs(event.ID), nil
		}
	}
	return posting.Event{}, nil, shared.ErrEventNotFound
}

func (r *stubPostingRepo) FindOpeningStock(ctx context.Context, tenantID, productID int64) (posting.Event, []int64, error) {
	for _, event := range r.events {
		if event.TenantID == tenantID && event.Kind == posting.EventKindOpeningStock &&
			event.ProductID != nil && *event.ProductID == productID {
			return event, r.entryIDs(event.ID), nil
		}
	}
	return posting.Event{}, nil, shared.ErrEventNotFound
}

func (r *stubPostingRepo) RecordPendingReconciliation(ctx context.Context, rec posting.PendingReconciliation) error {
	return nil
}

func (r *stubPostingRepo) entryIDs(referenceID uuid.UUID) []int64 {
	var ids []int64
	for _, line := range r.entries {
		if line.ReferenceID == referenceID && !line.IsReversal {
			ids = append(ids, line.ID)
		}
	}
	return ids
}

func (r *stubPostingRepo) InsertEvent(ctx context.Context, event posting.Event) error {
	r.events[event.ID] = event
	return nil
}

func (r *stubPostingRepo) InsertEntries(ctx context.Context, lines []entries.LedgerEntry) ([]int64, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		r.nextEntryID++
		line.ID = r.nextEntryID
		r.entries = append(r.entries, line)
		ids = append(ids, line.ID)
	}
	return ids, nil
}

func (r *stubPostingRepo) GetEventForUpdate(ctx context.Context, tenantID int64, eventID uuid.UUID) (posting.Event, error) {
	return r.GetEvent(ctx, tenantID, eventID)
}

func (r *stubPostingRepo) ListEntriesByReference(ctx context.Context, tenantID int64, referenceID uuid.UUID) ([]entries.LedgerEntry, error) {
	var out []entries.LedgerEntry
	for _, line := range r.entries {
		if line.TenantID == tenantID && line.ReferenceID == referenceID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (r *stubPostingRepo) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status posting.EventStatus, at time.Time) error {
	event, ok := r.events[eventID]
	if !ok {
		return shared.ErrEventNotFound
	}
	event.Status = status
	event.ReversedAt = &at
	r.events[eventID] = event
	return nil
}

func (r *stubPostingRepo) AdjustCustomerBalance(ctx context.Context, tenantID, customerID int64, delta decimal.Decimal) error {
	return nil
}

func (r *stubPostingRepo) AdjustSupplierBalance(ctx context.Context, tenantID, supplierID int64, delta decimal.Decimal) error {
	return nil
}

func (r *stubPostingRepo) AdjustInvoicePaid(ctx context.Context, tenantID, invoiceID int64, delta decimal.Decimal) error {
	return nil
}

func (r *stubPostingRepo) AdjustPurchasePaid(ctx context.Context, tenantID, purchaseID int64, delta decimal.Decimal) error {
	return nil
}

type stubAccountRepo struct {
	byCode map[string]accounts.Account
	nextID int64
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byCode: make(map[string]accounts.Account)}
}

func (r *stubAccountRepo) Get(ctx context.Context, tenantID int64, code string) (accounts.Account, error) {
	account, ok := r.byCode[fmt.Sprintf("%d:%s", tenantID, code)]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return account, nil
}

func (r *stubAccountRepo) Create(ctx context.Context, account accounts.Account) (accounts.Account, error) {
	r.nextID++
	account.ID = r.nextID
	r.byCode[fmt.Sprintf("%d:%s", account.TenantID, account.Code)] = account
	return account, nil
}

func (r *stubAccountRepo) List(ctx context.Context, tenantID int64) ([]accounts.Account, error) {
	var out []accounts.Account
	for _, account := range r.byCode {
		if account.TenantID == tenantID {
			out = append(out, account)
		}
	}
	return out, nil
}

type stubEntryRepo struct {
	repo *stubPostingRepo
}

func (r *stubEntryRepo) TotalsByAccount(ctx context.Context, tenantID int64) ([]entries.AccountTotals, error) {
	byAccount := make(map[int64]*entries.AccountTotals)
	for _, line := range r.repo.entries {
		if line.TenantID != tenantID {
			continue
		}
		totals, ok := byAccount[line.AccountID]
		if !ok {
			totals = &entries.AccountTotals{AccountID: line.AccountID}
			byAccount[line.AccountID] = totals
		}
		totals.TotalDebit = totals.TotalDebit.Add(line.Debit)
		totals.TotalCredit = totals.TotalCredit.Add(line.Credit)
	}
	var out []entries.AccountTotals
	for _, totals := range byAccount {
		out = append(out, *totals)
	}
	return out, nil
}

func newTestRouter(t *testing.T) (chi.Router, *stubPostingRepo) {
	t.Helper()
	repo := newStubPostingRepo()
	accountRepo := newStubAccountRepo()
	registry := accounts.NewRegistry(accountRepo, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	postingSvc := posting.NewService(repo, registry, nil, logger)
	balanceSvc := balances.NewService(accountRepo, &stubEntryRepo{repo: repo}, nil)
	handler := NewHandler(logger, postingSvc, balanceSvc)

	router := chi.NewRouter()
	router.Route("/api/ledger", handler.MountRoutes)
	return router, repo
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func paymentBody(ref string) map[string]any {
	body := map[string]any{
		"tenant_id": 1,
		"direction": "INFLOW",
		"amount":    "1000",
		"method":    "cash",
	}
	if ref != "" {
		body["external_ref"] = ref
	}
	return body
}

func TestHandlerPostPayment(t *testing.T) {
	router, repo := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody(""))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		EventID   string  `json:"event_id"`
		EntryIDs  []int64 `json:"entry_ids"`
		Duplicate bool    `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.EventID)
	require.Len(t, resp.EntryIDs, 2)
	require.False(t, resp.Duplicate)
	require.Len(t, repo.entries, 2)
}

func TestHandlerPostPaymentDuplicate(t *testing.T) {
	router, repo := newTestRouter(t)

	first := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody("tx-1"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody("tx-1"))
	require.Equal(t, http.StatusOK, second.Code)
	require.Contains(t, second.Body.String(), `"duplicate":true`)
	require.Len(t, repo.entries, 2)
}

func TestHandlerPostPaymentRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/ledger/payments", `{"tenant_id":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := paymentBody("")
	body["direction"] = "SIDEWAYS"
	rec = doJSON(t, router, http.MethodPost, "/api/ledger/payments", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body = paymentBody("")
	body["method"] = "barter"
	rec = doJSON(t, router, http.MethodPost, "/api/ledger/payments", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerReverseFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	created := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody(""))
	require.Equal(t, http.StatusCreated, created.Code)
	var resp struct {
		EventID string `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	path := "/api/ledger/events/" + resp.EventID + "/reverse"
	rec := doJSON(t, router, http.MethodPost, path, map[string]any{"tenant_id": 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, path, map[string]any{"tenant_id": 1})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/ledger/events/not-a-uuid/reverse", map[string]any{"tenant_id": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/ledger/events/"+uuid.NewString()+"/reverse", map[string]any{"tenant_id": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerGetEvent(t *testing.T) {
	router, _ := newTestRouter(t)

	created := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody(""))
	require.Equal(t, http.StatusCreated, created.Code)
	var resp struct {
		EventID string `json:"event_id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/events/"+resp.EventID+"?tenant_id=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var event struct {
		ID     string `json:"id"`
		Kind   string `json:"kind"`
		Status string `json:"status"`
		Amount string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	require.Equal(t, resp.EventID, event.ID)
	require.Equal(t, "PAYMENT", event.Kind)
	require.Equal(t, "POSTED", event.Status)
	require.Equal(t, "1000", event.Amount)

	req = httptest.NewRequest(http.MethodGet, "/api/ledger/events/"+uuid.NewString()+"?tenant_id=1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ledger/events/"+resp.EventID+"?tenant_id=2", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListBalances(t *testing.T) {
	router, _ := newTestRouter(t)

	created := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody(""))
	require.Equal(t, http.StatusCreated, created.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/accounts?tenant_id=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	codes := make([]string, 0, len(views))
	for _, view := range views {
		codes = append(codes, view["code"].(string))
	}
	require.Contains(t, strings.Join(codes, ","), "1010")
	require.Contains(t, strings.Join(codes, ","), "1030")
}

func TestHandlerListBalancesRequiresTenant(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/accounts", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSummary(t *testing.T) {
	router, _ := newTestRouter(t)

	created := doJSON(t, router, http.MethodPost, "/api/ledger/payments", paymentBody(""))
	require.Equal(t, http.StatusCreated, created.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/summary?tenant_id=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalDebit  decimal.Decimal `json:"totalDebit"`
		TotalCredit decimal.Decimal `json:"totalCredit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.True(t, summary.TotalDebit.Equal(decimal.NewFromInt(1000)))
	require.True(t, summary.TotalCredit.Equal(decimal.NewFromInt(1000)))
}
