package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/allowance/internal/apperr"
	"github.com/dukerupert/allowance/internal/auth"
	"github.com/dukerupert/allowance/internal/budget"
	"github.com/dukerupert/allowance/internal/ledger"
	"github.com/dukerupert/allowance/internal/model"
	"github.com/dukerupert/allowance/internal/testutil"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantMsg  string
	}{
		{apperr.ErrNotFound, http.StatusNotFound, "not found"},
		{apperr.Invalid("amount", "must be positive"), http.StatusBadRequest, "amount: must be positive"},
		{fmt.Errorf("%w: email is already registered", apperr.ErrConflict), http.StatusConflict, "conflict: email is already registered"},
		{errors.New("disk I/O error"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, testutil.Logger(), tt.err)

		assert.Equal(t, tt.wantCode, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.wantMsg, body["error"])
	}
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
	var v map[string]any
	err := decode(req, &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=25&offset=-1&bad=x", nil)

	n, err := queryInt(req, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = queryInt(req, "missing", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	_, err = queryInt(req, "offset", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = queryInt(req, "bad", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

// withAuth mounts h on a chi router so URL params resolve, with ac as the
// caller.
func withAuth(ac auth.AuthContext, pattern, method string, h http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	})
	r.Method(method, pattern, h)
	return r
}

func TestTransactionHandlerCreate(t *testing.T) {
	db := testutil.DB(t)
	f := testutil.SeedFamily(t, db)
	h := NewTransactionHandler(ledger.NewService(db, &testutil.Notifier{}, testutil.Logger()), testutil.Logger())
	router := withAuth(f.ParentAuth, "/transactions", "POST", h.Create)

	body := fmt.Sprintf(`{"child_id":%q,"amount":"4.50","type":"Credit","category":"Gift"}`, f.Child.ID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/transactions", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var txn model.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txn))
	assert.True(t, txn.BalanceAfter.Equal(decimal.RequireFromString("4.5")))

	body = fmt.Sprintf(`{"child_id":%q,"amount":"1","type":"Credit","category":"Toys"}`, f.Child.ID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/transactions", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "debit category on a credit")
}

func TestTransactionHandlerListOtherFamily(t *testing.T) {
	db := testutil.DB(t)
	f := testutil.SeedFamily(t, db)
	other := testutil.SeedFamily(t, db)
	h := NewTransactionHandler(ledger.NewService(db, &testutil.Notifier{}, testutil.Logger()), testutil.Logger())
	router := withAuth(other.ParentAuth, "/children/{id}/transactions", "GET", h.ListByChild)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/children/"+f.Child.ID.String()+"/transactions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionHandlerListEmpty(t *testing.T) {
	db := testutil.DB(t)
	f := testutil.SeedFamily(t, db)
	h := NewTransactionHandler(ledger.NewService(db, &testutil.Notifier{}, testutil.Logger()), testutil.Logger())
	router := withAuth(f.ChildAuth, "/children/{id}/transactions", "GET", h.ListByChild)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/children/"+f.Child.ID.String()+"/transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBudgetHandlerSetAndStatus(t *testing.T) {
	db := testutil.DB(t)
	f := testutil.SeedFamily(t, db)
	h := NewBudgetHandler(budget.NewService(db, testutil.Logger()), testutil.Logger())

	set := withAuth(f.ParentAuth, "/children/{id}/budgets", "PUT", h.Set)
	rec := httptest.NewRecorder()
	set.ServeHTTP(rec, httptest.NewRequest("PUT", "/children/"+f.Child.ID.String()+"/budgets",
		strings.NewReader(`{"category":"Candy","limit_amount":"5","period":"Weekly","enforce":true}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var b model.Budget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, model.Category("Candy"), b.Category)
	assert.True(t, b.Enforce)

	status := withAuth(f.ChildAuth, "/children/{id}/budgets/status", "GET", h.Status)
	rec = httptest.NewRecorder()
	status.ServeHTTP(rec, httptest.NewRequest("GET", "/children/"+f.Child.ID.String()+"/budgets/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st []model.BudgetStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Len(t, st, 1)
	assert.True(t, st[0].Remaining.Equal(decimal.NewFromInt(5)))

	del := withAuth(f.ParentAuth, "/budgets/{id}", "DELETE", h.Delete)
	rec = httptest.NewRecorder()
	del.ServeHTTP(rec, httptest.NewRequest("DELETE", "/budgets/"+b.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	del.ServeHTTP(rec, httptest.NewRequest("DELETE", "/budgets/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthContextMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil).WithContext(context.Background())
	assert.Equal(t, auth.AuthContext{}, authContext(req))
}
