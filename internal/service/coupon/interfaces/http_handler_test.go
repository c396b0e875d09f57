package interfaces

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"coupon-core/internal/pkg/database/dbtest"
	"coupon-core/internal/pkg/lock"
	"coupon-core/internal/pkg/redis"
	"coupon-core/internal/service/coupon/application"
	"coupon-core/internal/service/coupon/domain"
	"coupon-core/internal/service/coupon/infrastructure"
	"coupon-core/internal/service/coupon/infrastructure/adapter"
	"coupon-core/internal/service/coupon/infrastructure/rule"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	repo := infrastructure.NewGormRepository(dbtest.Open(t, infrastructure.Models()...))
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ledger, err := adapter.NewLedgerRedisAdapter(redis.Wrap(rdb))
	require.NoError(t, err)
	rules, err := rule.NewCELRuleEngine()
	require.NoError(t, err)
	guard, err := lock.NewGuard(lock.NewRegistry(map[lock.Strategy]lock.Executor{lock.StrategySpin: lock.NewSpinExecutor(rdb)}),
		lock.Policy{Strategy: lock.StrategySpin, WaitTime: time.Second}, nil)
	require.NoError(t, err)

	svc := application.NewCouponService(repo, repo, ledger, rules, guard, noop.NewTracerProvider().Tracer("test"))
	mux := http.NewServeMux()
	NewCouponHandler(svc).RegisterRoutes(mux)
	return mux
}

func post(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestCouponHandler_IssueFlow(t *testing.T) {
	mux := newTestMux(t)
	expires := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	rec := post(mux, "/coupons", fmt.Sprintf(`{"name":"vip","total_quantity":1,"expires_at":%q,"discount_type":"PERCENTAGE","discount_value":10}`, expires))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1}`, rec.Body.String())

	rec = post(mux, "/coupons/issue", `{"user_id":7,"coupon_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"AVAILABLE"`)

	assert.Equal(t, http.StatusConflict, post(mux, "/coupons/issue", `{"user_id":7,"coupon_id":1}`).Code)
	assert.Equal(t, http.StatusGone, post(mux, "/coupons/issue", `{"user_id":8,"coupon_id":1}`).Code)
	assert.Equal(t, http.StatusNotFound, post(mux, "/coupons/issue", `{"user_id":8,"coupon_id":2}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(mux, "/coupons/issue", `{"user_id":`).Code)

	rec = post(mux, "/coupons/quote", `{"user_id":7,"coupon_id":1,"order_amount":999}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"discount_amount":99,"final_amount":900}`, rec.Body.String())
}

func TestCouponHandler_RejectsGet(t *testing.T) {
	mux := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coupons/issue", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusLocked, statusFor(fmt.Errorf("use: %w", lock.ErrLockAcquisitionFailed)))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.ErrCouponNotUsable))
	assert.Equal(t, http.StatusGone, statusFor(domain.ErrCouponExpired))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
