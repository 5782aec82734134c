package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/icledger/internal/application/finance"
	"github.com/erp/icledger/internal/infrastructure/persistence"
	"github.com/erp/icledger/internal/infrastructure/persistence/models"
	"github.com/erp/icledger/internal/infrastructure/scheduler"
	"github.com/erp/icledger/internal/infrastructure/telemetry"
	"github.com/erp/icledger/internal/interfaces/http/dto"
	"github.com/erp/icledger/internal/interfaces/http/handler"
	"github.com/erp/icledger/internal/interfaces/http/middleware"
	"github.com/erp/icledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// apiFixture serves the full ledger API over an in-memory database
type apiFixture struct {
	t       *testing.T
	engine  *gin.Engine
	groupID uuid.UUID
	queue   *fakeQueue
	holdco  uuid.UUID
	retail  uuid.UUID
	online  uuid.UUID
}

func newAPIFixture(t *testing.T, withQueue bool) *apiFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	metrics, err := telemetry.NewFinanceMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	ledger := finance.NewEngine(finance.Deps{
		Repos:   persistence.NewRepositories(db),
		Scope:   persistence.NewGormTransactionScope(db),
		Metrics: metrics,
		Clock:   func() time.Time { return fixedNow },
	})

	f := &apiFixture{t: t, groupID: uuid.New()}
	var queue handler.TaskQueue
	if withQueue {
		f.queue = &fakeQueue{}
		queue = f.queue
	}

	f.engine = router.NewEngine(router.EngineConfig{
		Group:    middleware.DefaultGroupConfig(),
		Security: middleware.DefaultSecurityConfig(),
	})
	router.NewRouter(f.engine).Register(router.FinanceRoutes(ledger, queue)...).Setup()
	return f
}

// do sends a request as the fixture's group and returns the recorder
func (f *apiFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.GroupHeaderKey, f.groupID.String())
	req.Header.Set(middleware.ActorHeaderKey, "controller@holdco")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// decode unmarshals the response envelope
func decode[T any](t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse[T] {
	t.Helper()
	var resp handler.APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// mustDo sends a request and requires the given status
func mustDo[T any](f *apiFixture, status int, method, path string, body any) T {
	f.t.Helper()
	w := f.do(method, path, body)
	require.Equal(f.t, status, w.Code, w.Body.String())
	return decode[T](f.t, w).Data
}

// withGroup registers a holdco, a retailer and an online shop
func (f *apiFixture) withGroup() *apiFixture {
	f.t.Helper()
	register := func(name, role string) uuid.UUID {
		sub := mustDo[dto.SubsidiaryResponse](f, http.StatusCreated, http.MethodPost, "/api/v1/subsidiaries",
			gin.H{"name": name, "role": role})
		return sub.ID
	}
	f.holdco = register("Holdco", "HOLDCO")
	f.retail = register("Retail", "RETAIL")
	f.online = register("Online", "DIGITAL_COMMERCE")
	return f
}

// withAgreements sets up a 10% management fee with VAT 7% and WHT 3% and a
// 500 monthly IP licence for both recipients
func (f *apiFixture) withAgreements() *apiFixture {
	f.t.Helper()
	for _, recipient := range []uuid.UUID{f.retail, f.online} {
		mustDo[dto.AgreementResponse](f, http.StatusCreated, http.MethodPost, "/api/v1/agreements", gin.H{
			"provider_id":    f.holdco,
			"recipient_id":   recipient,
			"type":           "MANAGEMENT",
			"pricing":        gin.H{"model": "COST_PLUS", "rate": "0.10"},
			"vat":            gin.H{"applies": true, "rate": "0.07"},
			"wht":            gin.H{"applies": true, "rate": "0.03", "tax_type": "SERVICES"},
			"effective_from": "2025-03-01",
		})
		mustDo[dto.AgreementResponse](f, http.StatusCreated, http.MethodPost, "/api/v1/agreements", gin.H{
			"provider_id":    f.holdco,
			"recipient_id":   recipient,
			"type":           "IP_LICENSE",
			"pricing":        gin.H{"model": "FIXED_MONTHLY", "fee": "500"},
			"effective_from": "2025-03-01",
		})
	}
	return f
}

func (f *apiFixture) poolBody() gin.H {
	return gin.H{
		"holdco_id": f.holdco,
		"period":    "2025-03",
		"lines": []gin.H{
			{"category": "salaries", "amount": "2000"},
			{"category": "office", "amount": "1000"},
		},
		"weights": []gin.H{
			{"recipient_id": f.retail, "weight": "0.6"},
			{"recipient_id": f.online, "weight": "0.4"},
		},
	}
}

// fakeQueue records enqueued tasks
type fakeQueue struct {
	closes  []scheduler.MonthClosePayload
	reposts []scheduler.RepostPeriodPayload
	err     error
}

func (q *fakeQueue) EnqueueMonthClose(_ context.Context, p scheduler.MonthClosePayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.closes = append(q.closes, p)
	return &asynq.TaskInfo{ID: scheduler.MonthCloseTaskID(p.GroupID, p.HoldcoID, p.Period), Queue: "default", Type: scheduler.TaskMonthClose}, nil
}

func (q *fakeQueue) EnqueueRepostPeriod(_ context.Context, p scheduler.RepostPeriodPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.reposts = append(q.reposts, p)
	return &asynq.TaskInfo{ID: uuid.NewString(), Queue: "default", Type: scheduler.TaskRepostPeriod}, nil
}
