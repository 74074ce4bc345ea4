package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/mqtt"
)

type svcEnv struct {
	svc *InventoryService
	db  *gorm.DB
}

func newSvcEnv(t *testing.T, mux *http.ServeMux) *svcEnv {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	core := coreapi.New(&coreapi.Config{BaseURL: server.URL, Timeout: 5 * time.Second}, zap.NewNop())

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OperationLog{}))

	svc := NewInventoryService(core, redisClient, repository.NewOperationLogRepository(db))
	return &svcEnv{svc: svc, db: db}
}

func unitsMux(t *testing.T, units []coreapi.BatteryUnit) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/BatteryUnits", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			return
		}
		assert.Equal(t, "st-1", r.URL.Query().Get("stationId"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(units)
	})
	mux.HandleFunc("/api/BatteryUnits/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.StockSummary{StationID: "st-1", Total: len(units)})
	})
	return mux
}

func TestListMergesTelemetry(t *testing.T) {
	units := []coreapi.BatteryUnit{
		unit(func(u *coreapi.BatteryUnit) { u.Serial = "SN-001"; u.HealthPercent = 95; u.SlotNumber = 1 }),
		unit(func(u *coreapi.BatteryUnit) { u.Serial = "SN-002"; u.HealthPercent = 80; u.SlotNumber = 2 }),
	}
	env := newSvcEnv(t, unitsMux(t, units))
	ctx := context.Background()

	// a fresh cabinet reading for the first unit only
	require.NoError(t, env.svc.OnTelemetry(ctx, &mqtt.TelemetryPayload{
		StationID:     "st-1",
		Serial:        "SN-001",
		HealthPercent: 88.5,
		Voltage:       47.9,
		Temperature:   33.2,
		CycleCount:    140,
	}))

	got, err := env.svc.List(ctx, &ListRequest{StationID: "st-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 88.5, got[0].HealthPercent)
	assert.Equal(t, 140, got[0].CycleCount)
	// no reading for the second unit, platform values stand
	assert.Equal(t, 80.0, got[1].HealthPercent)
}

func TestSummaryReconciles(t *testing.T) {
	units := []coreapi.BatteryUnit{
		unit(nil),
		unit(func(u *coreapi.BatteryUnit) { u.Status = coreapi.BatteryStatusCharging }),
	}
	env := newSvcEnv(t, unitsMux(t, units))

	stats, err := env.svc.Summary(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.FullCount)
}

func TestSummaryRejectsPlatformCountMismatch(t *testing.T) {
	units := []coreapi.BatteryUnit{unit(nil), unit(nil)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/BatteryUnits", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(units)
	})
	// the platform counts three units but listed only two
	mux.HandleFunc("/api/BatteryUnits/summary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.StockSummary{StationID: "st-1", Total: 3})
	})
	env := newSvcEnv(t, mux)

	_, err := env.svc.Summary(context.Background(), "st-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDataInconsistent))
}

func TestAddStock(t *testing.T) {
	mux := http.NewServeMux()
	var gotBody map[string]interface{}
	mux.HandleFunc("/api/BatteryUnits", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.StockResult{QuantityAdded: 5, Total: 25})
	})
	env := newSvcEnv(t, mux)

	result, err := env.svc.AddStock(context.Background(), 42, &AddStockRequest{
		ModelID:      "bm-1",
		StationID:    "st-1",
		Status:       coreapi.BatteryStatusFull,
		Quantity:     5,
		SerialPrefix: "VF",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.QuantityAdded)
	assert.Equal(t, "VF", gotBody["serialPrefix"])

	// the mutation is audited locally
	var count int64
	require.NoError(t, env.db.Model(&models.OperationLog{}).Where("action = ?", models.ActionStockAdd).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAddStockValidation(t *testing.T) {
	env := newSvcEnv(t, http.NewServeMux())
	ctx := context.Background()

	_, err := env.svc.AddStock(ctx, 42, &AddStockRequest{ModelID: "bm-1", StationID: "st-1", Quantity: 0})
	assert.True(t, errors.Is(err, errors.ErrStockQuantityInvalid))

	_, err = env.svc.AddStock(ctx, 42, &AddStockRequest{ModelID: "bm-1", StationID: "st-1", Quantity: 5, Status: 99})
	assert.True(t, errors.Is(err, errors.ErrBatteryStatusInvalid))
}

func TestRemoveStockInsufficient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/BatteryUnits/remove-stock", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"only 2 units in status"}`))
	})
	env := newSvcEnv(t, mux)

	_, err := env.svc.RemoveStock(context.Background(), 42, &RemoveStockRequest{
		ModelID:   "bm-1",
		StationID: "st-1",
		Status:    coreapi.BatteryStatusEmpty,
		Quantity:  5,
		Reason:    "damaged",
	})
	assert.True(t, errors.Is(err, errors.ErrStockInsufficient))
}

func TestChangeStatus(t *testing.T) {
	mux := http.NewServeMux()
	var gotBody map[string]interface{}
	mux.HandleFunc("/api/BatteryUnits/status", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(coreapi.StockResult{QuantityChanged: 3})
	})
	env := newSvcEnv(t, mux)

	result, err := env.svc.ChangeStatus(context.Background(), 42, &ChangeStatusRequest{
		ModelID:    "bm-1",
		StationID:  "st-1",
		FromStatus: coreapi.BatteryStatusCharging,
		ToStatus:   coreapi.BatteryStatusFull,
		Quantity:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.QuantityChanged)
	assert.Equal(t, float64(coreapi.BatteryStatusCharging), gotBody["fromStatus"])
	assert.Equal(t, float64(coreapi.BatteryStatusFull), gotBody["toStatus"])
}

func TestChangeStatusRejectsUnknownBucket(t *testing.T) {
	env := newSvcEnv(t, http.NewServeMux())

	_, err := env.svc.ChangeStatus(context.Background(), 42, &ChangeStatusRequest{
		ModelID:    "bm-1",
		StationID:  "st-1",
		FromStatus: 99,
		ToStatus:   coreapi.BatteryStatusFull,
		Quantity:   1,
	})
	assert.True(t, errors.Is(err, errors.ErrBatteryStatusInvalid))
}

func TestChangeUnitStatusNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/BatteryUnits/bu-404/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	env := newSvcEnv(t, mux)

	err := env.svc.ChangeUnitStatus(context.Background(), "bu-404", coreapi.BatteryStatusCharging)
	assert.True(t, errors.Is(err, errors.ErrBatteryNotFound))
}
