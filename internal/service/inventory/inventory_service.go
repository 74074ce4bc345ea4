package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tdnguyen-dev/evswap-station/internal/common/errors"
	"github.com/tdnguyen-dev/evswap-station/internal/common/logger"
	"github.com/tdnguyen-dev/evswap-station/internal/common/metrics"
	"github.com/tdnguyen-dev/evswap-station/internal/models"
	"github.com/tdnguyen-dev/evswap-station/internal/repository"
	"github.com/tdnguyen-dev/evswap-station/pkg/coreapi"
	"github.com/tdnguyen-dev/evswap-station/pkg/mqtt"
)

const telemetryTTL = 10 * time.Minute

// InventoryService lists and mutates battery stock on the core platform and
// overlays cabinet telemetry received over MQTT.
type InventoryService struct {
	core      *coreapi.Client
	redis     *redis.Client
	opLogRepo *repository.OperationLogRepository
}

// NewInventoryService creates an inventory service.
func NewInventoryService(core *coreapi.Client, redisClient *redis.Client, opLogRepo *repository.OperationLogRepository) *InventoryService {
	return &InventoryService{
		core:      core,
		redis:     redisClient,
		opLogRepo: opLogRepo,
	}
}

// ListRequest filters the inventory view.
type ListRequest struct {
	StationID string `form:"station_id" binding:"required"`
	ModelID   string `form:"model_id"`
	Filter    string `form:"filter"` // all, a category name or axis:name, e.g. condition:critical
	Sort      string `form:"sort"`
}

// List returns the station inventory with the latest telemetry merged in.
func (s *InventoryService) List(ctx context.Context, req *ListRequest) ([]coreapi.BatteryUnit, error) {
	units, err := s.fetchUnits(ctx, req.StationID, req.ModelID)
	if err != nil {
		return nil, err
	}
	s.mergeTelemetry(ctx, req.StationID, units)
	return FilterAndSort(units, req.Filter, req.Sort), nil
}

// Summary returns classification counts for a station and reconciles them
// against the platform's own unit count.
func (s *InventoryService) Summary(ctx context.Context, stationID string) (*Stats, error) {
	units, err := s.fetchUnits(ctx, stationID, "")
	if err != nil {
		return nil, err
	}
	s.mergeTelemetry(ctx, stationID, units)

	upstream, err := s.fetchStockSummary(ctx, stationID)
	if err != nil {
		return nil, err
	}

	stats := Summarize(units)
	if err := reconcile(stats, upstream.Total); err != nil {
		logger.Error("inventory summary inconsistent",
			logger.StationID(stationID),
			logger.Int("platform_total", upstream.Total),
			logger.Int("listed", stats.Total),
			logger.Err(err),
		)
		return nil, err
	}

	if m := metrics.Get(); m != nil {
		m.SetBatteriesAvailable(stationID, stats.FullCount)
	}
	return stats, nil
}

// reconcile checks the per-status sums of the listed units against the
// platform's own count. The two come from separate endpoints; a mismatch
// means the list is partial or stale and the summary must not be presented
// as truth.
func reconcile(stats *Stats, platformTotal int) error {
	var sum int
	for _, count := range stats.ByStatus {
		sum += count
	}
	if sum != platformTotal {
		return errors.ErrDataInconsistent.WithMessage(
			fmt.Sprintf("platform reports %d units but status counts sum to %d", platformTotal, sum))
	}
	return nil
}

// AddStockRequest is the add-stock payload.
type AddStockRequest struct {
	ModelID      string `json:"model_id" binding:"required"`
	StationID    string `json:"station_id" binding:"required"`
	Status       int    `json:"status"`
	Quantity     int    `json:"quantity" binding:"required"`
	SerialPrefix string `json:"serial_prefix"`
}

// AddStock registers new units. Serials are generated by the platform as
// PREFIX-001, PREFIX-002 and so on when a prefix is given.
func (s *InventoryService) AddStock(ctx context.Context, staffID int64, req *AddStockRequest) (*coreapi.StockResult, error) {
	if req.Quantity <= 0 {
		return nil, errors.ErrStockQuantityInvalid
	}
	if _, ok := StatusNames[req.Status]; !ok {
		return nil, errors.ErrBatteryStatusInvalid
	}

	body := map[string]interface{}{
		"modelId":   req.ModelID,
		"stationId": req.StationID,
		"status":    req.Status,
		"quantity":  req.Quantity,
	}
	if req.SerialPrefix != "" {
		body["serialPrefix"] = req.SerialPrefix
	}

	var result coreapi.StockResult
	if err := s.core.Post(ctx, "/api/BatteryUnits", body, &result); err != nil {
		return nil, err
	}

	s.audit(ctx, staffID, req.StationID, models.ActionStockAdd,
		fmt.Sprintf("model=%s status=%d quantity=%d", req.ModelID, req.Status, result.QuantityAdded))
	return &result, nil
}

// RemoveStockRequest is the remove-stock payload.
type RemoveStockRequest struct {
	ModelID   string `json:"model_id" binding:"required"`
	StationID string `json:"station_id" binding:"required"`
	Status    int    `json:"status"`
	Quantity  int    `json:"quantity" binding:"required"`
	Reason    string `json:"reason"`
}

// RemoveStock retires units. The platform keeps the records and marks them
// retired; counts drop but history stays intact.
func (s *InventoryService) RemoveStock(ctx context.Context, staffID int64, req *RemoveStockRequest) (*coreapi.StockResult, error) {
	if req.Quantity <= 0 {
		return nil, errors.ErrStockQuantityInvalid
	}

	body := map[string]interface{}{
		"modelId":   req.ModelID,
		"stationId": req.StationID,
		"status":    req.Status,
		"quantity":  req.Quantity,
	}
	if req.Reason != "" {
		body["reason"] = req.Reason
	}

	var result coreapi.StockResult
	if err := s.core.Post(ctx, "/api/BatteryUnits/remove-stock", body, &result); err != nil {
		if errors.Is(err, errors.ErrCoreValidation) {
			return nil, errors.ErrStockInsufficient
		}
		return nil, err
	}

	s.audit(ctx, staffID, req.StationID, models.ActionStockRemove,
		fmt.Sprintf("model=%s status=%d quantity=%d reason=%s", req.ModelID, req.Status, result.QuantityRemoved, req.Reason))
	return &result, nil
}

// ChangeStatusRequest is the bulk status move payload.
type ChangeStatusRequest struct {
	ModelID    string `json:"model_id" binding:"required"`
	StationID  string `json:"station_id" binding:"required"`
	FromStatus int    `json:"from_status"`
	ToStatus   int    `json:"to_status"`
	Quantity   int    `json:"quantity" binding:"required"`
}

// ChangeStatus moves units between status buckets, for example Charging to
// Full when a charge cycle completes.
func (s *InventoryService) ChangeStatus(ctx context.Context, staffID int64, req *ChangeStatusRequest) (*coreapi.StockResult, error) {
	if req.Quantity <= 0 {
		return nil, errors.ErrStockQuantityInvalid
	}
	if _, ok := StatusNames[req.FromStatus]; !ok {
		return nil, errors.ErrBatteryStatusInvalid
	}
	if _, ok := StatusNames[req.ToStatus]; !ok {
		return nil, errors.ErrBatteryStatusInvalid
	}

	body := map[string]interface{}{
		"modelId":    req.ModelID,
		"stationId":  req.StationID,
		"fromStatus": req.FromStatus,
		"toStatus":   req.ToStatus,
		"quantity":   req.Quantity,
	}

	var result coreapi.StockResult
	if err := s.core.Patch(ctx, "/api/BatteryUnits/status", body, &result); err != nil {
		if errors.Is(err, errors.ErrCoreValidation) {
			return nil, errors.ErrStockInsufficient
		}
		return nil, err
	}

	s.audit(ctx, staffID, req.StationID, models.ActionBatteryUpdate,
		fmt.Sprintf("model=%s %d->%d quantity=%d", req.ModelID, req.FromStatus, req.ToStatus, result.QuantityChanged))
	return &result, nil
}

// ChangeUnitStatus moves a single unit, used by the swap engine to shift the
// issued and returned batteries between buckets.
func (s *InventoryService) ChangeUnitStatus(ctx context.Context, unitID string, toStatus int) error {
	if _, ok := StatusNames[toStatus]; !ok {
		return errors.ErrBatteryStatusInvalid
	}
	body := map[string]int{"status": toStatus}
	err := s.core.Patch(ctx, "/api/BatteryUnits/"+url.PathEscape(unitID)+"/status", body, nil)
	if err != nil && errors.Is(err, errors.ErrCoreNotFound) {
		return errors.ErrBatteryNotFound
	}
	return err
}

func (s *InventoryService) fetchUnits(ctx context.Context, stationID, modelID string) ([]coreapi.BatteryUnit, error) {
	query := url.Values{}
	query.Set("stationId", stationID)
	if modelID != "" {
		query.Set("modelId", modelID)
	}

	var units []coreapi.BatteryUnit
	if err := s.core.Get(ctx, "/api/BatteryUnits", query, &units); err != nil {
		return nil, err
	}
	return units, nil
}

func (s *InventoryService) fetchStockSummary(ctx context.Context, stationID string) (*coreapi.StockSummary, error) {
	query := url.Values{}
	query.Set("stationId", stationID)

	var summary coreapi.StockSummary
	if err := s.core.Get(ctx, "/api/BatteryUnits/summary", query, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// mergeTelemetry overlays the latest cabinet readings on the unit list.
// Telemetry is display data; missing readings leave the platform values as
// they are.
func (s *InventoryService) mergeTelemetry(ctx context.Context, stationID string, units []coreapi.BatteryUnit) {
	for i := range units {
		key := telemetryKey(stationID, units[i].Serial)
		data, err := s.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var reading mqtt.TelemetryPayload
		if err := json.Unmarshal(data, &reading); err != nil {
			continue
		}
		units[i].HealthPercent = reading.HealthPercent
		units[i].Voltage = reading.Voltage
		units[i].Temperature = reading.Temperature
		units[i].CycleCount = reading.CycleCount
	}
}

// OnTelemetry implements mqtt.TelemetryHandler.
func (s *InventoryService) OnTelemetry(ctx context.Context, payload *mqtt.TelemetryPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if m := metrics.Get(); m != nil {
		m.RecordMQTTMessage("telemetry", "in")
	}
	return s.redis.Set(ctx, telemetryKey(payload.StationID, payload.Serial), data, telemetryTTL).Err()
}

// OnHeartbeat implements mqtt.TelemetryHandler.
func (s *InventoryService) OnHeartbeat(ctx context.Context, payload *mqtt.HeartbeatPayload) error {
	if m := metrics.Get(); m != nil {
		m.RecordMQTTMessage("heartbeat", "in")
	}
	logger.Debug("cabinet heartbeat",
		logger.StationID(payload.StationID),
		logger.Int("online_slots", payload.OnlineSlots),
	)
	return nil
}

func (s *InventoryService) audit(ctx context.Context, staffID int64, stationID, action, detail string) {
	entry := &models.OperationLog{
		UserID:    staffID,
		Role:      "staff",
		StationID: &stationID,
		Action:    action,
		Detail:    detail,
	}
	if err := s.opLogRepo.Create(ctx, entry); err != nil {
		logger.Warn("failed to write operation log", logger.String("action", action), logger.Err(err))
	}
}

func telemetryKey(stationID, serial string) string {
	return fmt.Sprintf("telemetry:%s:%s", stationID, serial)
}
