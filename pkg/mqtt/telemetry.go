package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// Topics published by station cabinets.
const (
	TopicBatteryTelemetry = "station/+/battery/+/telemetry"
	TopicCabinetHeartbeat = "station/+/heartbeat"
)

// TelemetryPayload is a battery telemetry report. Values feed the inventory
// classification view; they are display data, not authoritative state.
type TelemetryPayload struct {
	StationID     string  `json:"station_id"`
	Serial        string  `json:"serial"`
	HealthPercent float64 `json:"health_percent"`
	Voltage       float64 `json:"voltage"`
	Temperature   float64 `json:"temperature"`
	CycleCount    int     `json:"cycle_count"`
	Timestamp     int64   `json:"timestamp"`
}

// HeartbeatPayload is a cabinet heartbeat report.
type HeartbeatPayload struct {
	StationID       string `json:"station_id"`
	OnlineSlots     int    `json:"online_slots"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	Timestamp       int64  `json:"timestamp"`
}

// TelemetryHandler consumes cabinet reports.
type TelemetryHandler interface {
	OnTelemetry(ctx context.Context, payload *TelemetryPayload) error
	OnHeartbeat(ctx context.Context, payload *HeartbeatPayload) error
}

// TelemetryIngest subscribes to cabinet topics and feeds a TelemetryHandler.
type TelemetryIngest struct {
	client  *Client
	handler TelemetryHandler
}

// NewTelemetryIngest creates a telemetry ingest.
func NewTelemetryIngest(client *Client, handler TelemetryHandler) *TelemetryIngest {
	return &TelemetryIngest{
		client:  client,
		handler: handler,
	}
}

// Start subscribes to the cabinet topics.
func (t *TelemetryIngest) Start(ctx context.Context) error {
	return t.client.SubscribeMultiple(map[string]MessageHandler{
		TopicBatteryTelemetry: func(topic string, payload []byte) {
			t.handleTelemetry(ctx, topic, payload)
		},
		TopicCabinetHeartbeat: func(topic string, payload []byte) {
			t.handleHeartbeat(ctx, topic, payload)
		},
	})
}

func (t *TelemetryIngest) handleTelemetry(ctx context.Context, topic string, payload []byte) {
	var msg TelemetryPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[MQTT] Invalid telemetry payload on %s: %v", topic, err)
		return
	}
	if msg.StationID == "" || msg.Serial == "" {
		// fall back to topic segments: station/{id}/battery/{serial}/telemetry
		parts := strings.Split(topic, "/")
		if len(parts) == 5 {
			if msg.StationID == "" {
				msg.StationID = parts[1]
			}
			if msg.Serial == "" {
				msg.Serial = parts[3]
			}
		}
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	if err := t.handler.OnTelemetry(ctx, &msg); err != nil {
		log.Printf("[MQTT] Telemetry handler error for %s: %v", msg.Serial, err)
	}
}

func (t *TelemetryIngest) handleHeartbeat(ctx context.Context, topic string, payload []byte) {
	var msg HeartbeatPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[MQTT] Invalid heartbeat payload on %s: %v", topic, err)
		return
	}
	if msg.StationID == "" {
		parts := strings.Split(topic, "/")
		if len(parts) == 3 {
			msg.StationID = parts[1]
		}
	}

	if err := t.handler.OnHeartbeat(ctx, &msg); err != nil {
		log.Printf("[MQTT] Heartbeat handler error for %s: %v", msg.StationID, err)
	}
}

// TelemetryTopic builds the concrete topic for one battery.
func TelemetryTopic(stationID, serial string) string {
	return fmt.Sprintf("station/%s/battery/%s/telemetry", stationID, serial)
}
