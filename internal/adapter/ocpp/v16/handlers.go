package v16

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
	"github.com/gridwatt/csms-core/pkg/clock"
)

const heartbeatInterval = 300

// Handlers routes OCPP 1.6 actions to the registry and the session ledger.
// Malformed payload values are coerced with permissive defaults rather than
// rejected: field devices are not trusted to be well-formed, and availability
// wins over strict validation. The only business rejections are the
// idTagInfo.status=Invalid responses of StartTransaction and StopTransaction.
type Handlers struct {
	chargePoints ports.ChargePointService
	sessions     ports.SessionService
	clock        clock.Clock
	log          *zap.Logger
}

func NewHandlers(chargePoints ports.ChargePointService, sessions ports.SessionService, clk clock.Clock, log *zap.Logger) *Handlers {
	return &Handlers{
		chargePoints: chargePoints,
		sessions:     sessions,
		clock:        clk,
		log:          log,
	}
}

// HandleMessage routes an OCPP 1.6 action to the appropriate handler.
// Unknown actions are accepted with an empty response but logged; vendor
// extensions are common in the field.
func (h *Handlers) HandleMessage(ctx context.Context, chargePointID, action string, payload json.RawMessage) (interface{}, error) {
	resp, err := h.dispatch(ctx, chargePointID, action, payload)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	telemetry.OCPPMessagesTotal.WithLabelValues(action, outcome).Inc()
	return resp, err
}

func (h *Handlers) dispatch(ctx context.Context, chargePointID, action string, payload json.RawMessage) (interface{}, error) {
	switch action {
	case "BootNotification":
		return h.handleBootNotification(ctx, chargePointID, payload)
	case "Heartbeat":
		return h.handleHeartbeat(ctx, chargePointID)
	case "StatusNotification":
		return h.handleStatusNotification(ctx, chargePointID, payload)
	case "StartTransaction":
		return h.handleStartTransaction(ctx, chargePointID, payload)
	case "StopTransaction":
		return h.handleStopTransaction(ctx, chargePointID, payload)
	case "MeterValues":
		return h.handleMeterValues(ctx, chargePointID, payload)
	default:
		h.log.Warn("Unknown OCPP 1.6 action",
			zap.String("charge_point_id", chargePointID),
			zap.String("action", action),
		)
		return map[string]interface{}{}, nil
	}
}

// --- OCPP 1.6 Request/Response types ---

type bootNotificationReq struct {
	ChargePointVendor string `json:"chargePointVendor"`
	ChargePointModel  string `json:"chargePointModel"`
	ChargePointSerial string `json:"chargePointSerialNumber,omitempty"`
	FirmwareVersion   string `json:"firmwareVersion,omitempty"`
}

type bootNotificationResp struct {
	Status      string `json:"status"`
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
}

func (h *Handlers) handleBootNotification(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req bootNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		h.log.Warn("Malformed BootNotification payload, using defaults",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}

	h.log.Info("OCPP 1.6 BootNotification",
		zap.String("charge_point_id", chargePointID),
		zap.String("vendor", req.ChargePointVendor),
		zap.String("model", req.ChargePointModel),
	)

	// Boot is never rejected at this layer; pairing is a separate concern.
	_, err := h.chargePoints.RecordBoot(ctx, chargePointID, req.ChargePointVendor, req.ChargePointModel, req.FirmwareVersion)
	if err != nil {
		return nil, err
	}

	return bootNotificationResp{
		Status:      "Accepted",
		CurrentTime: h.clock.Now().UTC().Format(time.RFC3339),
		Interval:    heartbeatInterval,
	}, nil
}

func (h *Handlers) handleHeartbeat(ctx context.Context, chargePointID string) (interface{}, error) {
	h.log.Debug("OCPP 1.6 Heartbeat", zap.String("charge_point_id", chargePointID))

	if err := h.chargePoints.RecordHeartbeat(ctx, chargePointID); err != nil {
		return nil, err
	}
	return map[string]string{
		"currentTime": h.clock.Now().UTC().Format(time.RFC3339),
	}, nil
}

type statusNotificationReq struct {
	ConnectorId     int    `json:"connectorId"`
	ErrorCode       string `json:"errorCode"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp,omitempty"`
	VendorErrorCode string `json:"vendorErrorCode,omitempty"`
}

func (h *Handlers) handleStatusNotification(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req statusNotificationReq
	if err := json.Unmarshal(payload, &req); err != nil {
		h.log.Warn("Malformed StatusNotification payload, using defaults",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}
	if req.ConnectorId <= 0 {
		req.ConnectorId = 1
	}

	h.log.Info("OCPP 1.6 StatusNotification",
		zap.String("charge_point_id", chargePointID),
		zap.Int("connector_id", req.ConnectorId),
		zap.String("status", req.Status),
		zap.String("error_code", req.ErrorCode),
	)

	if err := h.chargePoints.ApplyProtocolStatus(ctx, chargePointID, req.ConnectorId, req.Status); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

type startTransactionReq struct {
	ConnectorId   int    `json:"connectorId"`
	IdTag         string `json:"idTag"`
	MeterStart    int64  `json:"meterStart"`
	Timestamp     string `json:"timestamp"`
	ReservationId *int   `json:"reservationId,omitempty"`
}

func (h *Handlers) handleStartTransaction(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req startTransactionReq
	if err := json.Unmarshal(payload, &req); err != nil {
		h.log.Warn("Malformed StartTransaction payload, using defaults",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}
	if req.ConnectorId <= 0 {
		req.ConnectorId = 1
	}

	h.log.Info("OCPP 1.6 StartTransaction",
		zap.String("charge_point_id", chargePointID),
		zap.Int("connector_id", req.ConnectorId),
		zap.String("id_tag", req.IdTag),
	)

	// Transaction events do not auto-create charge points.
	if _, err := h.chargePoints.GetByIdentifier(ctx, chargePointID); err != nil {
		return nil, err
	}

	result, err := h.sessions.ProtocolStart(ctx, chargePointID, req.ConnectorId, req.IdTag, req.MeterStart, nil)
	if err != nil {
		if err == domain.ErrInvalidIdTag {
			return invalidIdTagResp(), nil
		}
		return nil, err
	}

	return map[string]interface{}{
		"transactionId": result.TransactionID,
		"idTagInfo":     map[string]string{"status": "Accepted"},
	}, nil
}

type stopTransactionReq struct {
	TransactionId   int             `json:"transactionId"`
	MeterStop       int64           `json:"meterStop"`
	Timestamp       string          `json:"timestamp"`
	IdTag           string          `json:"idTag,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	TransactionData json.RawMessage `json:"transactionData,omitempty"`
}

func (h *Handlers) handleStopTransaction(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req stopTransactionReq
	if err := json.Unmarshal(payload, &req); err != nil {
		h.log.Warn("Malformed StopTransaction payload, using defaults",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}

	h.log.Info("OCPP 1.6 StopTransaction",
		zap.String("charge_point_id", chargePointID),
		zap.Int("transaction_id", req.TransactionId),
		zap.Int64("meter_stop", req.MeterStop),
	)

	if _, err := h.chargePoints.GetByIdentifier(ctx, chargePointID); err != nil {
		return nil, err
	}

	_, err := h.sessions.ProtocolStop(ctx, chargePointID, req.TransactionId, req.MeterStop, req.Reason)
	if err != nil {
		// Unknown or already-settled transaction: business rejection,
		// nothing mutated.
		if err == domain.ErrNotFound {
			return map[string]interface{}{
				"idTagInfo": map[string]string{"status": "Invalid"},
			}, nil
		}
		return nil, err
	}

	return map[string]interface{}{
		"idTagInfo": map[string]string{"status": "Accepted"},
	}, nil
}

type meterValuesReq struct {
	ConnectorId   int          `json:"connectorId"`
	TransactionId *int         `json:"transactionId,omitempty"`
	MeterValue    []meterValue `json:"meterValue"`
}

type meterValue struct {
	Timestamp    string         `json:"timestamp"`
	SampledValue []sampledValue `json:"sampledValue"`
}

type sampledValue struct {
	Value     string `json:"value"`
	Measurand string `json:"measurand,omitempty"`
	Unit      string `json:"unit,omitempty"`
	Context   string `json:"context,omitempty"`
}

func (h *Handlers) handleMeterValues(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error) {
	var req meterValuesReq
	if err := json.Unmarshal(payload, &req); err != nil {
		h.log.Warn("Malformed MeterValues payload, using defaults",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}
	if req.ConnectorId <= 0 {
		req.ConnectorId = 1
	}

	h.log.Debug("OCPP 1.6 MeterValues",
		zap.String("charge_point_id", chargePointID),
		zap.Int("connector_id", req.ConnectorId),
	)

	reading := latestEnergyReading(req.MeterValue)

	var raw interface{}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &raw)
	}

	if err := h.sessions.RecordMeterValues(ctx, chargePointID, req.ConnectorId, reading, raw); err != nil {
		return nil, err
	}
	return map[string]interface{}{}, nil
}

// latestEnergyReading scans the most recent sample set for the first
// Energy.Active.Import.Register measurand. Other measurands are ignored.
func latestEnergyReading(values []meterValue) *int64 {
	if len(values) == 0 {
		return nil
	}
	latest := values[len(values)-1]
	for _, sample := range latest.SampledValue {
		if sample.Measurand != "Energy.Active.Import.Register" {
			continue
		}
		if v, err := parseMeterReading(sample.Value); err == nil {
			return &v
		}
		return nil
	}
	return nil
}

func parseMeterReading(raw string) (int64, error) {
	var n json.Number = json.Number(raw)
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func invalidIdTagResp() map[string]interface{} {
	return map[string]interface{}{
		"transactionId": 0,
		"idTagInfo":     map[string]string{"status": "Invalid"},
	}
}
