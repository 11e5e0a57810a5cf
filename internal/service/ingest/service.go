package ingest

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
	"github.com/gridwatt/csms-core/internal/observability/telemetry"
	"github.com/gridwatt/csms-core/internal/ports"
)

// ocppTailPattern matches the trailing payload of an OCPP call frame embedded
// in a free-form log line, e.g. `... StatusNotification,{"connectorId":2,...}]`.
var ocppTailPattern = regexp.MustCompile(`,(\{.*\})\]`)

// Service reconstructs charge-point state from raw log deliveries. Lines
// that fail structured decode go through a weaker regex extractor instead of
// being discarded; lines that still yield nothing are skipped, never fatal.
type Service struct {
	cps ports.ChargePointService
	log *zap.Logger
}

func NewService(cps ports.ChargePointService, log *zap.Logger) ports.LogIngestService {
	return &Service{cps: cps, log: log}
}

// aggregate collects everything a batch tells us about one charge point so
// the registry sees a single upsert per charge point per batch.
type aggregate struct {
	maxConnector int
	status       *domain.ChargePointStatus
	heartbeat    bool
}

// Ingest processes log batches and returns the number of charge points
// touched. Identifiers keep their value minus a trailing ".log" suffix.
func (s *Service) Ingest(ctx context.Context, batches []ports.LogBatch) (int, error) {
	byIdentifier := make(map[string]*aggregate)
	order := make([]string, 0, len(batches))

	for _, batch := range batches {
		identifier := normalizeIdentifier(batch.ChargePointID)
		if identifier == "" {
			continue
		}

		agg, ok := byIdentifier[identifier]
		if !ok {
			agg = &aggregate{}
			byIdentifier[identifier] = agg
			order = append(order, identifier)
		}
		for _, line := range batch.Lines {
			s.applyLine(agg, line)
		}
	}

	touched := 0
	for _, identifier := range order {
		agg := byIdentifier[identifier]
		err := s.cps.UpsertFromLogs(ctx, identifier, agg.maxConnector, agg.status, agg.heartbeat)
		if err != nil {
			s.log.Error("Failed to upsert charge point from logs",
				zap.String("identifier", identifier),
				zap.Error(err),
			)
			return touched, err
		}
		touched++
	}
	return touched, nil
}

// applyLine folds one log line into the aggregate. Later lines win for
// status; connector ids only ever raise the maximum.
func (s *Service) applyLine(agg *aggregate, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		telemetry.LogLinesIngestedTotal.WithLabelValues("skipped").Inc()
		return
	}

	if evt, ok := decodeStructured(line); ok {
		s.applyEvent(agg, evt.event, evt.fields)
		telemetry.LogLinesIngestedTotal.WithLabelValues("structured").Inc()
		return
	}

	if fields, action, ok := extractOCPPTail(line); ok {
		s.applyEvent(agg, action, fields)
		telemetry.LogLinesIngestedTotal.WithLabelValues("fallback").Inc()
		return
	}

	if isHeartbeatMarker(line) {
		agg.heartbeat = true
		telemetry.LogLinesIngestedTotal.WithLabelValues("fallback").Inc()
		return
	}

	telemetry.LogLinesIngestedTotal.WithLabelValues("skipped").Inc()
}

func (s *Service) applyEvent(agg *aggregate, event string, fields map[string]interface{}) {
	if connector, ok := intField(fields, "connectorId"); ok && connector > agg.maxConnector {
		agg.maxConnector = connector
	}

	switch {
	case strings.EqualFold(event, "StatusNotification"):
		if raw, ok := stringField(fields, "status"); ok {
			mapped := domain.MapOCPPStatus(raw)
			agg.status = &mapped
		}
	case strings.EqualFold(event, "Heartbeat"), strings.EqualFold(event, "BootNotification"):
		agg.heartbeat = true
	default:
		// Unknown events still contribute their connectorId, nothing else.
	}
}

type structuredLine struct {
	event  string
	fields map[string]interface{}
}

// decodeStructured parses the structured log shape the bridge emits:
// a JSON object with optional "type", "event" and "fields" keys.
func decodeStructured(line string) (structuredLine, bool) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return structuredLine{}, false
	}

	out := structuredLine{fields: map[string]interface{}{}}
	if event, ok := raw["event"].(string); ok {
		out.event = event
	} else if typ, ok := raw["type"].(string); ok {
		out.event = typ
	}
	if fields, ok := raw["fields"].(map[string]interface{}); ok {
		out.fields = fields
	} else {
		out.fields = raw
	}
	return out, true
}

// extractOCPPTail recovers the payload object from an OCPP call frame pasted
// into a plain-text line. The action name is whatever known action appears in
// the line; only StatusNotification carries state we can use.
func extractOCPPTail(line string) (map[string]interface{}, string, bool) {
	match := ocppTailPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, "", false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(match[1]), &fields); err != nil {
		return nil, "", false
	}

	action := ""
	if strings.Contains(line, "StatusNotification") {
		action = "StatusNotification"
	} else if strings.Contains(line, "Heartbeat") {
		action = "Heartbeat"
	}
	return fields, action, true
}

func isHeartbeatMarker(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "heartbeat") || strings.Contains(lower, "connected")
}

func normalizeIdentifier(raw string) string {
	identifier := strings.TrimSpace(raw)
	if strings.HasSuffix(strings.ToLower(identifier), ".log") {
		identifier = identifier[:len(identifier)-4]
	}
	return identifier
}

func intField(fields map[string]interface{}, key string) (int, bool) {
	switch v := fields[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func stringField(fields map[string]interface{}, key string) (string, bool) {
	v, ok := fields[key].(string)
	return v, ok
}
