package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	callMessage       = 2
	callResultMessage = 3
	callErrorMessage  = 4
)

// SimulatorConfig holds the simulated charge point identity.
type SimulatorConfig struct {
	ServerURL       string
	ChargePointID   string
	Vendor          string
	Model           string
	FirmwareVersion string
	IdTag           string
	ConnectorCount  int
}

// Simulator emulates an OCPP 1.6 charge point over OCPP-J.
type Simulator struct {
	config *SimulatorConfig
	log    *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	pending   map[string]chan json.RawMessage
	pendingMu sync.Mutex

	transactionID   int
	activeConnector int
	meterWh         int64
	stateMu         sync.Mutex

	done chan struct{}
}

func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	return &Simulator{
		config:  config,
		log:     log,
		pending: make(map[string]chan json.RawMessage),
		done:    make(chan struct{}),
	}
}

// Connect dials the server, sends a BootNotification and starts the
// heartbeat loop at the interval the server returns.
func (s *Simulator) Connect() error {
	url := strings.TrimRight(s.config.ServerURL, "/") + "/" + s.config.ChargePointID
	s.log.Info("Connecting to OCPP server", zap.String("url", url))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	s.conn = conn

	go s.readLoop()

	resp, err := s.sendCall("BootNotification", map[string]interface{}{
		"chargePointVendor": s.config.Vendor,
		"chargePointModel":  s.config.Model,
		"firmwareVersion":   s.config.FirmwareVersion,
	})
	if err != nil {
		return fmt.Errorf("boot notification failed: %w", err)
	}

	var boot struct {
		Status   string `json:"status"`
		Interval int    `json:"interval"`
	}
	if err := json.Unmarshal(resp, &boot); err != nil {
		return fmt.Errorf("invalid boot response: %w", err)
	}
	s.log.Info("Boot notification accepted",
		zap.String("status", boot.Status),
		zap.Int("interval", boot.Interval),
	)

	interval := time.Duration(boot.Interval) * time.Second
	if interval <= 0 {
		interval = 300 * time.Second
	}
	go s.heartbeatLoop(interval)

	for c := 1; c <= s.config.ConnectorCount; c++ {
		if err := s.SendStatusNotification(c, "Available"); err != nil {
			s.log.Warn("Status notification failed", zap.Int("connector", c), zap.Error(err))
		}
	}
	return nil
}

func (s *Simulator) Stop() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Simulator) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.SendHeartbeat(); err != nil {
				s.log.Warn("Heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (s *Simulator) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Error("Connection lost", zap.Error(err))
			}
			return
		}

		var frame []json.RawMessage
		if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 3 {
			s.log.Warn("Invalid frame received", zap.ByteString("raw", raw))
			continue
		}

		var messageType int
		if err := json.Unmarshal(frame[0], &messageType); err != nil {
			continue
		}
		var messageID string
		if err := json.Unmarshal(frame[1], &messageID); err != nil {
			continue
		}

		switch messageType {
		case callResultMessage:
			s.resolvePending(messageID, frame[2])
		case callErrorMessage:
			s.log.Warn("Call error received", zap.String("messageId", messageID))
			s.resolvePending(messageID, nil)
		case callMessage:
			if len(frame) < 4 {
				continue
			}
			var action string
			if err := json.Unmarshal(frame[2], &action); err != nil {
				continue
			}
			s.handleIncomingCall(messageID, action, frame[3])
		}
	}
}

func (s *Simulator) resolvePending(messageID string, payload json.RawMessage) {
	s.pendingMu.Lock()
	ch, ok := s.pending[messageID]
	if ok {
		delete(s.pending, messageID)
	}
	s.pendingMu.Unlock()
	if ok {
		ch <- payload
	}
}

// handleIncomingCall answers central system requests. Only the remote
// transaction commands are supported.
func (s *Simulator) handleIncomingCall(messageID, action string, payload json.RawMessage) {
	s.log.Info("Incoming call", zap.String("action", action))

	switch action {
	case "RemoteStartTransaction":
		var req struct {
			IdTag       string `json:"idTag"`
			ConnectorID int    `json:"connectorId"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			s.sendCallError(messageID, "FormationViolation", err.Error())
			return
		}
		if req.ConnectorID <= 0 {
			req.ConnectorID = 1
		}
		s.sendCallResult(messageID, map[string]interface{}{"status": "Accepted"})
		go func() {
			if err := s.StartTransaction(req.ConnectorID, req.IdTag); err != nil {
				s.log.Warn("Remote start failed", zap.Error(err))
			}
		}()

	case "RemoteStopTransaction":
		s.sendCallResult(messageID, map[string]interface{}{"status": "Accepted"})
		go func() {
			if err := s.StopTransaction("Remote"); err != nil {
				s.log.Warn("Remote stop failed", zap.Error(err))
			}
		}()

	default:
		s.sendCallError(messageID, "NotImplemented", fmt.Sprintf("action %s not supported", action))
	}
}

func (s *Simulator) sendCall(action string, payload interface{}) (json.RawMessage, error) {
	messageID := uuid.New().String()
	frame := []interface{}{callMessage, messageID, action, payload}

	ch := make(chan json.RawMessage, 1)
	s.pendingMu.Lock()
	s.pending[messageID] = ch
	s.pendingMu.Unlock()

	if err := s.writeFrame(frame); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, messageID)
		s.pendingMu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, fmt.Errorf("call %s rejected by server", action)
		}
		return resp, nil
	case <-time.After(30 * time.Second):
		s.pendingMu.Lock()
		delete(s.pending, messageID)
		s.pendingMu.Unlock()
		return nil, fmt.Errorf("call %s timed out", action)
	}
}

func (s *Simulator) sendCallResult(messageID string, payload interface{}) {
	if err := s.writeFrame([]interface{}{callResultMessage, messageID, payload}); err != nil {
		s.log.Warn("Failed to send call result", zap.Error(err))
	}
}

func (s *Simulator) sendCallError(messageID, code, description string) {
	frame := []interface{}{callErrorMessage, messageID, code, description, map[string]interface{}{}}
	if err := s.writeFrame(frame); err != nil {
		s.log.Warn("Failed to send call error", zap.Error(err))
	}
}

func (s *Simulator) writeFrame(frame []interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Simulator) SendHeartbeat() error {
	resp, err := s.sendCall("Heartbeat", map[string]interface{}{})
	if err != nil {
		return err
	}
	var hb struct {
		CurrentTime string `json:"currentTime"`
	}
	if err := json.Unmarshal(resp, &hb); err == nil {
		s.log.Debug("Heartbeat acknowledged", zap.String("currentTime", hb.CurrentTime))
	}
	return nil
}

func (s *Simulator) SendStatusNotification(connectorID int, status string) error {
	_, err := s.sendCall("StatusNotification", map[string]interface{}{
		"connectorId": connectorID,
		"status":      status,
		"errorCode":   "NoError",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	return err
}

func (s *Simulator) StartTransaction(connectorID int, idTag string) error {
	if idTag == "" {
		idTag = s.config.IdTag
	}

	s.stateMu.Lock()
	if s.transactionID != 0 {
		s.stateMu.Unlock()
		return fmt.Errorf("transaction %d already active", s.transactionID)
	}
	meterStart := s.meterWh
	s.stateMu.Unlock()

	resp, err := s.sendCall("StartTransaction", map[string]interface{}{
		"connectorId": connectorID,
		"idTag":       idTag,
		"meterStart":  meterStart,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	var result struct {
		TransactionID int `json:"transactionId"`
		IdTagInfo     struct {
			Status string `json:"status"`
		} `json:"idTagInfo"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("invalid start response: %w", err)
	}
	if result.IdTagInfo.Status != "Accepted" {
		return fmt.Errorf("id tag rejected: %s", result.IdTagInfo.Status)
	}

	s.stateMu.Lock()
	s.transactionID = result.TransactionID
	s.activeConnector = connectorID
	s.stateMu.Unlock()

	s.log.Info("Transaction started",
		zap.Int("transactionId", result.TransactionID),
		zap.Int("connectorId", connectorID),
	)
	return s.SendStatusNotification(connectorID, "Charging")
}

func (s *Simulator) StopTransaction(reason string) error {
	s.stateMu.Lock()
	txID := s.transactionID
	connector := s.activeConnector
	meterStop := s.meterWh
	s.stateMu.Unlock()

	if txID == 0 {
		return fmt.Errorf("no active transaction")
	}

	resp, err := s.sendCall("StopTransaction", map[string]interface{}{
		"transactionId": txID,
		"meterStop":     meterStop,
		"reason":        reason,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	var result struct {
		IdTagInfo struct {
			Status string `json:"status"`
		} `json:"idTagInfo"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("invalid stop response: %w", err)
	}
	if result.IdTagInfo.Status != "" && result.IdTagInfo.Status != "Accepted" {
		s.log.Warn("Stop not accepted", zap.String("status", result.IdTagInfo.Status))
	}

	s.stateMu.Lock()
	s.transactionID = 0
	s.activeConnector = 0
	s.stateMu.Unlock()

	s.log.Info("Transaction stopped", zap.Int("transactionId", txID))
	return s.SendStatusNotification(connector, "Available")
}

// SendMeterValues reports the running energy register in Wh.
func (s *Simulator) SendMeterValues(meterWh int64) error {
	s.stateMu.Lock()
	s.meterWh = meterWh
	txID := s.transactionID
	connector := s.activeConnector
	s.stateMu.Unlock()

	if connector == 0 {
		connector = 1
	}

	payload := map[string]interface{}{
		"connectorId": connector,
		"meterValue": []map[string]interface{}{
			{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"sampledValue": []map[string]interface{}{
					{
						"value":     strconv.FormatInt(meterWh, 10),
						"measurand": "Energy.Active.Import.Register",
						"unit":      "Wh",
					},
				},
			},
		},
	}
	if txID != 0 {
		payload["transactionId"] = txID
	}

	_, err := s.sendCall("MeterValues", payload)
	return err
}

// RunInteractive reads commands from stdin until quit.
func (s *Simulator) RunInteractive() {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch fields[0] {
		case "start":
			connector := 1
			if len(fields) > 1 {
				connector, _ = strconv.Atoi(fields[1])
			}
			err = s.StartTransaction(connector, s.config.IdTag)
		case "stop":
			err = s.StopTransaction("Local")
		case "status":
			if len(fields) < 3 {
				fmt.Println("usage: status <connector> <status>")
				continue
			}
			connector, _ := strconv.Atoi(fields[1])
			err = s.SendStatusNotification(connector, fields[2])
		case "meter":
			if len(fields) < 2 {
				fmt.Println("usage: meter <wh>")
				continue
			}
			wh, parseErr := strconv.ParseInt(fields[1], 10, 64)
			if parseErr != nil {
				fmt.Println("invalid meter value")
				continue
			}
			err = s.SendMeterValues(wh)
		case "heartbeat":
			err = s.SendHeartbeat()
		case "quit", "exit":
			s.Stop()
			return
		default:
			fmt.Printf("unknown command: %s\n", fields[0])
			continue
		}

		if err != nil {
			fmt.Printf("error: %v\n", err)
		} else {
			fmt.Println("ok")
		}
	}
}
