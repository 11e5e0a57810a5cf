package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

var (
	serverURL      = flag.String("server", "ws://localhost:9000/ocpp/1.6", "OCPP server WebSocket URL")
	chargePointID  = flag.String("id", "SIM-001", "Charge point identifier")
	vendor         = flag.String("vendor", "GridWatt", "Charge point vendor")
	model          = flag.String("model", "SimulatorV1", "Charge point model")
	firmware       = flag.String("firmware", "1.0.0", "Firmware version")
	idTag          = flag.String("idtag", "U-1", "Id tag used for transactions")
	connectorCount = flag.Int("connectors", 2, "Number of connectors")
	interactive    = flag.Bool("interactive", false, "Enable interactive mode")
	verbose        = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	config := &SimulatorConfig{
		ServerURL:       *serverURL,
		ChargePointID:   *chargePointID,
		Vendor:          *vendor,
		Model:           *model,
		FirmwareVersion: *firmware,
		IdTag:           *idTag,
		ConnectorCount:  *connectorCount,
	}

	simulator := NewSimulator(config, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down simulator...")
		simulator.Stop()
		os.Exit(0)
	}()

	if err := simulator.Connect(); err != nil {
		logger.Fatal("Failed to connect to server", zap.Error(err))
	}

	if *interactive {
		runInteractiveMode(simulator)
	} else {
		fmt.Printf("OCPP charge point simulator started\n")
		fmt.Printf("  ID: %s\n", *chargePointID)
		fmt.Printf("  Server: %s\n", *serverURL)
		fmt.Println("\nPress Ctrl+C to stop")

		select {}
	}
}

func runInteractiveMode(sim *Simulator) {
	fmt.Println("\nOCPP Charge Point Simulator - Interactive Mode")
	fmt.Println("============================================")
	fmt.Println("Commands:")
	fmt.Println("  start <connector>   - Start a transaction on connector")
	fmt.Println("  stop                - Stop the current transaction")
	fmt.Println("  status <connector> <status> - Send a StatusNotification")
	fmt.Println("  meter <wh>          - Send a MeterValues reading (Wh)")
	fmt.Println("  heartbeat           - Send a heartbeat")
	fmt.Println("  quit                - Exit simulator")
	fmt.Println("")

	sim.RunInteractive()
}
