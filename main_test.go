package main

import (
	"errors"
	"net"
	"os"
	"syscall"
	"testing"

	"classifyd/config"
	qhttp "classifyd/http"
	"classifyd/ml"
	"classifyd/monitoring"

	"go.uber.org/zap"
)

func TestWaitForShutdownOnSignal(t *testing.T) {
	quit := make(chan os.Signal, 1)
	quit <- syscall.SIGTERM
	if err := waitForShutdown(make(chan error), quit); err != nil {
		t.Fatalf("signal should shut down cleanly, got %v", err)
	}
}

func TestWaitForShutdownReturnsServerError(t *testing.T) {
	serverErr := make(chan error, 1)
	serverErr <- errors.New("listen tcp :8000: bind: address already in use")
	if err := waitForShutdown(serverErr, make(chan os.Signal)); err == nil {
		t.Fatal("server failure should be returned to the caller")
	}
}

func TestServerStartFailureReachesMainGoroutine(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Http.Port = ln.Addr().(*net.TCPAddr).Port
	registry := ml.NewRegistry(cfg.ML.ModelPath, zap.NewNop())
	deps := buildDependencies(cfg, registry, nil, monitoring.NewMetricsCollector(), monitoring.NewEventHub(zap.NewNop()), zap.NewNop())
	server := qhttp.NewServer(serverConfig(cfg), qhttp.NewAPI(deps))

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	if err := waitForShutdown(serverErr, make(chan os.Signal)); err == nil {
		t.Fatal("expected the bind failure to be reported")
	}
}
