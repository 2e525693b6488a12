package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Tilt-github/aave-v4-sub006/config"
	"github.com/Tilt-github/aave-v4-sub006/native/common"
	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/rates"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
	"github.com/Tilt-github/aave-v4-sub006/observability"
	"github.com/Tilt-github/aave-v4-sub006/observability/logging"
	hubserver "github.com/Tilt-github/aave-v4-sub006/services/hub/server"
	"github.com/Tilt-github/aave-v4-sub006/storage"
)

// listenConfig is the minimal yaml file overriding the listen address, kept
// separate from the ledger configuration so deploy tooling can template it.
type listenConfig struct {
	ListenAddress string `yaml:"listen"`
}

func loadListenConfig(path string) (listenConfig, error) {
	cfg := listenConfig{}
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open listen config: %w", err)
	}
	defer file.Close()
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode listen config: %w", err)
	}
	return cfg, nil
}

func main() {
	var cfgPath, listenPath, listenFlag string
	flag.StringVar(&cfgPath, "config", "hubd.toml", "path to the ledger configuration")
	flag.StringVar(&listenPath, "listen-config", "", "optional yaml file overriding the listen address")
	flag.StringVar(&listenFlag, "listen", "", "listen address override")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("HUB_ENV"))
	logger := logging.Setup("hubd", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	listen := cfg.ListenAddress
	if listenPath != "" {
		listenCfg, err := loadListenConfig(listenPath)
		if err != nil {
			logger.Error("load listen config", "error", err)
			os.Exit(1)
		}
		if listenCfg.ListenAddress != "" {
			listen = listenCfg.ListenAddress
		}
	}
	if listenFlag != "" {
		listen = listenFlag
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	model, err := rates.NewKinkedModel(cfg.Rates)
	if err != nil {
		logger.Error("build rate model", "error", err)
		os.Exit(1)
	}

	feed := &events.Recorder{}
	emitter := &observability.MetricsEmitter{Next: feed}

	// All engine writes land in the stage; the server commits it only after a
	// request succeeds, so a failure mid-operation cannot split hub and spoke
	// state.
	stage := storage.NewStaged(db)

	ledger := hub.NewEngine(storage.NewHubStore(stage))
	ledger.SetEmitter(emitter)
	ledger.SetLogger(logger.With("component", "hub"))

	prices := hubserver.NewStaticPrices()
	spokeID := uuid.NewSHA1(uuid.NameSpaceURL, []byte("ledger/spoke/primary"))
	risk := spoke.NewEngine(storage.NewRiskStore(stage), ledger, prices, spokeID, cfg.Liquidation.Policy())
	risk.SetEmitter(emitter)
	risk.SetLogger(logger.With("component", "spoke"))

	srv := hubserver.New(hubserver.Config{
		Hub:    ledger,
		Risk:   risk,
		Rates:  model,
		Prices: prices,
		Pauses: common.StaticPauses(cfg.Paused),
		Feed:   feed,
		Stage:  stage,
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:              listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hubd listening", "address", listen, "spoke", spokeID.String())
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	}
}
