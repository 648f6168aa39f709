// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ttbt-io/courtbot/backend"
	"github.com/ttbt-io/courtbot/config"
	"github.com/ttbt-io/courtbot/logging"
	"go.uber.org/zap"
)

var (
	addr       = flag.String("addr", "", "The TCP address to listen to (overrides APP_ADDR)")
	dataDir    = flag.String("data-dir", "", "Directory for run history (overrides DATA_DIR)")
	driverPath = flag.String("driver", "", "Path to the booking driver (overrides DRIVER_PATH)")
	configFile = flag.String("config", "", "Path to a YAML config file (default: courtbot.yaml if present)")
	envFile    = flag.String("env-file", ".env", "Path to a .env file loaded before the environment is read")
	tlsCert    = flag.String("tls-cert", "", "Path to HTTP TLS certificate")
	tlsKey     = flag.String("tls-key", "", "Path to HTTP TLS key")
)

// main starts the trigger server.
func main() {
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg, err := config.LoadTrigger(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *driverPath != "" {
		cfg.DriverPath = *driverPath
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cert *tls.Certificate
	if *tlsCert != "" && *tlsKey != "" {
		c, err := tls.LoadX509KeyPair(*tlsCert, *tlsKey)
		if err != nil {
			logger.Fatal("Failed to load TLS cert/key", zap.Error(err))
		}
		cert = &c
	}

	store, encrypted, err := backend.OpenStorage(cfg.DataDir, os.Getenv("COURTBOT_MASTER_KEY"), true)
	if err != nil {
		logger.Fatal("Failed to open run history storage", zap.Error(err))
	}
	if !encrypted {
		logger.Warn("No COURTBOT_MASTER_KEY provided. Run history will be stored UNENCRYPTED.")
	}

	server, err := backend.StartServer(backend.Options{
		Addr:          cfg.Addr,
		Cert:          cert,
		DriverPath:    cfg.DriverPath,
		DriverArgs:    cfg.DriverArgs,
		RunTimeout:    cfg.RunTimeout,
		DataDir:       cfg.DataDir,
		Storage:       store,
		RatePerMinute: cfg.RatePerMinute,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout+10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	} else {
		logger.Info("Gracefully stopped.")
	}
}
