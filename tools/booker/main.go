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

// booker performs one court booking attempt in a browser and exits with
// status 0 when payment was submitted, 1 otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ttbt-io/courtbot/booking"
	"github.com/ttbt-io/courtbot/config"
	"github.com/ttbt-io/courtbot/logging"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "", "Path to a YAML config file (default: booker.yaml if present)")
	envFile    = flag.String("env-file", ".env", "Path to a .env file loaded before the environment is read")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", *envFile, err)
		return 1
	}
	cfg, err := config.LoadDriver(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return 1
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	req := cfg.Booking.Request
	logger.Info("starting booking",
		zap.String("user", req.Username),
		zap.String("date", req.Date),
		zap.String("time", req.TargetTime()),
		zap.String("card", req.Payment.MaskedNumber()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := booking.NewDriver(cfg.Booking, logger).Run(ctx)
	fields := []zap.Field{
		zap.String("runId", res.RunID),
		zap.String("outcome", string(res.Outcome)),
		zap.Strings("screenshots", res.Screenshots),
	}
	if res.Slot != nil {
		fields = append(fields, zap.String("slot", res.Slot.Interval.Start()), zap.Int("attempts", res.Slot.Attempts))
	}
	if res.Confirmation != nil && res.Confirmation.Signal != "" {
		fields = append(fields, zap.String("signal", res.Confirmation.Signal))
	}
	logger.Info("booking result", fields...)
	return res.ExitCode()
}
