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

// Package config loads driver and trigger settings from an optional YAML
// file, an optional .env file and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/ttbt-io/courtbot/booking"
	"github.com/ttbt-io/courtbot/logging"
)

// Driver is the booker configuration.
type Driver struct {
	Booking booking.Config `mapstructure:",squash"`
	Log     logging.Config `mapstructure:",squash"`
}

// Trigger is the trigger service configuration.
type Trigger struct {
	Addr       string        `mapstructure:"app_addr"`
	DriverPath string        `mapstructure:"driver_path"`
	DriverArgs []string      `mapstructure:"driver_args"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	DataDir    string        `mapstructure:"data_dir"`
	// RatePerMinute limits trigger requests per client IP. Zero disables it.
	RatePerMinute int `mapstructure:"rate_per_min"`

	Log logging.Config `mapstructure:",squash"`
}

// LoadDotEnv copies the variables of a .env file into the environment.
// Variables that are already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("godotenv.Load(%s): %w", path, err)
	}
	return nil
}

func newViper(name, file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		return v, nil
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s config: %w", name, err)
		}
	}
	return v, nil
}

func setLogDefaults(v *viper.Viper, file string) {
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", file)
	v.SetDefault("log_color", false)
}

// LoadDriver reads the booker configuration. When file is empty, booker.yaml
// is looked up in the working directory and ./config.
func LoadDriver(file string) (Driver, error) {
	v, err := newViper("booker", file)
	if err != nil {
		return Driver{}, err
	}

	def := booking.DefaultConfig()
	for _, key := range []string{
		"booking_username", "booking_password", "booking_date",
		"card_name", "card_number", "card_expiry", "card_cvc",
		"site_login_url", "site_booking_url", "chrome_url",
	} {
		v.SetDefault(key, "")
	}
	// No default for the booking time: midnight is a valid slot, so an
	// unset value must not silently become 00:00.
	for _, key := range []string{"booking_hour", "booking_minute"} {
		if err := v.BindEnv(key); err != nil {
			return Driver{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	v.SetDefault("headless", def.Headless)
	v.SetDefault("screenshot_dir", def.ScreenshotDir)
	v.SetDefault("step_timeout", def.StepTimeout)
	v.SetDefault("search_budget", def.SearchBudget)
	v.SetDefault("search_lookup_timeout", def.LookupTimeout)
	v.SetDefault("search_retry_delay", def.RetryDelay)
	v.SetDefault("search_min_remaining", def.MinRemaining)
	v.SetDefault("confirm_budget", def.ConfirmBudget)
	v.SetDefault("confirm_interval", def.ConfirmInterval)
	v.SetDefault("confirm_url_markers", def.URLMarkers)
	v.SetDefault("confirm_keywords", def.Keywords)
	for key, sel := range locatorDefaults(def.Locators) {
		v.SetDefault("locators."+key, sel)
	}
	setLogDefaults(v, "booking.log")

	var missing []error
	for _, key := range []string{"booking_hour", "booking_minute"} {
		if !v.IsSet(key) {
			missing = append(missing, fmt.Errorf("%s is required", strings.ToUpper(key)))
		}
	}
	if len(missing) > 0 {
		return Driver{}, fmt.Errorf("%w: %w", booking.ErrInvalidRequest, errors.Join(missing...))
	}

	var cfg Driver
	if err := v.Unmarshal(&cfg); err != nil {
		return Driver{}, fmt.Errorf("decoding driver config: %w", err)
	}
	return cfg, nil
}

// LoadTrigger reads the trigger service configuration. When file is empty,
// courtbot.yaml is looked up in the working directory and ./config.
func LoadTrigger(file string) (Trigger, error) {
	v, err := newViper("courtbot", file)
	if err != nil {
		return Trigger{}, err
	}
	v.SetDefault("app_addr", ":8080")
	v.SetDefault("driver_path", "./booker")
	v.SetDefault("driver_args", []string{})
	v.SetDefault("run_timeout", 180*time.Second)
	v.SetDefault("data_dir", "data")
	v.SetDefault("rate_per_min", 0)
	setLogDefaults(v, "")

	var cfg Trigger
	if err := v.Unmarshal(&cfg); err != nil {
		return Trigger{}, fmt.Errorf("decoding trigger config: %w", err)
	}
	return cfg, nil
}

func locatorDefaults(l booking.Locators) map[string]string {
	return map[string]string{
		"login_username":     l.LoginUsername,
		"login_password":     l.LoginPassword,
		"login_submit":       l.LoginSubmit,
		"logged_in":          l.LoggedIn,
		"date_picker":        l.DatePicker,
		"day_cell":           l.DayCell,
		"interval_list":      l.IntervalList,
		"target_interval":    l.TargetInterval,
		"available_interval": l.AvailableInterval,
		"minutes_attr":       l.MinutesAttr,
		"continue_button":    l.ContinueButton,
		"card_name":          l.CardName,
		"card_number":        l.CardNumber,
		"card_expiry":        l.CardExpiry,
		"card_cvc":           l.CardCVC,
		"pay_button":         l.PayButton,
	}
}
