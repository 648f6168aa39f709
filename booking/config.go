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

package booking

import (
	"time"
)

// Config is everything the driver needs for one run.
type Config struct {
	Request Request `mapstructure:",squash"`

	LoginURL   string `mapstructure:"site_login_url"`
	BookingURL string `mapstructure:"site_booking_url"`

	// ChromeURL is a remote DevTools endpoint. When empty a local Chrome is launched.
	ChromeURL     string `mapstructure:"chrome_url"`
	Headless      bool   `mapstructure:"headless"`
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	// StepTimeout bounds each fixed UI step (login, date picking, payment).
	StepTimeout time.Duration `mapstructure:"step_timeout"`

	SearchBudget    time.Duration `mapstructure:"search_budget"`
	LookupTimeout   time.Duration `mapstructure:"search_lookup_timeout"`
	RetryDelay      time.Duration `mapstructure:"search_retry_delay"`
	MinRemaining    time.Duration `mapstructure:"search_min_remaining"`
	ConfirmBudget   time.Duration `mapstructure:"confirm_budget"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
	URLMarkers      []string      `mapstructure:"confirm_url_markers"`
	Keywords        []string      `mapstructure:"confirm_keywords"`

	Locators Locators `mapstructure:"locators"`
}

// DefaultConfig returns a Config with every tunable set to its default and
// an empty Request.
func DefaultConfig() Config {
	return Config{
		Headless:        true,
		ScreenshotDir:   "screenshots",
		StepTimeout:     30 * time.Second,
		SearchBudget:    DefaultSearchBudget,
		LookupTimeout:   DefaultLookupTimeout,
		RetryDelay:      DefaultRetryDelay,
		MinRemaining:    DefaultMinRemaining,
		ConfirmBudget:   DefaultConfirmBudget,
		ConfirmInterval: DefaultConfirmInterval,
		URLMarkers:      append([]string(nil), DefaultURLMarkers...),
		Keywords:        append([]string(nil), DefaultKeywords...),
		Locators:        DefaultLocators(),
	}
}

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeSlotClicked  Outcome = "slot_clicked"
	OutcomeSlotNotFound Outcome = "slot_not_found"
	OutcomeConfirmed    Outcome = "confirmed"
	OutcomeUnconfirmed  Outcome = "unconfirmed"
	OutcomeErrored      Outcome = "errored"
)

// Result summarises a finished run.
type Result struct {
	RunID        string
	Outcome      Outcome
	Slot         *SearchResult
	Confirmation *Confirmation
	Screenshots  []string
	Err          error
}

// ExitCode maps the outcome to the process exit status: 0 when payment was
// submitted, 1 otherwise.
func (r Result) ExitCode() int {
	switch r.Outcome {
	case OutcomeConfirmed, OutcomeUnconfirmed:
		return 0
	default:
		return 1
	}
}
