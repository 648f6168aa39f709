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
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultConfirmBudget   = 30 * time.Second
	DefaultConfirmInterval = time.Second
)

// DefaultURLMarkers are URL substrings seen on the page shown after a
// successful payment.
var DefaultURLMarkers = []string{"confirmation", "success"}

// DefaultKeywords are phrases that only appear on a confirmation page.
var DefaultKeywords = []string{
	"booking confirmed",
	"reservation confirmed",
	"payment successful",
	"thank you for your booking",
	"booking reference",
	"confirmation number",
}

// ConfirmationPage exposes what the confirmation poll inspects.
type ConfirmationPage interface {
	URL(ctx context.Context) (string, error)
	BodyText(ctx context.Context) (string, error)
}

// Confirmation is the result of a confirmation poll.
type Confirmation struct {
	Confirmed bool
	// Signal is the URL marker or keyword that matched.
	Signal  string
	Checks  int
	Elapsed time.Duration
}

// DetectConfirmation reports the first confirmation signal found in url or
// body. URL markers are plain substrings; keywords match case-insensitively.
func DetectConfirmation(url, body string, urlMarkers, keywords []string) (string, bool) {
	for _, m := range urlMarkers {
		if m != "" && strings.Contains(url, m) {
			return m, true
		}
	}
	lower := strings.ToLower(body)
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}

// ConfirmationPoller checks the page after payment until a confirmation
// signal shows up or the budget runs out. Running out is not an error.
type ConfirmationPoller struct {
	Page   ConfirmationPage
	Clock  Clock
	Logger *zap.Logger

	Interval   time.Duration
	Budget     time.Duration
	URLMarkers []string
	Keywords   []string
}

// Poll returns once confirmed, after the full budget, or when ctx is done.
func (p *ConfirmationPoller) Poll(ctx context.Context) (Confirmation, error) {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}
	budget := p.Budget
	if budget <= 0 {
		budget = DefaultConfirmBudget
	}
	markers := p.URLMarkers
	if markers == nil {
		markers = DefaultURLMarkers
	}
	keywords := p.Keywords
	if keywords == nil {
		keywords = DefaultKeywords
	}

	start := clock.Now()
	deadline := start.Add(budget)
	var c Confirmation
	for {
		c.Checks++
		// Lookups fail while the page is navigating; that only means no signal yet.
		url, err := p.Page.URL(ctx)
		if err != nil {
			log.Debug("reading page url", zap.Error(err))
		}
		body, err := p.Page.BodyText(ctx)
		if err != nil {
			log.Debug("reading page body", zap.Error(err))
		}
		if signal, ok := DetectConfirmation(url, body, markers, keywords); ok {
			c.Confirmed = true
			c.Signal = signal
			c.Elapsed = clock.Now().Sub(start)
			log.Info("booking confirmed", zap.String("signal", signal), zap.String("url", url))
			return c, nil
		}

		left := deadline.Sub(clock.Now())
		if left <= 0 {
			break
		}
		if err := clock.Sleep(ctx, min(interval, left)); err != nil {
			c.Elapsed = clock.Now().Sub(start)
			return c, err
		}
	}
	c.Elapsed = clock.Now().Sub(start)
	log.Warn("payment submitted but not confirmed", zap.Duration("elapsed", c.Elapsed), zap.Int("checks", c.Checks))
	return c, nil
}
