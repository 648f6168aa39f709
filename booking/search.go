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
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrSlotNotFound is returned when no matching interval shows up before the
// search budget runs out.
var ErrSlotNotFound = errors.New("slot not found")

const (
	DefaultSearchBudget  = 5 * time.Minute
	DefaultLookupTimeout = 2 * time.Second
	DefaultRetryDelay    = 3 * time.Second
	DefaultMinRemaining  = 10 * time.Second
)

// SlotPage is the page listing bookable intervals.
type SlotPage interface {
	// ClickTarget waits up to timeout for the interval starting at minutes
	// and clicks it. It reports false, with a nil error, when the element
	// did not show up in time. A non-nil error means the element was found
	// but could not be clicked, and ends the search.
	ClickTarget(ctx context.Context, minutes int, timeout time.Duration) (bool, error)
	// AvailableIntervals lists the intervals that are not booked yet.
	AvailableIntervals(ctx context.Context) ([]Interval, error)
	ClickInterval(ctx context.Context, iv Interval) error
	Reload(ctx context.Context) error
}

// SearchResult describes a successful search.
type SearchResult struct {
	Interval Interval
	// Direct is true when the structural lookup found the interval, false
	// when it was found by enumeration.
	Direct   bool
	Attempts int
	Elapsed  time.Duration
}

// SlotSearcher polls a SlotPage until the target interval can be clicked or
// the budget is spent. At most one interval is clicked per Search.
type SlotSearcher struct {
	Page   SlotPage
	Clock  Clock
	Logger *zap.Logger

	Budget        time.Duration
	LookupTimeout time.Duration
	RetryDelay    time.Duration
	// MinRemaining is the budget that must be left for another attempt.
	MinRemaining time.Duration
}

func (s *SlotSearcher) defaults() {
	if s.Clock == nil {
		s.Clock = SystemClock
	}
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.Budget <= 0 {
		s.Budget = DefaultSearchBudget
	}
	if s.LookupTimeout <= 0 {
		s.LookupTimeout = DefaultLookupTimeout
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = DefaultRetryDelay
	}
	if s.MinRemaining <= 0 {
		s.MinRemaining = DefaultMinRemaining
	}
}

// Search looks for the interval starting at target minutes past midnight.
// It returns ErrSlotNotFound when the budget is exhausted, including when it
// runs out in the middle of a page call. Cancelling ctx returns ctx's error.
func (s *SlotSearcher) Search(ctx context.Context, target int) (SearchResult, error) {
	s.defaults()
	log := s.Logger.With(zap.Int("targetMinutes", target))

	budgetCtx, cancel := context.WithTimeout(ctx, s.Budget)
	defer cancel()
	budgetSpent := func() bool {
		return ctx.Err() == nil && errors.Is(budgetCtx.Err(), context.DeadlineExceeded)
	}

	start := s.Clock.Now()
	deadline := start.Add(s.Budget)
	res := SearchResult{}

	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("slot search: %w", err)
		}
		remaining := deadline.Sub(s.Clock.Now())
		if remaining <= 0 || budgetSpent() {
			break
		}
		res.Attempts++

		ok, err := s.Page.ClickTarget(budgetCtx, target, min(s.LookupTimeout, remaining))
		if err != nil {
			if budgetSpent() {
				break
			}
			if ctx.Err() != nil {
				return res, fmt.Errorf("slot search: %w", ctx.Err())
			}
			return res, fmt.Errorf("clicking target interval: %w", err)
		}
		if ok {
			res.Interval = Interval{Index: -1, Minutes: target}
			res.Direct = true
			res.Elapsed = s.Clock.Now().Sub(start)
			log.Info("slot clicked", zap.Bool("direct", true), zap.Int("attempt", res.Attempts))
			return res, nil
		}

		intervals, err := s.Page.AvailableIntervals(budgetCtx)
		if err != nil {
			if budgetSpent() {
				break
			}
			if ctx.Err() != nil {
				return res, fmt.Errorf("slot search: %w", ctx.Err())
			}
			log.Warn("listing intervals failed", zap.Int("attempt", res.Attempts), zap.Error(err))
		}
		if iv, found := FindInterval(intervals, target); found {
			if err := s.Page.ClickInterval(budgetCtx, iv); err != nil {
				return res, fmt.Errorf("clicking interval %s: %w", iv.Start(), err)
			}
			res.Interval = iv
			res.Elapsed = s.Clock.Now().Sub(start)
			log.Info("slot clicked", zap.Bool("direct", false), zap.Int("attempt", res.Attempts), zap.String("label", iv.Label))
			return res, nil
		}
		log.Info("no matching slot yet", zap.Int("attempt", res.Attempts), zap.Int("available", len(intervals)))

		remaining = deadline.Sub(s.Clock.Now())
		if remaining <= s.MinRemaining {
			break
		}
		if err := s.Page.Reload(budgetCtx); err != nil {
			if budgetSpent() {
				break
			}
			if ctx.Err() != nil {
				return res, fmt.Errorf("slot search: %w", ctx.Err())
			}
			log.Warn("reloading interval page failed", zap.Int("attempt", res.Attempts), zap.Error(err))
		}
		if err := s.Clock.Sleep(budgetCtx, min(s.RetryDelay, deadline.Sub(s.Clock.Now()))); err != nil {
			if budgetSpent() {
				break
			}
			return res, fmt.Errorf("slot search: %w", err)
		}
	}

	res.Elapsed = s.Clock.Now().Sub(start)
	log.Warn("slot search budget exhausted", zap.Int("attempts", res.Attempts), zap.Duration("elapsed", res.Elapsed))
	return res, ErrSlotNotFound
}
