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

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Driver runs the booking sequence in a browser.
type Driver struct {
	cfg    Config
	logger *zap.Logger
	clock  Clock
	now    func() time.Time
}

// NewDriver returns a Driver for cfg. A nil logger discards all output.
func NewDriver(cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	return &Driver{
		cfg:    cfg,
		logger: logger,
		clock:  SystemClock,
		now:    time.Now,
	}
}

// Run performs one booking attempt. Every failure is logged, screenshotted
// and reported in the Result; the browser is always closed on return.
func (d *Driver) Run(ctx context.Context) Result {
	res := Result{RunID: uuid.NewString(), Outcome: OutcomeErrored}
	log := d.logger.With(zap.String("runId", res.RunID))

	if err := d.cfg.Request.Validate(); err != nil {
		log.Error("refusing to start", zap.Error(err))
		res.Err = err
		return res
	}

	browserCtx, cancel := d.newBrowser(ctx)
	defer cancel()

	shots := &screenshotter{dir: d.cfg.ScreenshotDir, now: d.now, logger: log}
	capture := func(stage string) {
		if name := shots.Capture(browserCtx, stage); name != "" {
			res.Screenshots = append(res.Screenshots, name)
		}
	}

	if err := d.book(browserCtx, log, capture, &res); err != nil {
		res.Err = err
		if errors.Is(err, ErrSlotNotFound) {
			res.Outcome = OutcomeSlotNotFound
			capture("slot_not_found")
		} else {
			res.Outcome = OutcomeErrored
			capture("error")
			shots.DumpHTML(browserCtx, "error")
		}
		log.Error("booking run failed", zap.String("outcome", string(res.Outcome)), zap.Error(err))
		return res
	}
	log.Info("booking run finished", zap.String("outcome", string(res.Outcome)))
	return res
}

func (d *Driver) newBrowser(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if d.cfg.ChromeURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, d.cfg.ChromeURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", d.cfg.Headless),
			chromedp.NoSandbox,
			chromedp.WindowSize(1366, 900),
		)
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, opts...)
	}
	sugar := d.logger.Sugar()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

// step runs one fixed UI step under the step timeout.
func (d *Driver) step(ctx context.Context, log *zap.Logger, name string, actions ...chromedp.Action) error {
	log.Info("step started", zap.String("step", name))
	stepCtx, cancel := context.WithTimeout(ctx, d.cfg.StepTimeout)
	defer cancel()
	if err := chromedp.Run(stepCtx, actions...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (d *Driver) book(ctx context.Context, log *zap.Logger, capture func(string), res *Result) error {
	req := d.cfg.Request
	loc := d.cfg.Locators
	day, err := req.Day()
	if err != nil {
		return err
	}

	// Allocate the browser before any step timeout applies to it.
	if err := chromedp.Run(ctx); err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	chromedp.ListenTarget(ctx, func(ev any) {
		e, ok := ev.(*page.EventJavascriptDialogOpening)
		if !ok {
			return
		}
		log.Info("accepting dialog", zap.String("type", string(e.Type)), zap.String("message", e.Message))
		go func() {
			if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(true)); err != nil {
				log.Warn("accepting dialog", zap.Error(err))
			}
		}()
	})

	log.Info("booking run started",
		zap.String("date", req.Date),
		zap.String("time", req.TargetTime()),
		zap.String("card", req.Payment.MaskedNumber()),
	)

	if err := d.step(ctx, log, "login",
		network.ClearBrowserCookies(),
		chromedp.Navigate(d.cfg.LoginURL),
		chromedp.WaitVisible(loc.LoginUsername, chromedp.ByQuery),
		chromedp.SendKeys(loc.LoginUsername, req.Username, chromedp.ByQuery),
		chromedp.SendKeys(loc.LoginPassword, req.Password, chromedp.ByQuery),
		chromedp.Click(loc.LoginSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(loc.LoggedIn, chromedp.ByQuery),
	); err != nil {
		return err
	}
	capture("logged_in")

	daySel := loc.DaySelector(day)
	if err := d.step(ctx, log, "select date",
		chromedp.Navigate(d.cfg.BookingURL),
		chromedp.WaitVisible(loc.DatePicker, chromedp.ByQuery),
		chromedp.Click(loc.DatePicker, chromedp.ByQuery),
		chromedp.WaitVisible(daySel, chromedp.ByQuery),
		chromedp.Click(daySel, chromedp.ByQuery),
		chromedp.WaitReady(loc.IntervalList, chromedp.ByQuery),
	); err != nil {
		return err
	}
	capture("date_selected")

	pg := &chromePage{loc: loc, readTimeout: d.cfg.LookupTimeout}
	if pg.readTimeout <= 0 {
		pg.readTimeout = DefaultLookupTimeout
	}
	searcher := &SlotSearcher{
		Page:          pg,
		Clock:         d.clock,
		Logger:        log,
		Budget:        d.cfg.SearchBudget,
		LookupTimeout: d.cfg.LookupTimeout,
		RetryDelay:    d.cfg.RetryDelay,
		MinRemaining:  d.cfg.MinRemaining,
	}
	found, err := searcher.Search(ctx, req.TargetMinutes())
	if err != nil {
		return err
	}
	res.Slot = &found
	res.Outcome = OutcomeSlotClicked
	capture("slot_selected")

	if err := d.step(ctx, log, "fill payment",
		chromedp.WaitVisible(loc.ContinueButton, chromedp.ByQuery),
		chromedp.Click(loc.ContinueButton, chromedp.ByQuery),
		chromedp.WaitVisible(loc.CardNumber, chromedp.ByQuery),
		chromedp.SendKeys(loc.CardName, req.Payment.CardName, chromedp.ByQuery),
		chromedp.SendKeys(loc.CardNumber, req.Payment.CardNumber, chromedp.ByQuery),
		chromedp.SendKeys(loc.CardExpiry, req.Payment.CardExpiry, chromedp.ByQuery),
		chromedp.SendKeys(loc.CardCVC, req.Payment.CardCVC, chromedp.ByQuery),
	); err != nil {
		return err
	}
	capture("payment_filled")

	if err := d.step(ctx, log, "submit payment",
		chromedp.Click(loc.PayButton, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		return err
	}

	poller := &ConfirmationPoller{
		Page:       pg,
		Clock:      d.clock,
		Logger:     log,
		Interval:   d.cfg.ConfirmInterval,
		Budget:     d.cfg.ConfirmBudget,
		URLMarkers: d.cfg.URLMarkers,
		Keywords:   d.cfg.Keywords,
	}
	conf, err := poller.Poll(ctx)
	if err != nil {
		return fmt.Errorf("confirmation poll: %w", err)
	}
	res.Confirmation = &conf
	if conf.Confirmed {
		res.Outcome = OutcomeConfirmed
		capture("confirmed")
	} else {
		res.Outcome = OutcomeUnconfirmed
		capture("unconfirmed")
	}
	return nil
}
