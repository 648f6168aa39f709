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
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// chromePage implements SlotPage and ConfirmationPage on a chromedp tab.
type chromePage struct {
	loc Locators
	// readTimeout bounds single reads so a missing node never blocks a poll.
	readTimeout time.Duration
}

func (p *chromePage) ClickTarget(ctx context.Context, minutes int, timeout time.Duration) (bool, error) {
	sel := p.loc.TargetSelector(minutes)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return false, fmt.Errorf("click %s: %w", sel, err)
	}
	return true, nil
}

func (p *chromePage) AvailableIntervals(ctx context.Context) ([]Interval, error) {
	readCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(readCtx, chromedp.OuterHTML(p.loc.IntervalList, &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.loc.IntervalList, err)
	}
	return ParseIntervals(html, p.loc)
}

func (p *chromePage) ClickInterval(ctx context.Context, iv Interval) error {
	var clicked bool
	err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`
		(() => {
			const list = document.querySelector(%q);
			if (!list) return false;
			const el = list.querySelectorAll(%q)[%d];
			if (!el) return false;
			el.scrollIntoView();
			el.click();
			return true;
		})()`, p.loc.IntervalList, p.loc.AvailableInterval, iv.Index), &clicked))
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("interval #%d disappeared before it could be clicked", iv.Index)
	}
	return nil
}

func (p *chromePage) Reload(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Reload())
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	readCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	defer cancel()
	var u string
	err := chromedp.Run(readCtx, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) BodyText(ctx context.Context) (string, error) {
	readCtx, cancel := context.WithTimeout(ctx, p.readTimeout)
	defer cancel()
	var s string
	err := chromedp.Run(readCtx, chromedp.Text("body", &s, chromedp.ByQuery))
	return s, err
}

// screenshotter writes stage screenshots named <stage>_<timestamp>.png.
type screenshotter struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

func (s *screenshotter) filename(stage, ext string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.%s", stage, s.now().Format("20060102_150405"), ext))
}

// Capture saves a screenshot of the current viewport and returns its file
// name. Failures are logged and return "".
func (s *screenshotter) Capture(ctx context.Context, stage string) string {
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		s.logger.Warn("capturing screenshot", zap.String("stage", stage), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Warn("creating screenshot dir", zap.String("dir", s.dir), zap.Error(err))
		return ""
	}
	name := s.filename(stage, "png")
	if err := os.WriteFile(name, buf, 0644); err != nil {
		s.logger.Warn("writing screenshot", zap.String("file", name), zap.Error(err))
		return ""
	}
	s.logger.Info("saved screenshot", zap.String("stage", stage), zap.String("file", name))
	return name
}

// DumpHTML saves the page source next to the screenshots for debugging.
func (s *screenshotter) DumpHTML(ctx context.Context, stage string) {
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		s.logger.Warn("capturing html", zap.String("stage", stage), zap.Error(err))
		return
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return
	}
	name := s.filename(stage, "html")
	if err := os.WriteFile(name, []byte(html), 0644); err != nil {
		s.logger.Warn("writing html dump", zap.String("file", name), zap.Error(err))
		return
	}
	s.logger.Info("saved html dump", zap.String("stage", stage), zap.String("file", name))
}
