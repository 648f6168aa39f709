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
	"sync"
	"time"
)

// fakeClock only moves when Sleep or Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 7, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSlotPage serves a scripted sequence of interval listings, one per
// attempt. The last listing repeats once the script runs out.
type fakeSlotPage struct {
	clock *fakeClock

	// directAt is the attempt (1-based) at which ClickTarget succeeds; 0 never.
	directAt  int
	listings  [][]Interval
	listErr   error
	clickErr  error
	reloadErr error
	// targetErr is returned by ClickTarget, as if the element was found but
	// the click itself failed.
	targetErr error
	// reloadBlocks makes Reload hang until ctx is done.
	reloadBlocks bool

	attempts int
	reloads  int
	clicked  []Interval
	targets  []int
	timeouts []time.Duration
}

func (p *fakeSlotPage) ClickTarget(ctx context.Context, minutes int, timeout time.Duration) (bool, error) {
	p.attempts++
	p.targets = append(p.targets, minutes)
	p.timeouts = append(p.timeouts, timeout)
	if p.targetErr != nil {
		return false, p.targetErr
	}
	if p.directAt != 0 && p.attempts >= p.directAt {
		return true, nil
	}
	// A failed lookup spends its whole timeout waiting.
	p.clock.Advance(timeout)
	return false, nil
}

func (p *fakeSlotPage) AvailableIntervals(ctx context.Context) ([]Interval, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	if len(p.listings) == 0 {
		return nil, nil
	}
	i := p.attempts - 1
	if i >= len(p.listings) {
		i = len(p.listings) - 1
	}
	return p.listings[i], nil
}

func (p *fakeSlotPage) ClickInterval(ctx context.Context, iv Interval) error {
	if p.clickErr != nil {
		return p.clickErr
	}
	p.clicked = append(p.clicked, iv)
	return nil
}

func (p *fakeSlotPage) Reload(ctx context.Context) error {
	p.reloads++
	if p.reloadBlocks {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.reloadErr
}

// fakeConfirmationPage returns the scripted url and body from check n on.
type fakeConfirmationPage struct {
	url, body string
	// from is the 1-based check at which url and body start being returned.
	from   int
	checks int
	err    error
}

func (p *fakeConfirmationPage) URL(ctx context.Context) (string, error) {
	p.checks++
	if p.err != nil {
		return "", p.err
	}
	if p.checks < p.from {
		return "https://courts.example/checkout", nil
	}
	return p.url, nil
}

func (p *fakeConfirmationPage) BodyText(ctx context.Context) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if p.checks < p.from {
		return "Processing payment...", nil
	}
	return p.body, nil
}
