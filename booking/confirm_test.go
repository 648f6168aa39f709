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
	"testing"
	"time"
)

func TestDetectConfirmation(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		body   string
		signal string
		ok     bool
	}{
		{name: "url marker", url: "https://courts.example/booking/confirmation?id=7", signal: "confirmation", ok: true},
		{name: "second url marker", url: "https://courts.example/pay/success", signal: "success", ok: true},
		{name: "keyword any case", url: "https://courts.example/pay", body: "Thank You For Your Booking!", signal: "thank you for your booking", ok: true},
		{name: "first keyword wins", body: "Payment successful. Booking reference: X1", signal: "payment successful", ok: true},
		{name: "url checked before body", url: "/success", body: "booking confirmed", signal: "success", ok: true},
		{name: "nothing", url: "https://courts.example/pay", body: "Enter your card details"},
		{name: "empty page"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			signal, ok := DetectConfirmation(tc.url, tc.body, DefaultURLMarkers, DefaultKeywords)
			if ok != tc.ok || signal != tc.signal {
				t.Errorf("DetectConfirmation() = (%q, %v), want (%q, %v)", signal, ok, tc.signal, tc.ok)
			}
		})
	}
}

func TestDetectConfirmationURLMarkersCaseSensitive(t *testing.T) {
	if _, ok := DetectConfirmation("https://courts.example/SUCCESS", "", DefaultURLMarkers, nil); ok {
		t.Error("URL markers should match as plain substrings")
	}
}

func TestPollConfirmed(t *testing.T) {
	clock := newFakeClock()
	page := &fakeConfirmationPage{url: "https://courts.example/booking/confirmation", from: 4}
	p := &ConfirmationPoller{Page: page, Clock: clock, Interval: time.Second, Budget: 30 * time.Second}

	c, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !c.Confirmed || c.Signal != "confirmation" {
		t.Errorf("got %+v, want confirmed by url marker", c)
	}
	if c.Checks != 4 || c.Elapsed != 3*time.Second {
		t.Errorf("Checks=%d Elapsed=%v, want 4 checks after 3s", c.Checks, c.Elapsed)
	}
}

func TestPollConfirmedByBody(t *testing.T) {
	clock := newFakeClock()
	page := &fakeConfirmationPage{url: "https://courts.example/checkout", body: "Your RESERVATION CONFIRMED for court 3", from: 1}
	p := &ConfirmationPoller{Page: page, Clock: clock}

	c, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !c.Confirmed || c.Signal != "reservation confirmed" || c.Checks != 1 {
		t.Errorf("got %+v, want immediate keyword confirmation", c)
	}
}

func TestPollUnconfirmedAfterFullBudget(t *testing.T) {
	clock := newFakeClock()
	page := &fakeConfirmationPage{url: "https://courts.example/checkout", body: "Processing", from: 1}
	p := &ConfirmationPoller{Page: page, Clock: clock, Interval: time.Second, Budget: 30 * time.Second}

	c, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if c.Confirmed {
		t.Fatalf("got confirmed by %q", c.Signal)
	}
	if c.Elapsed != 30*time.Second {
		t.Errorf("Elapsed = %v, want the full 30s budget", c.Elapsed)
	}
	if c.Checks != 31 {
		t.Errorf("Checks = %d, want 31 (one per second plus the final check)", c.Checks)
	}
}

func TestPollPageErrorsMeanNoSignal(t *testing.T) {
	clock := newFakeClock()
	page := &fakeConfirmationPage{err: errors.New("navigating"), from: 1}
	p := &ConfirmationPoller{Page: page, Clock: clock, Budget: 5 * time.Second}

	c, err := p.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if c.Confirmed {
		t.Error("page errors must not confirm")
	}
}

func TestPollCancelled(t *testing.T) {
	clock := newFakeClock()
	page := &fakeConfirmationPage{from: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &ConfirmationPoller{Page: page, Clock: clock}

	if _, err := p.Poll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
