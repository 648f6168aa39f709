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
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

var (
	withChromeDP = flag.String("with-chromedp", "", "The url of the remote debugging port")
	siteHost     = flag.String("site-host", "", "Host name the browser uses to reach the fake court site")
)

// fakeCourtSite serves a minimal booking site matching DefaultLocators. The
// wanted interval only appears from the second load of the interval page on.
type fakeCourtSite struct {
	target     int
	intervalsN atomic.Int32
}

func (s *fakeCourtSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	switch r.URL.Path {
	case "/login":
		fmt.Fprint(w, `<html><body>
<form onsubmit="location.href='/home'; return false;">
  <input id="username"><input id="password" type="password">
  <button type="submit">Sign in</button>
</form></body></html>`)
	case "/home":
		fmt.Fprint(w, `<html><body><div class="account-menu">My account</div></body></html>`)
	case "/book":
		day := r.URL.Query().Get("day")
		var b strings.Builder
		b.WriteString(`<html><body><div class="booking-date-picker" onclick="document.querySelector('.date-picker').style.display='table'">Pick a date</div>`)
		b.WriteString(`<table class="date-picker" style="display:none"><tr>`)
		for d := 15; d <= 19; d++ {
			fmt.Fprintf(&b, `<td data-day="%d" onclick="location.href='/book?day=%d'">%d</td>`, d, d, d)
		}
		b.WriteString(`</tr></table>`)
		if day != "" {
			n := s.intervalsN.Add(1)
			b.WriteString(`<div class="booking-intervals">`)
			fmt.Fprintf(&b, `<div class="interval booked" data-start-minutes="%d">taken</div>`, s.target)
			b.WriteString(`<div class="interval" data-start-minutes="bogus" onclick="location.href='/checkout'">broken</div>`)
			if n >= 2 {
				fmt.Fprintf(&b, `<div class="interval" data-start-minutes="%d" onclick="location.href='/checkout'">free</div>`, s.target)
			}
			b.WriteString(`</div>`)
		}
		b.WriteString(`</body></html>`)
		fmt.Fprint(w, b.String())
	case "/checkout":
		fmt.Fprint(w, `<html><body>
<button id="continue-to-payment" onclick="document.getElementById('pay').style.display='block'">Continue</button>
<div id="pay" style="display:none">
  <input id="card-name"><input id="card-number"><input id="card-expiry"><input id="card-cvc">
  <button id="pay-now" onclick="if (confirm('Pay now?')) location.href='/booking/confirmation'">Pay</button>
</div></body></html>`)
	case "/booking/confirmation":
		fmt.Fprint(w, `<html><body><h1>Booking confirmed</h1></body></html>`)
	default:
		http.NotFound(w, r)
	}
}

func TestDriverEndToEnd(t *testing.T) {
	if *withChromeDP == "" {
		t.Skip("--with-chromedp not set")
	}
	site := &fakeCourtSite{target: 18*60 + 30}
	l, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := httptest.NewUnstartedServer(site)
	srv.Listener.Close()
	srv.Listener = l
	srv.Start()
	defer srv.Close()

	baseURL := srv.URL
	if *siteHost != "" {
		_, port, _ := net.SplitHostPort(l.Addr().String())
		baseURL = fmt.Sprintf("http://%s:%s", *siteHost, port)
	}

	cfg := DefaultConfig()
	cfg.Request = validRequest()
	cfg.ChromeURL = *withChromeDP
	cfg.LoginURL = baseURL + "/login"
	cfg.BookingURL = baseURL + "/book"
	cfg.ScreenshotDir = t.TempDir()
	cfg.StepTimeout = 20 * time.Second
	cfg.SearchBudget = 30 * time.Second
	cfg.LookupTimeout = time.Second
	cfg.RetryDelay = 500 * time.Millisecond
	cfg.MinRemaining = time.Second
	cfg.ConfirmBudget = 10 * time.Second

	res := NewDriver(cfg, zaptest.NewLogger(t)).Run(t.Context())
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	if res.Outcome != OutcomeConfirmed {
		t.Fatalf("Outcome = %s, want %s", res.Outcome, OutcomeConfirmed)
	}
	if res.Slot == nil || res.Slot.Attempts < 2 {
		t.Errorf("Slot = %+v, want a match after at least one reload", res.Slot)
	}
	if res.Confirmation == nil || res.Confirmation.Signal != "confirmation" {
		t.Errorf("Confirmation = %+v, want the url marker", res.Confirmation)
	}
	for _, name := range res.Screenshots {
		if _, err := os.Stat(name); err != nil {
			t.Errorf("screenshot %s: %v", name, err)
		}
	}
	if len(res.Screenshots) == 0 {
		t.Error("no screenshots were saved")
	}
}
