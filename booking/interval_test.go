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
	"math/rand"
	"testing"
)

const intervalPage = `
<div class="booking-intervals">
  <div class="interval booked" data-start-minutes="540">09:00 Court 1</div>
  <div class="interval" data-start-minutes="570">09:30 Court 1</div>
  <div class="interval" data-start-minutes="ten">10:00 Court 1</div>
  <div class="interval" data-start-minutes="">10:00 Court 2</div>
  <div class="interval">10:00 Court 3</div>
  <div class="interval" data-start-minutes=" 600 ">10:00
      Court 4</div>
  <div class="interval" data-start-minutes="1440">24:00 Court 1</div>
  <div class="interval" data-start-minutes="600">10:00 Court 5</div>
</div>`

func TestParseIntervals(t *testing.T) {
	got, err := ParseIntervals(intervalPage, DefaultLocators())
	if err != nil {
		t.Fatalf("ParseIntervals: %v", err)
	}
	want := []Interval{
		{Index: 0, Minutes: 570, Label: "09:30 Court 1"},
		{Index: 4, Minutes: 600, Label: "10:00 Court 4"},
		{Index: 6, Minutes: 600, Label: "10:00 Court 5"},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseIntervals returned %d intervals, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("interval %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseIntervalsCustomLocators(t *testing.T) {
	loc := DefaultLocators()
	loc.AvailableInterval = `li.slot.free`
	loc.MinutesAttr = `data-min`
	html := `<ul><li class="slot" data-min="600">taken</li><li class="slot free" data-min="600">free</li></ul>`

	got, err := ParseIntervals(html, loc)
	if err != nil {
		t.Fatalf("ParseIntervals: %v", err)
	}
	if len(got) != 1 || got[0].Index != 0 || got[0].Minutes != 600 {
		t.Errorf("got %+v, want the single free slot", got)
	}
}

func TestParseIntervalsTableRows(t *testing.T) {
	loc := DefaultLocators()
	loc.AvailableInterval = `td.free`
	tests := []struct {
		name     string
		fragment string
		want     []Interval
	}{
		{
			name: "tbody",
			fragment: `<tbody>
  <tr><td class="booked" data-start-minutes="570">09:30</td><td class="free" data-start-minutes="600">10:00</td></tr>
  <tr><td class="free" data-start-minutes="x">10:30</td><td class="free" data-start-minutes="660">11:00</td></tr>
</tbody>`,
			want: []Interval{
				{Index: 0, Minutes: 600, Label: "10:00"},
				{Index: 2, Minutes: 660, Label: "11:00"},
			},
		},
		{
			name:     "tr",
			fragment: `<tr><td class="free" data-start-minutes="600">10:00</td><td class="free" data-start-minutes="630">10:30</td></tr>`,
			want: []Interval{
				{Index: 0, Minutes: 600, Label: "10:00"},
				{Index: 1, Minutes: 630, Label: "10:30"},
			},
		},
		{
			name:     "table",
			fragment: `<table class="booking-intervals"><tr><td class="free" data-start-minutes="600">10:00</td></tr></table>`,
			want:     []Interval{{Index: 0, Minutes: 600, Label: "10:00"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseIntervals(tc.fragment, loc)
			if err != nil {
				t.Fatalf("ParseIntervals: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("interval %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestParseIntervalsSkipsListElement(t *testing.T) {
	loc := DefaultLocators()
	loc.AvailableInterval = `[data-start-minutes]`
	// The list itself carries the attribute but querySelectorAll on the list
	// only sees its descendants.
	fragment := `<div class="booking-intervals" data-start-minutes="0"><div data-start-minutes="600">10:00</div></div>`

	got, err := ParseIntervals(fragment, loc)
	if err != nil {
		t.Fatalf("ParseIntervals: %v", err)
	}
	if len(got) != 1 || got[0].Index != 0 || got[0].Minutes != 600 {
		t.Errorf("got %+v, want only the child interval", got)
	}
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "0", want: 0},
		{raw: "1439", want: 1439},
		{raw: " 630\n", want: 630},
		{raw: "1440", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "10:30", wantErr: true},
		{raw: "630.0", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseMinutes(tc.raw)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMinutes(%q) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseMinutes(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestFindInterval(t *testing.T) {
	intervals := []Interval{
		{Index: 0, Minutes: 540},
		{Index: 1, Minutes: 600},
		{Index: 2, Minutes: 600},
	}
	if iv, ok := FindInterval(intervals, 600); !ok || iv.Index != 1 {
		t.Errorf("FindInterval(600) = %+v, %v; want the first match", iv, ok)
	}
	if _, ok := FindInterval(intervals, 630); ok {
		t.Error("FindInterval(630) found a match in a list without one")
	}
	if _, ok := FindInterval(nil, 0); ok {
		t.Error("FindInterval on an empty list found a match")
	}
}

func TestFindIntervalRandomLists(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for round := 0; round < 500; round++ {
		n := r.Intn(20)
		intervals := make([]Interval, n)
		for i := range intervals {
			intervals[i] = Interval{Index: i, Minutes: r.Intn(48) * 30}
		}
		target := r.Intn(48) * 30

		iv, ok := FindInterval(intervals, target)
		first := -1
		for i, c := range intervals {
			if c.Minutes == target {
				first = i
				break
			}
		}
		if (first >= 0) != ok {
			t.Fatalf("round %d: found=%v, want %v", round, ok, first >= 0)
		}
		if ok && iv.Index != first {
			t.Fatalf("round %d: got index %d, want first match %d", round, iv.Index, first)
		}
	}
}

func TestIntervalStart(t *testing.T) {
	if got := (Interval{Minutes: 605}).Start(); got != "10:05" {
		t.Errorf("Start() = %q, want 10:05", got)
	}
}

func FuzzParseIntervals(f *testing.F) {
	f.Add(intervalPage)
	f.Add(`<div class="interval" data-start-minutes="99999999999999999999">x</div>`)
	f.Add(`not html at all <<<`)
	f.Fuzz(func(t *testing.T, html string) {
		got, err := ParseIntervals(html, DefaultLocators())
		if err != nil {
			return
		}
		for _, iv := range got {
			if iv.Minutes < 0 || iv.Minutes >= minutesPerDay {
				t.Fatalf("out of range interval %+v", iv)
			}
		}
	})
}
