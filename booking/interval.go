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
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const minutesPerDay = 24 * 60

// Interval is a bookable time range listed on the booking page.
type Interval struct {
	// Index is the position of the element among all elements matching
	// Locators.AvailableInterval, including the ones that failed to parse.
	Index   int
	Minutes int
	Label   string
}

// Start formats the interval start as HH:MM.
func (iv Interval) Start() string {
	return fmt.Sprintf("%02d:%02d", iv.Minutes/60, iv.Minutes%60)
}

// ParseMinutes decodes the start-time attribute of an interval element.
func ParseMinutes(raw string) (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("malformed interval minutes %q: %w", raw, err)
	}
	if m < 0 || m >= minutesPerDay {
		return 0, fmt.Errorf("interval minutes %d out of range", m)
	}
	return m, nil
}

// ParseIntervals enumerates the not-yet-booked intervals in fragment, which is
// the outer HTML of the interval list. Only descendants of the list element
// are matched, in document order, so Index lines up with querySelectorAll on
// the live list. Elements with a missing or malformed minutes attribute are
// skipped.
func ParseIntervals(fragment string, loc Locators) ([]Interval, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), fragmentContext(fragment))
	if err != nil {
		return nil, fmt.Errorf("html.ParseFragment: %w", err)
	}
	var list *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			list = n
			break
		}
	}
	if list == nil {
		return nil, nil
	}
	var out []Interval
	goquery.NewDocumentFromNode(list).Find(loc.AvailableInterval).Each(func(i int, s *goquery.Selection) {
		raw, ok := s.Attr(loc.MinutesAttr)
		if !ok {
			return
		}
		m, err := ParseMinutes(raw)
		if err != nil {
			return
		}
		out = append(out, Interval{
			Index:   i,
			Minutes: m,
			Label:   strings.Join(strings.Fields(s.Text()), " "),
		})
	})
	return out, nil
}

// fragmentContext picks the parent element the HTML parser needs to keep the
// fragment's leading tag. Table parts are dropped when parsed under <body>.
func fragmentContext(fragment string) *html.Node {
	tag := strings.TrimLeft(strings.TrimSpace(fragment), "<")
	if i := strings.IndexFunc(tag, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}); i >= 0 {
		tag = tag[:i]
	}
	var parent atom.Atom
	switch atom.Lookup([]byte(strings.ToLower(tag))) {
	case atom.Tbody, atom.Thead, atom.Tfoot, atom.Caption, atom.Colgroup:
		parent = atom.Table
	case atom.Tr:
		parent = atom.Tbody
	case atom.Td, atom.Th:
		parent = atom.Tr
	case atom.Col:
		parent = atom.Colgroup
	case atom.Option, atom.Optgroup:
		parent = atom.Select
	default:
		parent = atom.Body
	}
	return &html.Node{Type: html.ElementNode, DataAtom: parent, Data: parent.String()}
}

// FindInterval returns the first interval starting exactly at target.
func FindInterval(intervals []Interval, target int) (Interval, bool) {
	for _, iv := range intervals {
		if iv.Minutes == target {
			return iv, true
		}
	}
	return Interval{}, false
}
