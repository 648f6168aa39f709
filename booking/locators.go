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
	"strconv"
	"strings"
)

// Locators is the table of CSS selectors used to drive the booking site.
// The site's markup changes without notice, so every selector can be
// overridden from configuration.
//
// TargetInterval may contain {minutes}; DayCell may contain {day}.
type Locators struct {
	LoginUsername string `mapstructure:"login_username"`
	LoginPassword string `mapstructure:"login_password"`
	LoginSubmit   string `mapstructure:"login_submit"`
	LoggedIn      string `mapstructure:"logged_in"`

	DatePicker string `mapstructure:"date_picker"`
	DayCell    string `mapstructure:"day_cell"`

	IntervalList      string `mapstructure:"interval_list"`
	TargetInterval    string `mapstructure:"target_interval"`
	AvailableInterval string `mapstructure:"available_interval"`
	MinutesAttr       string `mapstructure:"minutes_attr"`

	ContinueButton string `mapstructure:"continue_button"`
	CardName       string `mapstructure:"card_name"`
	CardNumber     string `mapstructure:"card_number"`
	CardExpiry     string `mapstructure:"card_expiry"`
	CardCVC        string `mapstructure:"card_cvc"`
	PayButton      string `mapstructure:"pay_button"`
}

// DefaultLocators returns the selectors matching the current booking site.
func DefaultLocators() Locators {
	return Locators{
		LoginUsername: `#username`,
		LoginPassword: `#password`,
		LoginSubmit:   `button[type="submit"]`,
		LoggedIn:      `.account-menu`,

		DatePicker: `.booking-date-picker`,
		DayCell:    `.date-picker td[data-day="{day}"]:not(.disabled)`,

		IntervalList:      `.booking-intervals`,
		TargetInterval:    `.interval[data-start-minutes="{minutes}"]:not(.booked)`,
		AvailableInterval: `.interval:not(.booked)`,
		MinutesAttr:       `data-start-minutes`,

		ContinueButton: `#continue-to-payment`,
		CardName:       `#card-name`,
		CardNumber:     `#card-number`,
		CardExpiry:     `#card-expiry`,
		CardCVC:        `#card-cvc`,
		PayButton:      `#pay-now`,
	}
}

// TargetSelector returns the selector for the interval starting at minutes.
func (l Locators) TargetSelector(minutes int) string {
	return strings.ReplaceAll(l.TargetInterval, "{minutes}", strconv.Itoa(minutes))
}

// DaySelector returns the selector for the date picker cell of day.
func (l Locators) DaySelector(day int) string {
	return strings.ReplaceAll(l.DayCell, "{day}", strconv.Itoa(day))
}
