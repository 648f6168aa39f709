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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRequest is returned when the booking request read from the
// environment cannot be used.
var ErrInvalidRequest = errors.New("invalid booking request")

// Payment holds the card details typed into the payment form.
type Payment struct {
	CardName   string `mapstructure:"card_name"`
	CardNumber string `mapstructure:"card_number"`
	CardExpiry string `mapstructure:"card_expiry"`
	CardCVC    string `mapstructure:"card_cvc"`
}

// MaskedNumber returns the card number with all but the last four digits hidden.
func (p Payment) MaskedNumber() string {
	digits := strings.ReplaceAll(p.CardNumber, " ", "")
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// Request is the booking target for a single run. It is read once at startup
// and never modified afterwards.
type Request struct {
	Username string `mapstructure:"booking_username"`
	Password string `mapstructure:"booking_password"`
	// Date is either a day of the month ("17") or a full date ("2026-10-17").
	Date   string `mapstructure:"booking_date"`
	Hour   int    `mapstructure:"booking_hour"`
	Minute int    `mapstructure:"booking_minute"`

	Payment Payment `mapstructure:",squash"`
}

// Validate checks that every field needed by the driver is present and in range.
func (r Request) Validate() error {
	var problems []string
	if r.Username == "" {
		problems = append(problems, "username is required")
	}
	if r.Password == "" {
		problems = append(problems, "password is required")
	}
	if _, err := r.Day(); err != nil {
		problems = append(problems, err.Error())
	}
	if r.Hour < 0 || r.Hour > 23 {
		problems = append(problems, fmt.Sprintf("hour %d out of range", r.Hour))
	}
	if r.Minute < 0 || r.Minute > 59 {
		problems = append(problems, fmt.Sprintf("minute %d out of range", r.Minute))
	}
	if r.Payment.CardNumber == "" {
		problems = append(problems, "card number is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

// Day returns the day of the month to click in the date picker.
func (r Request) Day() (int, error) {
	date := strings.TrimSpace(r.Date)
	if date == "" {
		return 0, errors.New("date is required")
	}
	if t, err := time.Parse(time.DateOnly, date); err == nil {
		return t.Day(), nil
	}
	day, err := strconv.Atoi(date)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("date %q is neither a day of month nor YYYY-MM-DD", r.Date)
	}
	return day, nil
}

// TargetMinutes is the requested start time in minutes past midnight.
func (r Request) TargetMinutes() int {
	return r.Hour*60 + r.Minute
}

// TargetTime formats the requested start time as HH:MM.
func (r Request) TargetTime() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}
