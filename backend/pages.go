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

package backend

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type indexPage struct {
	DriverPath string
	Timeout    time.Duration
}

type resultPage struct {
	RunID    string
	ExitCode int
	TimedOut bool
	Timeout  time.Duration
	Error    string
	Duration time.Duration
	Output   string
}

func newResultPage(rec *RunRecord, timeout time.Duration) resultPage {
	return resultPage{
		RunID:    rec.ID,
		ExitCode: rec.ExitCode,
		TimedOut: rec.TimedOut,
		Timeout:  timeout,
		Error:    rec.Error,
		Duration: (time.Duration(rec.DurationMS) * time.Millisecond).Round(time.Millisecond),
		Output:   rec.Output,
	}
}

// status maps the run to an HTTP status. A non-zero driver exit code is
// still a 200.
func (p resultPage) status() int {
	switch {
	case p.TimedOut:
		return http.StatusGatewayTimeout
	case p.Error != "":
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
