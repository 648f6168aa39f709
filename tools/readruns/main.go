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

// readruns prints run history records, decrypting them when
// COURTBOT_MASTER_KEY is set.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ttbt-io/courtbot/backend"
)

var (
	dataDir = flag.String("data-dir", "data", "Directory for run history")
	limit   = flag.Int("n", 20, "Number of runs to list when no ids are given")
	summary = flag.Bool("summary", false, "Omit run output")
)

func main() {
	flag.Parse()
	store, _, err := backend.OpenStorage(*dataDir, os.Getenv("COURTBOT_MASTER_KEY"), false)
	if err != nil {
		log.Fatalf("Opening storage: %v", err)
	}
	runs := backend.NewRunStore(*dataDir, store, nil)

	ids := flag.Args()
	if len(ids) == 0 {
		list, _, err := runs.ListRuns(*limit, 0)
		if err != nil {
			log.Fatalf("Listing runs: %v", err)
		}
		for _, r := range list {
			ids = append(ids, r.ID)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, arg := range ids {
		id := strings.TrimSuffix(filepath.Base(arg), ".json")
		rec, err := runs.LoadRun(id)
		if err != nil {
			log.Printf("%s: %v", id, err)
			continue
		}
		if *summary {
			rec.Output = ""
		}
		fmt.Printf("=========== %s ===========\n", id)
		if err := enc.Encode(rec); err != nil {
			log.Printf("JSON: %s: %v", id, err)
		}
	}
}
