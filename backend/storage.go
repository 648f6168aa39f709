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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
)

// ErrMasterKeyRequired is returned when the data dir holds an encryption key
// but no passphrase was given.
var ErrMasterKeyRequired = errors.New("master.key exists but no passphrase was provided")

// OpenStorage opens the run history storage under dataDir. With an empty
// passphrase the data is stored unencrypted and encrypted is false. When
// create is set a missing master key is generated and saved.
func OpenStorage(dataDir, passphrase string, create bool) (s *storage.Storage, encrypted bool, err error) {
	keyFile := filepath.Join(dataDir, "master.key")
	if passphrase == "" {
		if _, err := os.Stat(keyFile); err == nil {
			return nil, false, fmt.Errorf("%s: %w", keyFile, ErrMasterKeyRequired)
		}
		s = storage.New(dataDir, nil)
		s.EnableCompression(true)
		return s, false, nil
	}

	masterKey, err := crypto.ReadMasterKey([]byte(passphrase), keyFile)
	if err != nil {
		if !os.IsNotExist(err) || !create {
			return nil, false, fmt.Errorf("reading master key: %w", err)
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, false, fmt.Errorf("creating data dir: %w", err)
		}
		if masterKey, err = crypto.CreateMasterKey(); err != nil {
			return nil, false, fmt.Errorf("creating master key: %w", err)
		}
		if err := masterKey.Save([]byte(passphrase), keyFile); err != nil {
			return nil, false, fmt.Errorf("saving master key: %w", err)
		}
	}
	s = storage.New(dataDir, masterKey)
	s.EnableCompression(true)
	return s, true, nil
}
