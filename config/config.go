// This file is part of chatcrypt, a cryptographic trust and messaging
// protocol core for an email-transported end-to-end-encrypted chat client.
// Copyright (C) 2026
//
// chatcrypt is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// chatcrypt is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// Package config reads the JSON configuration for one or more
// chatcrypt-managed accounts: where an account's own secret key lives,
// which store.Backend specs back its peerstates/tokens/domain memory, and
// the authserv-id candidate seed the DKIM evaluator starts from.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/bfix/gospel/logger"
)

// Error codes
var (
	ErrNoSuchAccount = errors.New("config: no account with that address")
)

// Environ is the set of "${VAR}" substitutions applied to every string
// field in Config after it is parsed, the pattern carried over from the
// teacher's config loader.
type Environ map[string]string

// AccountConfig holds everything one account's trust core needs to start:
// its identity, its own secret key, and the store.Backend specs (see
// store.OpenBackend) for each of the three tables §6 "Persisted state"
// describes.
type AccountConfig struct {
	Addr string `json:"addr"`

	// SecretKeyPath is a filesystem path to the account's own armored
	// OpenPGP secret key. Loading and decrypting it is the caller's job;
	// this package only carries the path.
	SecretKeyPath string `json:"secretKeyPath"`

	PeerstateStore    string `json:"peerstateStore"`
	TokenStore        string `json:"tokenStore"`
	DomainMemoryStore string `json:"domainMemoryStore"`

	// AuthservIDCandidates seeds authres.Candidates before the account has
	// observed any Authentication-Results headers of its own. Most
	// deployments leave this empty and let §4.4's learning process seed it
	// from the first incoming message.
	AuthservIDCandidates []string `json:"authservIdCandidates"`
}

// Config is the top-level configuration file: a set of accounts sharing
// one environment-substitution table.
type Config struct {
	Env      Environ          `json:"environ"`
	Accounts []*AccountConfig `json:"accounts"`
}

// Cfg is the process-wide configuration, set by ParseConfig. cmd/chatcryptd
// is the only caller expected to use the global; library code should take a
// *Config or *AccountConfig as an explicit argument.
var Cfg *Config

// ParseConfig reads fileName, applies environment substitutions, and
// installs the result as Cfg.
func ParseConfig(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}
	cfg, err := ParseConfigBytes(data)
	if err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

// ParseConfigBytes parses a JSON configuration document and applies
// environment substitutions, without touching the process-wide Cfg.
func ParseConfigBytes(data []byte) (*Config, error) {
	cfg := new(Config)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applySubstitutions(cfg, cfg.Env)
	return cfg, nil
}

// Account looks up the account configuration for addr (case-insensitive).
func (c *Config) Account(addr string) (*AccountConfig, bool) {
	addr = strings.ToLower(addr)
	for _, acct := range c.Accounts {
		if strings.ToLower(acct.Addr) == addr {
			return acct, true
		}
	}
	return nil, false
}

var rx = regexp.MustCompile(`\$\{([^\}]*)\}`)

// substString replaces every "${NAME}" occurrence in s with env["NAME"],
// leaving unknown names untouched.
func substString(s string, env map[string]string) string {
	matches := rx.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		if len(m[1]) == 0 {
			continue
		}
		subst, ok := env[m[1]]
		if !ok {
			continue
		}
		s = strings.ReplaceAll(s, "${"+m[1]+"}", subst)
	}
	return s
}

// applySubstitutions walks x (a struct, pointer, or slice of either) and
// applies substString to every settable string field, repeating until a
// pass produces no change (so "${A}" expanding to another "${B}" still
// resolves).
func applySubstitutions(x interface{}, env map[string]string) {
	var process func(v reflect.Value)
	process = func(v reflect.Value) {
		switch v.Kind() {
		case reflect.Ptr:
			if v.IsNil() {
				return
			}
			process(v.Elem())
			return
		case reflect.Slice:
			for i := 0; i < v.Len(); i++ {
				process(v.Index(i))
			}
			return
		case reflect.Struct:
			// fallthrough to field loop below
		default:
			return
		}
		for i := 0; i < v.NumField(); i++ {
			fld := v.Field(i)
			if !fld.CanSet() {
				continue
			}
			switch fld.Kind() {
			case reflect.String:
				s := fld.String()
				for {
					s1 := substString(s, env)
					if s1 == s {
						break
					}
					logger.Printf(logger.DBG, "[config] %s --> %s\n", s, s1)
					s = s1
				}
				fld.SetString(s)

			case reflect.Slice:
				process(fld)

			case reflect.Struct, reflect.Ptr:
				process(fld)
			}
		}
	}

	v := reflect.ValueOf(x)
	process(v)
}
