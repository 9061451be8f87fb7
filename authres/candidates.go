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

package authres

import (
	"sort"
	"strings"
)

// Candidates is the account's learned set of trusted authserv-ids,
// persisted as the space-separated scalar the data model calls for.
type Candidates []string

// ParseCandidates reads the persisted space-separated scalar.
func ParseCandidates(s string) Candidates {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return Candidates(fields)
}

// String renders the candidate set back to its persisted form.
func (c Candidates) String() string {
	return strings.Join([]string(c), " ")
}

// Learn folds one message's observed authserv-ids into the stored
// candidate set: an empty results map teaches nothing; an empty stored set
// is seeded from the observation; otherwise the new set is the
// intersection, so a provider that rotates its authserv-id causes the set
// to empty out and reseed from the next message.
func (c Candidates) Learn(v Verdicts) Candidates {
	if len(v) == 0 {
		return c
	}
	observed := make([]string, 0, len(v))
	for id := range v {
		observed = append(observed, id)
	}
	sort.Strings(observed)

	if len(c) == 0 {
		return Candidates(observed)
	}
	observedSet := make(map[string]bool, len(observed))
	for _, id := range observed {
		observedSet[id] = true
	}
	var out Candidates
	for _, id := range c {
		if observedSet[id] {
			out = append(out, id)
		}
	}
	return out
}
