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

// Package eventbus is how the trust core tells a UI what just happened: a
// typed Event is emitted rather than a callback invoked, and listeners
// subscribe with a filter over the event IDs (and, for Secure-Join, the
// chat they concern).
package eventbus

// Event IDs.
const (
	EvDegradeEncryptionPaused = iota // peer stepped back from Mutual
	EvDegradeFingerprintChanged      // peer's Autocrypt key changed
	EvKeyChangeInfo                  // Autocrypt key change rejected (see Reason field)
	EvSecurejoinProgress              // Secure-Join progress update (see Progress field)
	EvSecurejoinError                 // Secure-Join terminated with a reason
	EvChatProtectionBroken             // protected chat downgraded
	EvChatProtectionRestored           // protection restored after re-verification
)

// Event is the value delivered to listeners. Not every field is populated
// for every ID; see the EvXxx constant's doc comment for which fields apply.
type Event struct {
	ID       int
	Addr     string // peer address the event concerns
	ChatID   int64  // chat the event concerns, 0 if not chat-scoped
	Progress int    // EvSecurejoinProgress: one of {300,400,600,800,1000}
	Reason   string // EvSecurejoinError, EvKeyChangeInfo: human-readable reason
}

// Filter restricts which events a Listener receives. A filter with no IDs
// added matches everything.
type Filter struct {
	ids map[int]bool
}

// NewFilter creates an empty (match-everything) filter.
func NewFilter() *Filter {
	return &Filter{ids: make(map[int]bool)}
}

// Add restricts the filter to additionally match id.
func (f *Filter) Add(id int) {
	f.ids[id] = true
}

// Matches reports whether ev passes the filter.
func (f *Filter) Matches(ev *Event) bool {
	if len(f.ids) == 0 {
		return true
	}
	return f.ids[ev.ID]
}
