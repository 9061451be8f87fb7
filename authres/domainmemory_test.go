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

import "testing"

func TestDomainMemoryUnseenAllowsKeyChange(t *testing.T) {
	dm := NewDomainMemory()
	// A domain never seen with working DKIM must still allow a key change
	// even when this particular message failed DKIM.
	if !dm.AllowsKeyChange("new.org", false) {
		t.Fatal("unseen domain must allow key change regardless of this message's DKIM verdict")
	}
}

// S-equivalent of invariant 6: once a domain is known to work, a failing
// message from it must not be allowed to mutate the key.
func TestDomainMemoryKnownDomainBlocksFailingKeyChange(t *testing.T) {
	dm := NewDomainMemory()
	dm.Learn("b.org")
	if dm.AllowsKeyChange("b.org", false) {
		t.Fatal("a domain known to work must block a key change on a failing message")
	}
	if !dm.AllowsKeyChange("b.org", true) {
		t.Fatal("a domain known to work must still allow a key change on a passing message")
	}
}

func TestDomainMemoryPersistRoundTrip(t *testing.T) {
	dm := NewDomainMemory()
	dm.Learn("b.org")
	restored := NewDomainMemoryFromBytes(dm.Bytes())
	if !restored.KnownToWork("b.org") {
		t.Fatal("restored domain memory lost a learned domain")
	}
}
