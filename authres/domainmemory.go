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
	"strings"
	"sync"

	"chatcrypt/util"
)

// domainBloomBytes sizes the "DKIM known to work" filter; an account's
// correspondent-domain count is small enough that this comfortably keeps
// the false-positive rate low over the life of an account.
const domainBloomBytes = 4096

// DomainMemory is the "sending-domain known to support DKIM" set: an
// insert-only membership test used as the anti-rollback criterion in
// §4.4. A false positive only makes the gate marginally stricter (it would
// refuse a key change that was in fact legitimate); a false negative never
// happens, so the security property the gate relies on is preserved.
type DomainMemory struct {
	mtx sync.Mutex
	bf  *util.BloomFilter
}

// NewDomainMemory creates an empty domain memory.
func NewDomainMemory() *DomainMemory {
	return &DomainMemory{bf: util.NewBloomFilter(domainBloomBytes)}
}

// NewDomainMemoryFromBytes restores a previously persisted filter.
func NewDomainMemoryFromBytes(data []byte) *DomainMemory {
	return &DomainMemory{bf: util.NewBloomFilterFromBytes(data, 0)}
}

// Bytes returns the filter's binary representation for persistence.
func (d *DomainMemory) Bytes() []byte {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.bf.Bits
}

// Learn records that domain produced at least one DKIM-trusted message.
func (d *DomainMemory) Learn(domain string) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.bf.Add([]byte(strings.ToLower(domain)))
}

// KnownToWork reports whether domain has previously produced a
// DKIM-trusted message.
func (d *DomainMemory) KnownToWork(domain string) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.bf.Contains([]byte(strings.ToLower(domain)))
}

// AllowsKeyChange is the §4.4/§4.8 key-change gate: given this message's
// DKIM trust outcome and its sending domain, decide whether an incoming
// Autocrypt key change may be applied. A domain not yet known to support
// DKIM gets the benefit of the doubt; one that does must prove DKIM-trust
// on every message that wants to change the key.
func (d *DomainMemory) AllowsKeyChange(domain string, trusted bool) bool {
	if trusted {
		d.Learn(domain)
		return true
	}
	return !d.KnownToWork(domain)
}
