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

package peerstate

import (
	"sync"

	"chatcrypt/fingerprint"
	"chatcrypt/store"
	"chatcrypt/util"
)

// Registry is the per-account collection of Peerstates, backed by a
// store.Store[Peerstate] and serialising updates per-address: concurrent
// updates to different addresses may interleave freely, but "apply event
// -> recompute fingerprint -> save" for a single address always runs under
// that address's own logical lock, never the whole registry's.
type Registry struct {
	st    *store.Store[Peerstate]
	locks *util.Map[string, *sync.Mutex]
}

// NewRegistry wraps backend as a Peerstate registry.
func NewRegistry(backend store.Backend) *Registry {
	return &Registry{
		st:    store.New[Peerstate](backend),
		locks: util.NewMap[string, *sync.Mutex](),
	}
}

// Get loads the peerstate for addr, if one exists. addr is expected
// lowercased by the caller (the trust gate normalises From: addresses
// before any registry call).
func (r *Registry) Get(addr string) (Peerstate, bool, error) {
	return r.st.Get(addr)
}

// ConsumeDegradeEvent reads and clears the pending degrade event for addr,
// so the caller's "render exactly once" obligation is satisfied even if it
// is itself retried.
func (r *Registry) ConsumeDegradeEvent(addr string) (DegradeEvent, error) {
	var ev DegradeEvent
	err := r.withLock(addr, func(ps *Peerstate) error {
		ev = ps.DegradeEvent
		ps.DegradeEvent = DegradeNone
		ps.ToSave = SaveNone
		return nil
	})
	return ev, err
}

// lockFor returns the per-address mutex, creating it on first use. The
// create-if-absent check runs inside locks.Process so two goroutines racing
// to create the same address's lock cannot each win with a distinct mutex.
func (r *Registry) lockFor(addr string) *sync.Mutex {
	var m *sync.Mutex
	_ = r.locks.Process(func() error {
		if existing, ok := r.locks.Get(addr); ok {
			m = existing
		} else {
			m = new(sync.Mutex)
			r.locks.Put(addr, m)
		}
		return nil
	})
	return m
}

// withLock loads addr's peerstate (or starts a fresh one), runs fn under
// the address's lock, and persists the result — the "apply -> recompute ->
// save" unit of work the concurrency model requires to be atomic per
// address.
func (r *Registry) withLock(addr string, fn func(*Peerstate) error) error {
	lock := r.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	ps, ok, err := r.st.Get(addr)
	if err != nil {
		return err
	}
	if !ok {
		ps = Peerstate{Addr: addr}
	}

	if err := fn(&ps); err != nil {
		return err
	}
	return r.st.Put(addr, ps)
}

// LookupByFingerprint returns the peerstate whose PublicKeyFingerprint
// matches fp, falling back to GossipKeyFingerprint, as required by the
// update algebra's fingerprint-indexed lookups (AEAP, gossip promotion).
// It scans every known address; callers needing this on a hot path should
// keep their own secondary index.
func (r *Registry) LookupByFingerprint(fp fingerprint.Fingerprint) (Peerstate, bool, error) {
	keys, err := r.st.Keys()
	if err != nil {
		return Peerstate{}, false, err
	}
	var gossipMatch *Peerstate
	for _, addr := range keys {
		ps, ok, err := r.st.Get(addr)
		if err != nil {
			return Peerstate{}, false, err
		}
		if !ok {
			continue
		}
		if ps.PublicKeyFingerprint.Equal(fp) {
			return ps, true, nil
		}
		if gossipMatch == nil && ps.GossipKeyFingerprint.Equal(fp) {
			cp := ps
			gossipMatch = &cp
		}
	}
	if gossipMatch != nil {
		return *gossipMatch, true, nil
	}
	return Peerstate{}, false, nil
}

// LookupByVerifiedFingerprint returns the peerstate whose VerifiedKey or
// SecondaryVerifiedKey fingerprint matches fp, the lookup AEAP migration
// needs to find "Q" in invariant 7. A VerifiedKey match on any address is
// preferred over a SecondaryVerifiedKey match.
func (r *Registry) LookupByVerifiedFingerprint(fp fingerprint.Fingerprint) (Peerstate, bool, error) {
	keys, err := r.st.Keys()
	if err != nil {
		return Peerstate{}, false, err
	}
	var secondaryMatch *Peerstate
	for _, addr := range keys {
		ps, ok, err := r.st.Get(addr)
		if err != nil {
			return Peerstate{}, false, err
		}
		if !ok {
			continue
		}
		if !ps.VerifiedKeyFingerprint.IsZero() && ps.VerifiedKeyFingerprint.Equal(fp) {
			return ps, true, nil
		}
		if secondaryMatch == nil && ps.MatchesVerified(fp) {
			cp := ps
			secondaryMatch = &cp
		}
	}
	if secondaryMatch != nil {
		return *secondaryMatch, true, nil
	}
	return Peerstate{}, false, nil
}
