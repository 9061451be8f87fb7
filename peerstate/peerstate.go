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

// Package peerstate is the per-address record of a correspondent's key
// material, encryption preference, and verification status, along with the
// event algebra that keeps it consistent under out-of-order mail delivery.
// Cyclic references to contacts or chats are deliberately absent: callers
// look a Peerstate up by addr or by fingerprint, never hold a back-pointer
// into it.
package peerstate

import (
	"chatcrypt/autocrypt"
	"chatcrypt/fingerprint"
	"chatcrypt/util"
)

// ToSave hints at how much of a Peerstate changed, for callers layering a
// partial-column-update optimisation over the generic JSON store; this
// implementation always persists the full row and treats the hint as
// advisory only.
type ToSave int

const (
	SaveNone ToSave = iota
	SaveTimestamps
	SaveAll
)

// DegradeEvent is a one-shot transition out of a stronger cryptographic
// state. The caller (the inbound trust gate) must consume it exactly once
// by inserting a system message into the peer's 1:1 chat.
type DegradeEvent int

const (
	DegradeNone DegradeEvent = iota
	DegradeEncryptionPaused
	DegradeFingerprintChanged
)

// Peerstate is the per-address trust record described by the data model:
// the keys learned opportunistically, gossipped, or verified through
// Secure-Join, plus the transient flags a single Apply call produces.
//
// Key material is kept as raw (non-armored) OpenPGP public key bytes
// alongside its own fingerprint, not as a live *pgpkey.Key: this keeps the
// type plain-data and JSON-marshalable for the store, and the invariant
// "a fingerprint field is present iff the matching key field is present
// and equal to that key's own fingerprint" is enforced by the Apply*
// methods below, never by a caller poking the fields directly.
type Peerstate struct {
	Addr                string
	LastSeen            util.AbsoluteTime
	LastSeenAutocrypt   util.AbsoluteTime
	PreferEncrypt       autocrypt.Preference

	PublicKey            []byte
	PublicKeyFingerprint fingerprint.Fingerprint

	GossipKey            []byte
	GossipKeyFingerprint fingerprint.Fingerprint
	GossipTimestamp      util.AbsoluteTime

	VerifiedKey            []byte
	VerifiedKeyFingerprint fingerprint.Fingerprint
	VerifierAddr           string

	SecondaryVerifiedKey            []byte
	SecondaryVerifiedKeyFingerprint fingerprint.Fingerprint
	SecondaryVerifierAddr           string

	BackwardVerifiedKeyID string

	// Transient: set by the Apply* calls. They are stored with the row like
	// every other field; ApplyAutocryptHeader and ApplyNoAutocrypt reset
	// DegradeEvent and FingerprintChanged before applying, and
	// ConsumeDegradeEvent clears them once read.
	ToSave             ToSave
	DegradeEvent       DegradeEvent
	FingerprintChanged bool
}

// HasVerifiedKey reports whether this peer has ever been verified through
// Secure-Join. Per the data model, only VerifiedKey may be treated as
// authenticated; PublicKey and GossipKey are opportunistic.
func (p *Peerstate) HasVerifiedKey() bool {
	return !p.VerifiedKeyFingerprint.IsZero()
}

// MatchesVerified reports whether fp equals this peer's verified (primary
// or secondary) fingerprint — the check AEAP propagation and gossip
// promotion both need.
func (p *Peerstate) MatchesVerified(fp fingerprint.Fingerprint) bool {
	return (!p.VerifiedKeyFingerprint.IsZero() && p.VerifiedKeyFingerprint.Equal(fp)) ||
		(!p.SecondaryVerifiedKeyFingerprint.IsZero() && p.SecondaryVerifiedKeyFingerprint.Equal(fp))
}
