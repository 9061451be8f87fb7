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
	"chatcrypt/autocrypt"
	"chatcrypt/pgpkey"
	"chatcrypt/util"
)

// ApplyAutocryptHeader is update event #1: an Autocrypt header seen from
// addr itself, carried by a message timestamped messageTime.
//
// last_seen_autocrypt is this peer's monotonic clock: a header whose
// message_time does not advance it is ignored outright, which is what
// makes applying H1 then H2 (t1<t2) equivalent to applying H2 alone.
func (r *Registry) ApplyAutocryptHeader(addr string, messageTime util.AbsoluteTime, hdr *autocrypt.Header) error {
	return r.withLock(addr, func(ps *Peerstate) error {
		ps.DegradeEvent = DegradeNone
		ps.FingerprintChanged = false
		if messageTime.Compare(ps.LastSeenAutocrypt) <= 0 {
			return nil
		}
		ps.LastSeen = messageTime
		ps.LastSeenAutocrypt = messageTime
		ps.ToSave = SaveTimestamps

		if hdr.Prefer == autocrypt.Mutual || hdr.Prefer == autocrypt.NoPreference {
			if hdr.Prefer != ps.PreferEncrypt {
				if ps.PreferEncrypt == autocrypt.Mutual && hdr.Prefer != autocrypt.Mutual {
					ps.DegradeEvent = DegradeEncryptionPaused
				}
				ps.PreferEncrypt = hdr.Prefer
				ps.ToSave = SaveAll
			}
		}

		newFP := hdr.Key.Fingerprint()
		if ps.PublicKeyFingerprint.IsZero() || !ps.PublicKeyFingerprint.Equal(newFP) {
			if !ps.PublicKeyFingerprint.IsZero() {
				ps.DegradeEvent = DegradeFingerprintChanged
				ps.FingerprintChanged = true
			}
			raw, err := hdr.Key.PublicKeyBytes()
			if err != nil {
				return err
			}
			ps.PublicKey = raw
			ps.PublicKeyFingerprint = newFP
			ps.ToSave = SaveAll
		}
		return nil
	})
}

// ApplyNoAutocrypt is update event #2: a message from addr that carried no
// Autocrypt header. A peer that had committed to Mutual steps back to
// Reset, which is itself a degrade event the gate must surface.
func (r *Registry) ApplyNoAutocrypt(addr string, messageTime util.AbsoluteTime) error {
	return r.withLock(addr, func(ps *Peerstate) error {
		ps.DegradeEvent = DegradeNone
		ps.FingerprintChanged = false
		if messageTime.Compare(ps.LastSeenAutocrypt) > 0 && ps.PreferEncrypt == autocrypt.Mutual {
			ps.PreferEncrypt = autocrypt.Reset
			ps.DegradeEvent = DegradeEncryptionPaused
			ps.ToSave = SaveAll
		}
		if messageTime.Compare(ps.LastSeen) > 0 {
			ps.LastSeen = messageTime
			if ps.ToSave == SaveNone {
				ps.ToSave = SaveTimestamps
			}
		}
		return nil
	})
}

// ApplyGossip is update event #3: addr was gossipped (by a third party,
// inside a message that decrypted and was signed). Gossip never sets a
// degrade event — it carries no claim about addr's own Autocrypt posture.
func (r *Registry) ApplyGossip(addr string, messageTime util.AbsoluteTime, key *pgpkey.Key) error {
	return r.withLock(addr, func(ps *Peerstate) error {
		if messageTime.Compare(ps.GossipTimestamp) <= 0 {
			return nil
		}
		raw, err := key.PublicKeyBytes()
		if err != nil {
			return err
		}
		ps.GossipKey = raw
		ps.GossipKeyFingerprint = key.Fingerprint()
		ps.GossipTimestamp = messageTime
		ps.ToSave = SaveAll
		return nil
	})
}

// ApplyVerification is update event #4: Secure-Join (or AEAP migration)
// proved key belongs to addr, vouched for by verifierAddr. If a different
// key was already verified for addr, it is demoted to secondary so AEAP
// can still recognise it later under a new address.
func (r *Registry) ApplyVerification(addr string, key *pgpkey.Key, verifierAddr string) error {
	return r.withLock(addr, func(ps *Peerstate) error {
		newFP := key.Fingerprint()
		raw, err := key.PublicKeyBytes()
		if err != nil {
			return err
		}
		if !ps.VerifiedKeyFingerprint.IsZero() && !ps.VerifiedKeyFingerprint.Equal(newFP) {
			ps.SecondaryVerifiedKey = ps.VerifiedKey
			ps.SecondaryVerifiedKeyFingerprint = ps.VerifiedKeyFingerprint
			ps.SecondaryVerifierAddr = ps.VerifierAddr
		}
		ps.VerifiedKey = raw
		ps.VerifiedKeyFingerprint = newFP
		ps.VerifierAddr = verifierAddr
		ps.ToSave = SaveAll
		return nil
	})
}

// MigrateVerification implements the AEAP transition (C12): a message
// signed with Q's verified key arrives under a different From: address.
// The verification is copied onto the new address, preserving the original
// verifier; Q's own record at the old address is left untouched, so a
// later message from the old address is still recognised too.
func (r *Registry) MigrateVerification(oldAddr, newAddr string) error {
	old, ok, err := r.Get(oldAddr)
	if err != nil {
		return err
	}
	if !ok || old.VerifiedKeyFingerprint.IsZero() {
		return nil
	}
	key, err := pgpkey.FromPublicKeyBytes(old.VerifiedKey)
	if err != nil {
		return err
	}
	return r.ApplyVerification(newAddr, key, old.VerifierAddr)
}
