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

package trust

import (
	"strings"

	"github.com/bfix/gospel/logger"

	"chatcrypt/authres"
	"chatcrypt/autocrypt"
	"chatcrypt/decrypt"
	"chatcrypt/eventbus"
	"chatcrypt/fingerprint"
	"chatcrypt/peerstate"
	"chatcrypt/util"
)

// Gate is the inbound trust decision point (C10): every received message,
// once merged into a MimeMessage, passes through Process before its
// plaintext is handed to the UI. It owns no transport or storage concerns
// of its own beyond the three registries it is handed.
type Gate struct {
	Peerstates *peerstate.Registry
	Chats      *ChatRegistry
	Domains    *authres.DomainMemory
	Bus        *eventbus.Bus
}

// Process runs a received message through every §4.8 admission step in
// order: chat protection check, Autocrypt key-change admission, AEAP
// migration, gossip ingestion, gossip-to-verified promotion, and protection
// restoration. It returns the account's updated DKIM authserv-id candidate
// set, which the caller is responsible for persisting.
func (g *Gate) Process(msg *MimeMessage, inner *decrypt.Part, chatID int64, candidates authres.Candidates, headerValues []string, messageTime util.AbsoluteTime) (authres.Candidates, error) {
	domain := domainOf(msg.From)
	verdicts := authres.Evaluate(headerValues, domain)
	updated := candidates.Learn(verdicts)

	if err := g.checkProtection(msg, chatID); err != nil {
		return updated, err
	}
	if err := g.admitAutocrypt(msg, domain, verdicts, updated, messageTime); err != nil {
		return updated, err
	}
	if err := g.aeapTransition(msg); err != nil {
		return updated, err
	}
	if err := IngestGossip(g.Peerstates, msg, inner, messageTime); err != nil {
		return updated, err
	}
	if err := g.promoteGossipToVerified(msg, inner); err != nil {
		return updated, err
	}
	if err := g.restoreProtection(msg, chatID); err != nil {
		return updated, err
	}
	if err := g.emitDegradeEvent(msg.From); err != nil {
		return updated, err
	}
	return updated, nil
}

// checkProtection enforces the one-way downgrade: a Protected chat that
// receives a message not both encrypted and signed by the sender's verified
// key falls to ProtectionBroken and the UI is told.
func (g *Gate) checkProtection(msg *MimeMessage, chatID int64) error {
	cs, err := g.Chats.Get(chatID)
	if err != nil {
		return err
	}
	if cs.Status != Protected {
		return nil
	}
	ps, ok, err := g.Peerstates.Get(msg.From)
	if err != nil {
		return err
	}
	ok = ok && msg.Decrypted && ps.HasVerifiedKey() && containsFingerprint(msg.Signers, ps.VerifiedKeyFingerprint)
	if ok {
		return nil
	}
	if err := g.Chats.SetStatus(chatID, ProtectionBroken); err != nil {
		return err
	}
	g.Bus.Emit(&eventbus.Event{ID: eventbus.EvChatProtectionBroken, ChatID: chatID, Addr: msg.From})
	return nil
}

// admitAutocrypt applies the message's Autocrypt header (or its absence) to
// the sender's peerstate, refusing a key change when the sending domain is
// known to support DKIM and this message failed it — the anti-rollback
// property of §4.4. The candidates set passed in must already reflect this
// message's own learning (Process computes it before calling here), so a
// domain seen trustworthy for the first time this very message is honoured
// immediately.
func (g *Gate) admitAutocrypt(msg *MimeMessage, domain string, verdicts authres.Verdicts, candidates authres.Candidates, messageTime util.AbsoluteTime) error {
	raw, hasHeader := msg.Header["autocrypt"]
	if !hasHeader {
		return g.Peerstates.ApplyNoAutocrypt(msg.From, messageTime)
	}
	hdr, err := autocrypt.Parse(raw)
	if err != nil {
		logger.Printf(logger.WARN, "[trust] ignoring malformed Autocrypt header from %s: %v", msg.From, err)
		return nil
	}

	trusted := authres.DKIMTrusted(verdicts, candidates)
	allowed := g.Domains.AllowsKeyChange(domain, trusted)

	ps, exists, err := g.Peerstates.Get(msg.From)
	if err != nil {
		return err
	}
	keyChanging := exists && !ps.PublicKeyFingerprint.IsZero() && !ps.PublicKeyFingerprint.Equal(hdr.Key.Fingerprint())
	if keyChanging && !allowed {
		logger.Printf(logger.WARN, "[trust] rejecting Autocrypt key change from %s: domain %s known to support DKIM but this message failed it", msg.From, domain)
		g.Bus.Emit(&eventbus.Event{ID: eventbus.EvKeyChangeInfo, Addr: msg.From, Reason: "key change rejected: DKIM failed for a domain known to support it"})
		return nil
	}
	return g.Peerstates.ApplyAutocryptHeader(msg.From, messageTime, hdr)
}

// aeapTransition implements invariant 7: a message that decrypted and
// verified against some peerstate Q's verified (or secondary-verified) key,
// but arrived under an address other than Q's own, migrates Q's
// verification onto the new address.
func (g *Gate) aeapTransition(msg *MimeMessage) error {
	if !msg.Decrypted {
		return nil
	}
	for _, signerFP := range msg.Signers {
		q, ok, err := g.Peerstates.LookupByVerifiedFingerprint(signerFP)
		if err != nil {
			return err
		}
		if !ok || q.Addr == msg.From {
			continue
		}
		return g.Peerstates.MigrateVerification(q.Addr, msg.From)
	}
	return nil
}

// promoteGossipToVerified handles the case in §4.3 where a recipient is
// gossipped a key for an address that this same verifier has already
// verified before: rather than demoting to a mere opportunistic gossip key,
// the gossipped key is promoted straight to verified, since the verifier
// vouching for it once already vouches for it again.
func (g *Gate) promoteGossipToVerified(msg *MimeMessage, inner *decrypt.Part) error {
	if !msg.Decrypted || inner == nil || len(msg.Signers) == 0 {
		return nil
	}
	verifierAddr := ""
	for _, fp := range msg.Signers {
		ps, ok, err := g.Peerstates.LookupByVerifiedFingerprint(fp)
		if err != nil {
			return err
		}
		if ok {
			verifierAddr = ps.Addr
			break
		}
	}
	if verifierAddr == "" {
		return nil
	}

	recipients := make(map[string]bool, len(msg.Recipients))
	for _, r := range msg.Recipients {
		recipients[r] = true
	}
	for _, raw := range inner.HeaderAll["autocrypt-gossip"] {
		hdr, err := autocrypt.Parse(raw)
		if err != nil || !recipients[hdr.Addr] {
			continue
		}
		target, ok, err := g.Peerstates.Get(hdr.Addr)
		if err != nil {
			return err
		}
		if !ok || target.VerifierAddr != verifierAddr || !target.HasVerifiedKey() {
			continue
		}
		if target.VerifiedKeyFingerprint.Equal(hdr.Key.Fingerprint()) {
			continue
		}
		if err := g.Peerstates.ApplyVerification(hdr.Addr, hdr.Key, verifierAddr); err != nil {
			return err
		}
	}
	return nil
}

// restoreProtection lifts a chat back out of ProtectionBroken once the
// sender's peerstate shows Mutual preference with its current Autocrypt
// key matching its verified key again.
func (g *Gate) restoreProtection(msg *MimeMessage, chatID int64) error {
	ps, ok, err := g.Peerstates.Get(msg.From)
	if err != nil || !ok {
		return err
	}
	if ps.PreferEncrypt != autocrypt.Mutual || !ps.HasVerifiedKey() ||
		!ps.PublicKeyFingerprint.Equal(ps.VerifiedKeyFingerprint) {
		return nil
	}
	cs, err := g.Chats.Get(chatID)
	if err != nil {
		return err
	}
	if cs.Status != ProtectionBroken {
		return nil
	}
	if err := g.Chats.SetStatus(chatID, Protected); err != nil {
		return err
	}
	g.Bus.Emit(&eventbus.Event{ID: eventbus.EvChatProtectionRestored, ChatID: chatID, Addr: msg.From})
	return nil
}

// emitDegradeEvent surfaces (exactly once) any degrade event the peerstate
// update steps above just recorded for addr.
func (g *Gate) emitDegradeEvent(addr string) error {
	ev, err := g.Peerstates.ConsumeDegradeEvent(addr)
	if err != nil {
		return err
	}
	switch ev {
	case peerstate.DegradeEncryptionPaused:
		g.Bus.Emit(&eventbus.Event{ID: eventbus.EvDegradeEncryptionPaused, Addr: addr})
	case peerstate.DegradeFingerprintChanged:
		g.Bus.Emit(&eventbus.Event{ID: eventbus.EvDegradeFingerprintChanged, Addr: addr})
	}
	return nil
}

func containsFingerprint(list []fingerprint.Fingerprint, fp fingerprint.Fingerprint) bool {
	if fp.IsZero() {
		return false
	}
	for _, f := range list {
		if f.Equal(fp) {
			return true
		}
	}
	return false
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.ToLower(addr[i+1:])
	}
	return ""
}
