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
	"net/mail"
	"strings"

	"github.com/bfix/gospel/logger"

	"chatcrypt/autocrypt"
	"chatcrypt/decrypt"
	"chatcrypt/fingerprint"
	"chatcrypt/peerstate"
	"chatcrypt/util"
)

// mergeableHeaders is the "known standard header" allowlist of §4.6: a
// decrypted inner part may overlay these onto the outer envelope.
// Everything else (in particular Received, Authentication-Results and any
// other routing or anti-forgery header) is taken only from the outer
// envelope: a peer that can get us to decrypt a message cannot also
// rewrite headers our own MTA is responsible for. Any header whose name
// starts with "chat-" is additionally mergeable; see mergeable below.
var mergeableHeaders = map[string]bool{
	"date":        true,
	"from":        true,
	"sender":      true,
	"reply-to":    true,
	"to":          true,
	"cc":          true,
	"bcc":         true,
	"message-id":  true,
	"in-reply-to": true,
	"references":  true,
	"subject":     true,
}

// mergeable reports whether name is in the standard allowlist or carries
// the "chat-" prefix (§4.6).
func mergeable(name string) bool {
	return mergeableHeaders[name] || strings.HasPrefix(name, "chat-")
}

// MimeMessage is the result of merging a message's protected inner headers
// (once decrypted) over its outer envelope: the single view the trust gate
// and the UI operate on from here on.
type MimeMessage struct {
	Header map[string]string

	From       string
	Recipients []string

	// OuterRecipients is the To/Cc address list of the outer envelope,
	// captured before Recipients is possibly overwritten from inner
	// headers. Gossip ingestion (§4.6) must gate on this list, not on
	// Recipients, since the outer envelope is the only party whose
	// addressing the MTA itself attests to.
	OuterRecipients []string

	Decrypted    bool
	Signers      []fingerprint.Fingerprint
	ChatVerified bool
}

// Merge builds a MimeMessage from outer (the envelope Part, always present)
// and inner (the decrypted Part, nil if nothing decrypted). Subject is
// forced from inner whenever the message decrypted and inner carries one,
// regardless of the general allowlist, since a spoofed outer Subject is
// exactly what Autocrypt protected headers exist to defeat; chat-verified
// is accepted only from inner, never from an outer envelope a relay could
// have injected.
func Merge(outer, inner *decrypt.Part, decrypted bool, signers []fingerprint.Fingerprint) *MimeMessage {
	msg := &MimeMessage{
		Header:    cloneHeader(outer.Header),
		Decrypted: decrypted,
		Signers:   signers,
	}

	if from, ok := outer.Header["from"]; ok {
		msg.From = firstAddress(from)
	}
	msg.Recipients = append(msg.Recipients, addressList(outer.Header["to"])...)
	msg.Recipients = append(msg.Recipients, addressList(outer.Header["cc"])...)
	msg.OuterRecipients = append([]string(nil), msg.Recipients...)

	if inner == nil {
		return msg
	}

	if nested, ok := nestedProtectedHeaders(inner); ok {
		logger.Printf(logger.WARN, "[trust] ignoring nested protected-headers part: %s", nested.ContentType)
	}

	for name, v := range inner.Header {
		if name == "chat-verified" {
			continue // handled below: boolean, not a header passthrough
		}
		if mergeable(name) {
			msg.Header[name] = v
		}
	}
	if decrypted {
		if subj, ok := inner.Header["subject"]; ok {
			msg.Header["subject"] = subj
		}
		if from, ok := inner.Header["from"]; ok {
			msg.From = firstAddress(from)
		}
		if _, ok := inner.Header["to"]; ok {
			msg.Recipients = addressList(inner.Header["to"])
			msg.Recipients = append(msg.Recipients, addressList(inner.Header["cc"])...)
		}
	}
	msg.ChatVerified = strings.EqualFold(strings.TrimSpace(inner.Header["chat-verified"]), "1") ||
		strings.EqualFold(strings.TrimSpace(inner.Header["chat-verified"]), "true")

	return msg
}

// nestedProtectedHeaders reports whether inner itself contains a further
// protected-headers part (a double-wrapped message): it is logged, never
// recursed into — a second layer of "protected" headers has nothing
// legitimate to protect once the outer decryption already succeeded.
func nestedProtectedHeaders(inner *decrypt.Part) (*decrypt.Part, bool) {
	for _, p := range inner.Parts {
		if p.Params["protected-headers"] != "" {
			return p, true
		}
	}
	return nil, false
}

// IngestGossip applies every Autocrypt-Gossip header found on inner to the
// peerstate registry, per §4.3's gossip event: only valid for a message
// that decrypted and was validly signed, since gossip is only as trustworthy
// as the party vouching for it. A gossip header is applied only when its
// addr is on the outer envelope's To/Cc list (§4.6); a gossipped key for an
// address never addressed on the envelope is ignored, since otherwise an
// encrypted, signed message could inject a key for an arbitrary third party.
func IngestGossip(reg *peerstate.Registry, msg *MimeMessage, inner *decrypt.Part, messageTime util.AbsoluteTime) error {
	if !msg.Decrypted || inner == nil || len(msg.Signers) == 0 {
		return nil
	}
	for _, raw := range inner.HeaderAll["autocrypt-gossip"] {
		hdr, err := autocrypt.Parse(raw)
		if err != nil {
			logger.Printf(logger.WARN, "[trust] ignoring malformed Autocrypt-Gossip header: %v", err)
			continue
		}
		if !containsAddress(msg.OuterRecipients, hdr.Addr) {
			logger.Printf(logger.WARN, "[trust] ignoring gossipped key for %s: address not in To/Cc list", hdr.Addr)
			continue
		}
		if err := reg.ApplyGossip(hdr.Addr, messageTime, hdr.Key); err != nil {
			return err
		}
	}
	return nil
}

// containsAddress reports whether addr (case-insensitively) is in list.
func containsAddress(list []string, addr string) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func cloneHeader(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// firstAddress extracts the first address out of a header value that may
// carry a display name ("Alice <alice@b.org>").
func firstAddress(value string) string {
	addrs := addressList(value)
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

// addressList parses a comma-separated address-list header value, returning
// lowercased bare addresses; an unparsable value yields no addresses rather
// than an error, since From/To/Cc are read-only context here, not a trust
// decision in themselves.
func addressList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parsed, err := mail.ParseAddressList(value)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(parsed))
	for _, a := range parsed {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}
