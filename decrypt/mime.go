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

// Package decrypt locates the PGP/MIME (or "mixed-up" mangled PGP/MIME)
// ciphertext inside a parsed email, decrypts it, and reports which peer
// keys validly signed it. Byte-level MIME tokenizing is out of scope per
// spec.md §1; Part is the structured parse tree that non-goal assumes as
// input, materialised here over github.com/emersion/go-message.
package decrypt

import (
	"io"
	"strings"

	"github.com/emersion/go-message"
)

// Part is one node of the structured MIME parse tree: a Content-Type, its
// parameters, the header map (lowercased names, first occurrence wins),
// and either a decoded Body (leaf) or child Parts (multipart container).
//
// HeaderAll preserves every value of a repeated header in source order
// (Header only keeps the first); callers that need every occurrence of a
// header that legitimately repeats, such as Autocrypt-Gossip (one per
// group member) or Authentication-Results (one per hop), read HeaderAll.
type Part struct {
	ContentType string
	Params      map[string]string
	Header      map[string]string
	HeaderAll   map[string][]string
	Body        []byte
	Parts       []*Part
}

// Parse materialises a Part tree from raw RFC 5322 message bytes (or a
// single MIME body part), using go-message for the tokenizing spec.md
// treats as an external concern.
func Parse(r io.Reader) (*Part, error) {
	ent, err := message.Read(r)
	if err != nil {
		return nil, err
	}
	return fromEntity(ent)
}

func fromEntity(ent *message.Entity) (*Part, error) {
	ct, params, _ := ent.Header.ContentType()
	headerAll := flattenHeaderAll(ent.Header)
	p := &Part{
		ContentType: strings.ToLower(ct),
		Params:      params,
		Header:      firstValues(headerAll),
		HeaderAll:   headerAll,
	}

	if mr := ent.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			childPart, err := fromEntity(child)
			if err != nil {
				return nil, err
			}
			p.Parts = append(p.Parts, childPart)
		}
		return p, nil
	}

	body, err := io.ReadAll(ent.Body)
	if err != nil {
		return nil, err
	}
	p.Body = body
	return p, nil
}

// flattenHeaderAll collects every value of every header, lowercased and in
// source order (MUA convention of prepending means the first value is the
// most recently added one).
func flattenHeaderAll(h message.Header) map[string][]string {
	out := make(map[string][]string)
	fields := h.Fields()
	for fields.Next() {
		name := strings.ToLower(fields.Key())
		out[name] = append(out[name], fields.Value())
	}
	return out
}

// firstValues reduces a HeaderAll map to first-value-wins, for callers that
// only care about headers with single-valued semantics.
func firstValues(all map[string][]string) map[string]string {
	out := make(map[string]string, len(all))
	for name, values := range all {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

