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

// Package trust merges a decrypted message's protected headers over its
// outer envelope (C7), ingests gossip keys, and runs the inbound trust
// gate (C10) that decides chat protection, key-change admission, AEAP
// migration and gossip-to-verified promotion for every received message.
package trust

// ProtectionStatus is a chat's required-encryption state.
type ProtectionStatus int

const (
	// ProtectionUnprotected is the default: no membership guarantee is
	// enforced on incoming messages.
	ProtectionUnprotected ProtectionStatus = iota
	// Protected requires every admitted message to be encrypted and
	// signed by the sender's verified key.
	Protected
	// ProtectionBroken is the one-way-until-re-verified downgrade a
	// protected chat falls into when a message violates that invariant.
	ProtectionBroken
)

// ChatState is the per-chat protection record the gate reads and writes.
type ChatState struct {
	ChatID int64
	Status ProtectionStatus
}
