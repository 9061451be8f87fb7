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
	"strconv"

	"chatcrypt/store"
)

// ChatRegistry is the per-chat protection-status store, backed by the same
// generic store.Store abstraction the peerstate registry uses.
type ChatRegistry struct {
	st *store.Store[ChatState]
}

// NewChatRegistry wraps backend as a chat-protection registry.
func NewChatRegistry(backend store.Backend) *ChatRegistry {
	return &ChatRegistry{st: store.New[ChatState](backend)}
}

// Get returns chatID's protection state, defaulting to ProtectionUnprotected
// for a chat never seen before.
func (r *ChatRegistry) Get(chatID int64) (ChatState, error) {
	cs, ok, err := r.st.Get(key(chatID))
	if err != nil {
		return ChatState{}, err
	}
	if !ok {
		return ChatState{ChatID: chatID, Status: ProtectionUnprotected}, nil
	}
	return cs, nil
}

// SetStatus persists chatID's new protection status.
func (r *ChatRegistry) SetStatus(chatID int64, status ProtectionStatus) error {
	return r.st.Put(key(chatID), ChatState{ChatID: chatID, Status: status})
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
