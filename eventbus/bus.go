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

package eventbus

import "sync"

// Listener receives Events that match its Filter on Ch. Ch is buffered by
// the caller; Bus.Emit never blocks on a full channel, it drops the event
// for that listener (a UI is expected to drain promptly; dropping a
// progress update is harmless since later ones supersede it).
type Listener struct {
	Ch     chan *Event
	filter *Filter
}

// NewListener creates a listener delivering to ch, filtered by f. A nil
// filter matches every event.
func NewListener(ch chan *Event, f *Filter) *Listener {
	if f == nil {
		f = NewFilter()
	}
	return &Listener{Ch: ch, filter: f}
}

// Bus fans a single stream of Events out to any number of Listeners.
type Bus struct {
	mtx       sync.RWMutex
	listeners []*Listener
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers l to receive future Emit calls.
func (b *Bus) Subscribe(l *Listener) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.listeners = append(b.listeners, l)
}

// Unsubscribe removes l; it is a no-op if l was never subscribed.
func (b *Bus) Unsubscribe(l *Listener) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for i, cur := range b.listeners {
		if cur == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every listener whose filter matches it.
func (b *Bus) Emit(ev *Event) {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	for _, l := range b.listeners {
		if !l.filter.Matches(ev) {
			continue
		}
		select {
		case l.Ch <- ev:
		default:
		}
	}
}
