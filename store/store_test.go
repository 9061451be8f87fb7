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

package store

import "testing"

type fixture struct {
	Name  string
	Count int
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := New[fixture](NewMemoryBackend())
	if err := s.Put("k1", fixture{Name: "alice", Count: 3}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get("k1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected key present")
	}
	if got.Name != "alice" || got.Count != 3 {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	s := New[fixture](NewMemoryBackend())
	_, ok, err := s.Get("missing")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected missing key to report ok=false")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := New[fixture](NewMemoryBackend())
	_ = s.Put("k1", fixture{Name: "bob"})
	if err := s.Delete("k1"); err != nil {
		t.Fatal(err)
	}
	_, ok, _ := s.Get("k1")
	if ok {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestMemoryStoreKeys(t *testing.T) {
	s := New[fixture](NewMemoryBackend())
	_ = s.Put("a", fixture{Name: "a"})
	_ = s.Put("b", fixture{Name: "b"})
	keys, err := s.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

func TestOpenBackendMemory(t *testing.T) {
	b, err := OpenBackend("memory")
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put("x", "y"); err != nil {
		t.Fatal(err)
	}
	v, err := b.Get("x")
	if err != nil || v != "y" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestOpenBackendInvalidSpec(t *testing.T) {
	if _, err := OpenBackend("nonsense"); err != ErrInvalidSpec {
		t.Fatalf("expected ErrInvalidSpec, got %v", err)
	}
	if _, err := OpenBackend("redis+127.0.0.1"); err != ErrInvalidSpec {
		t.Fatalf("expected ErrInvalidSpec for short redis spec, got %v", err)
	}
}
