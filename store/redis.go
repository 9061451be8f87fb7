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

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisBackend persists key/value pairs in a Redis database.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend opens a Redis-backed Backend.
func NewRedisBackend(addr, passwd string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: passwd,
		DB:       db,
	})
	if client == nil {
		return nil, ErrNotAvailable
	}
	return &RedisBackend{client: client}, nil
}

// Client exposes the underlying client for callers that need primitives
// Backend doesn't expose, such as SETNX.
func (r *RedisBackend) Client() *redis.Client { return r.client }

func (r *RedisBackend) Put(key, value string) error {
	return r.client.Set(context.Background(), key, value, 0).Err()
}

func (r *RedisBackend) Get(key string) (string, error) {
	v, err := r.client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisBackend) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}

func (r *RedisBackend) List() ([]string, error) {
	ctx := context.Background()
	var (
		cursor uint64
		keys   []string
	)
	for {
		segment, next, err := r.client.Scan(ctx, cursor, "*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, segment...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}
