// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package store persists appearance and room inventory bundles in
// PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/vestiary/vestiary/internal/assets"
	"github.com/vestiary/vestiary/internal/state"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
	writeAttempts   = 3
	writeBackoff    = 250 * time.Millisecond
)

// poolIface abstracts pgxpool.Pool for testing with pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store reads and writes state bundles keyed by character and room id.
type Store struct {
	pool   poolIface
	assets *assets.Manager
	logger *slog.Logger
}

// NewStore connects to PostgreSQL and returns a bundle store. The
// initial connect is retried with constant backoff so the server
// survives a database that is still starting up.
func NewStore(ctx context.Context, dsn string, m *assets.Manager, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var pool *pgxpool.Pool
	backoff := retry.WithMaxRetries(connectAttempts, retry.NewConstant(connectBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			logger.Warn("database not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	return &Store{pool: pool, assets: m, logger: logger}, nil
}

// NewStoreWithPool wraps an existing pool. Used by tests.
func NewStoreWithPool(pool poolIface, m *assets.Manager, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, assets: m, logger: logger}
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// LoadCharacter returns the stored appearance for id, reconstructed
// against the current asset catalog. A character with no stored row
// gets a bare state with the neutral pose.
func (s *Store) LoadCharacter(ctx context.Context, id state.CharacterID) (*state.CharacterState, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT bundle FROM character_appearances WHERE character_id = $1`,
		string(id)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.NewCharacterState(id), nil
	}
	if err != nil {
		return nil, oops.Code("CHARACTER_LOAD_FAILED").With("character_id", string(id)).Wrap(err)
	}
	var bundle state.AppearanceBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, oops.Code("CHARACTER_LOAD_FAILED").With("character_id", string(id)).Wrapf(err, "decode appearance bundle")
	}
	return state.LoadCharacterState(s.assets, id, bundle, s.logger), nil
}

// SaveCharacter upserts a character's appearance bundle.
func (s *Store) SaveCharacter(ctx context.Context, id state.CharacterID, bundle state.AppearanceBundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return oops.Code("CHARACTER_SAVE_FAILED").With("character_id", string(id)).Wrapf(err, "encode appearance bundle")
	}
	err = s.withWriteRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO character_appearances (character_id, bundle, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (character_id) DO UPDATE SET bundle = $2, updated_at = now()`,
			string(id), raw)
		return err
	})
	if err != nil {
		return oops.Code("CHARACTER_SAVE_FAILED").With("character_id", string(id)).Wrap(err)
	}
	return nil
}

// LoadRoom returns the stored inventory bundle for roomID. A room
// with no stored row gets an empty inventory.
func (s *Store) LoadRoom(ctx context.Context, roomID string) (state.RoomInventoryBundle, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT bundle FROM room_inventories WHERE room_id = $1`,
		roomID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return state.RoomInventoryBundle{}, nil
	}
	if err != nil {
		return state.RoomInventoryBundle{}, oops.Code("ROOM_LOAD_FAILED").With("room_id", roomID).Wrap(err)
	}
	var bundle state.RoomInventoryBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return state.RoomInventoryBundle{}, oops.Code("ROOM_LOAD_FAILED").With("room_id", roomID).Wrapf(err, "decode inventory bundle")
	}
	return bundle, nil
}

// SaveRoom upserts a room's inventory bundle.
func (s *Store) SaveRoom(ctx context.Context, roomID string, bundle state.RoomInventoryBundle) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return oops.Code("ROOM_SAVE_FAILED").With("room_id", roomID).Wrapf(err, "encode inventory bundle")
	}
	err = s.withWriteRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO room_inventories (room_id, bundle, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (room_id) DO UPDATE SET bundle = $2, updated_at = now()`,
			roomID, raw)
		return err
	})
	if err != nil {
		return oops.Code("ROOM_SAVE_FAILED").With("room_id", roomID).Wrap(err)
	}
	return nil
}

// withWriteRetry retries fn with constant backoff when the failure is
// transient (serialization, deadlock, dropped connection).
func (s *Store) withWriteRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(writeAttempts, retry.NewConstant(writeBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && transient(err) {
			s.logger.Warn("transient database error, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func transient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return pgerrcode.IsConnectionException(pgErr.Code)
}
