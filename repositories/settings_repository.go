package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository хранит документы настроек (ticker, footer_stats) как JSONB.
type SettingsRepository interface {
	Get(ctx context.Context, key string, dst interface{}) error
	Put(ctx context.Context, key string, value interface{}) error
	// AppendUnique/RemoveValue работают с массивом строк по пути field, как arrayUnion/arrayRemove.
	AppendUnique(ctx context.Context, key, field, value string) error
	RemoveValue(ctx context.Context, key, field, value string) error
}

type postgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) SettingsRepository {
	return &postgresSettingsRepository{db: db}
}

func (r *postgresSettingsRepository) Get(ctx context.Context, key string, dst interface{}) error {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSettingNotFound
		}
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode setting %q: %w", key, err)
	}
	return nil
}

func (r *postgresSettingsRepository) Put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %q: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, string(raw),
	)
	return err
}

func (r *postgresSettingsRepository) AppendUnique(ctx context.Context, key, field, value string) error {
	// Документ создается, если его еще нет.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, jsonb_build_object($2::text, jsonb_build_array($3::text)), NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = CASE
				WHEN COALESCE(settings.value -> $2::text, '[]'::jsonb) @> to_jsonb($3::text) THEN settings.value
				ELSE jsonb_set(settings.value, $4::text[], COALESCE(settings.value -> $2::text, '[]'::jsonb) || to_jsonb($3::text), true)
			END,
			updated_at = NOW()`,
		key, field, value, pq.Array([]string{field}),
	)
	return err
}

func (r *postgresSettingsRepository) RemoveValue(ctx context.Context, key, field, value string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
			value = jsonb_set(value, $4::text[], COALESCE(value -> $2::text, '[]'::jsonb) - $3::text, true),
			updated_at = NOW()
		WHERE key = $1`,
		key, field, value, pq.Array([]string{field}),
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSettingNotFound)
}
