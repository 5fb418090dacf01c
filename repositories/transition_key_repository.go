package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// TransitionKeyRepository хранит ключи идемпотентности переходов.
// Ключ вставляется в той же транзакции, что и сам переход.
type TransitionKeyRepository interface {
	// Claim возвращает ErrTransitionKeyAlreadyUsed, если ключ уже применен к той же операции,
	// и ErrTransitionKeyReused, если ключ занят другой операцией (scope).
	Claim(ctx context.Context, exec SQLExecutor, key, scope string) error
}

type postgresTransitionKeyRepository struct {
	db *sql.DB
}

func NewPostgresTransitionKeyRepository(db *sql.DB) TransitionKeyRepository {
	return &postgresTransitionKeyRepository{db: db}
}

func (r *postgresTransitionKeyRepository) Claim(ctx context.Context, exec SQLExecutor, key, scope string) error {
	result, err := getExecutor(r.db, exec).ExecContext(ctx,
		`INSERT INTO transition_keys (key, scope) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, scope,
	)
	if err != nil {
		return err
	}
	if err := checkAffectedRows(result, ErrTransitionKeyAlreadyUsed); !errors.Is(err, ErrTransitionKeyAlreadyUsed) {
		return err
	}

	var stored string
	err = getExecutor(r.db, exec).QueryRowContext(ctx,
		`SELECT scope FROM transition_keys WHERE key = $1`, key,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("failed to read scope of used key: %w", err)
	}
	if stored != scope {
		return ErrTransitionKeyReused
	}
	return ErrTransitionKeyAlreadyUsed
}
