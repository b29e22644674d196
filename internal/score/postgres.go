package score

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	game_id         UUID PRIMARY KEY,
	player          TEXT NOT NULL,
	board           TEXT NOT NULL,
	correct_count   INT NOT NULL,
	total_questions INT NOT NULL,
	accuracy        NUMERIC(5, 2) NOT NULL,
	create_time     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS scores_player_board ON scores (player, board);`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate scores: %w", err)
	}

	return nil
}

func (s *PostgresStore) InsertScore(ctx context.Context, sc domain.Score) (decimal.Decimal, error) {
	const stmt = `
WITH inserted AS (
	INSERT INTO scores (game_id, player, board, correct_count, total_questions, accuracy, create_time)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
)
SELECT COALESCE(SUM(correct_count), 0) AS score FROM scores WHERE player = $2 AND board = $3;`

	var total decimal.Decimal
	err := s.db.QueryRow(ctx, stmt, sc.GameID, sc.Player, sc.Board, sc.CorrectCount,
		sc.TotalQuestions, sc.Accuracy, sc.UpdateTime).Scan(&total)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return decimal.Zero, errors.New(errors.CodeAlreadyExists,
			errors.WithCause(err))
	}

	if err != nil {
		return decimal.Zero, err
	}

	// The CTE's insert is not visible to the outer select.
	return total.Add(decimal.NewFromInt(int64(sc.CorrectCount))), nil
}

func (s *PostgresStore) ListScores(ctx context.Context, player string) ([]domain.Score, error) {
	const stmt = `
SELECT game_id, board, correct_count, total_questions, accuracy, create_time
FROM scores
WHERE player = $1
ORDER BY create_time DESC;`

	rows, err := s.db.Query(ctx, stmt, player)
	if err != nil {
		return nil, err
	}

	scores, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Score, error) {
		sc := domain.Score{Player: player}
		if err := r.Scan(&sc.GameID, &sc.Board, &sc.CorrectCount, &sc.TotalQuestions, &sc.Accuracy, &sc.UpdateTime); err != nil {
			return domain.Score{}, err
		}
		return sc, nil
	})
	if err != nil {
		return nil, err
	}

	return scores, nil
}
