package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	game_id         UUID PRIMARY KEY,
	player          TEXT NOT NULL,
	room            TEXT NOT NULL DEFAULT '',
	board           TEXT NOT NULL,
	status          TEXT NOT NULL,
	question_index  INT NOT NULL DEFAULT 0,
	correct_count   INT NOT NULL DEFAULT 0,
	total_questions INT NOT NULL,
	create_time     TIMESTAMPTZ NOT NULL,
	update_time     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rounds (
	game_id        UUID NOT NULL REFERENCES games (game_id),
	question_index INT NOT NULL,
	difficulty     TEXT NOT NULL,
	question_id    TEXT NOT NULL,
	correct        BOOLEAN NOT NULL,
	answer_time    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (game_id, question_index)
);`

// PostgresStore is the Store backed by Postgres.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate games: %w", err)
	}

	return nil
}

func (s *PostgresStore) InsertGame(ctx context.Context, g domain.Game) error {
	const stmt = `
INSERT INTO games (game_id, player, room, board, status, question_index, correct_count, total_questions, create_time, update_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	p := g.Progress
	_, err := s.db.Exec(ctx, stmt, g.GameID, g.Player, g.Room, g.Board, p.Status,
		p.QuestionIndex, p.CorrectCount, p.TotalQuestions, g.CreateTime, g.UpdateTime)
	return err
}

// UpdateProgress overwrites the game counters unless a newer update was already stored.
func (s *PostgresStore) UpdateProgress(ctx context.Context, gameID string, p domain.Progress, at time.Time) error {
	return updateProgress(ctx, s.db, gameID, p, at)
}

// RecordRound inserts a committed round and the resulting counters atomically.
func (s *PostgresStore) RecordRound(ctx context.Context, r domain.Round, p domain.Progress) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const stmt = `
INSERT INTO rounds (game_id, question_index, difficulty, question_id, correct, answer_time)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (game_id, question_index) DO NOTHING;`

	_, err = tx.Exec(ctx, stmt, r.GameID, r.QuestionIndex, r.Difficulty, r.QuestionID, r.Correct, r.AnswerTime)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}

	if err = updateProgress(ctx, tx, r.GameID, p, r.AnswerTime); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) FindGame(ctx context.Context, gameID string) (*domain.Game, error) {
	const stmt = `
SELECT game_id, player, room, board, status, question_index, correct_count, total_questions, create_time, update_time
FROM games
WHERE game_id = $1;`

	var g domain.Game
	err := s.db.QueryRow(ctx, stmt, gameID).Scan(&g.GameID, &g.Player, &g.Room, &g.Board,
		&g.Progress.Status, &g.Progress.QuestionIndex, &g.Progress.CorrectCount, &g.Progress.TotalQuestions,
		&g.CreateTime, &g.UpdateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("game not found: %s", gameID))
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}

	return &g, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func updateProgress(ctx context.Context, db execer, gameID string, p domain.Progress, at time.Time) error {
	const stmt = `
UPDATE games
SET status = $2, question_index = $3, correct_count = $4, update_time = $5
WHERE game_id = $1 AND update_time <= $5;`

	if _, err := db.Exec(ctx, stmt, gameID, p.Status, p.QuestionIndex, p.CorrectCount, at); err != nil {
		return fmt.Errorf("update game: %w", err)
	}

	return nil
}
