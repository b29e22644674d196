package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Difficulty of a requested question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Status of a game. It only moves forward: NotStarted -> InProgress -> Completed or Aborted.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAborted    Status = "aborted"
)

// Terminal reports whether no further operation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Question is the payload returned by a question source. The answer key is never part of it.
type Question struct {
	QuestionID string
	Category   string
	Difficulty Difficulty
	Type       string
	Text       string
	Options    []string
}

// Verdict is the outcome of checking a response against a question.
type Verdict struct {
	Correct       bool
	CorrectAnswer string
	Explanation   string
}

// ScoreReport is the final tally of a completed game.
type ScoreReport struct {
	CorrectCount   int
	TotalQuestions int
}

// Progress is a snapshot of a game's counters.
type Progress struct {
	Status         Status
	QuestionIndex  int
	CorrectCount   int
	TotalQuestions int
	// Outstanding is the question waiting for an answer, if any.
	Outstanding *Question
}

// Game is a trivia game played by one player, usually inside a voice room.
type Game struct {
	GameID     string
	Player     string
	Room       string
	Board      string
	Progress   Progress
	CreateTime time.Time
	UpdateTime time.Time
}

// Round is one committed question-answer turn.
type Round struct {
	GameID        string
	QuestionIndex int
	Difficulty    Difficulty
	QuestionID    string
	Correct       bool
	AnswerTime    time.Time
}

// Score represents a recorded game result and the player's running total on a board.
type Score struct {
	GameID         string
	Player         string
	Board          string
	CorrectCount   int
	TotalQuestions int
	Accuracy       decimal.Decimal
	TotalScore     decimal.Decimal
	UpdateTime     time.Time
}

// Leaderboard represents a list of players and their scores on a board.
// The list is sorted by score in descending order.
type Leaderboard struct {
	Board   string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Player string
	Score  float64
}
