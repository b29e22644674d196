package domain

const (
	EventNameGameStarted        = "game.started"
	EventNameQuestionIssued     = "question.issued"
	EventNameAnswerChecked      = "answer.checked"
	EventNameGameEnded          = "game.ended"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventGameStarted struct {
	GameID string
}

func (EventGameStarted) Name() string { return EventNameGameStarted }

type EventQuestionIssued struct {
	GameID        string
	QuestionIndex int
	Question      Question
}

func (EventQuestionIssued) Name() string { return EventNameQuestionIssued }

type EventAnswerChecked struct {
	Round    Round
	Progress Progress
}

func (EventAnswerChecked) Name() string { return EventNameAnswerChecked }

// EventGameEnded is published once per game. Report is nil when the game was aborted.
type EventGameEnded struct {
	Game   Game
	Report *ScoreReport
}

func (EventGameEnded) Name() string { return EventNameGameEnded }

type EventScoreUpdated struct {
	Score Score
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
