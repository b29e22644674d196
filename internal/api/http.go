package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/genai"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/score"
	"github.com/victornm/trivia/internal/session"
)

type (
	Question struct {
		QuestionID string   `json:"question_id"`
		Category   string   `json:"category"`
		Difficulty string   `json:"difficulty"`
		Type       string   `json:"type"`
		Text       string   `json:"question"`
		Options    []string `json:"options"`
	}

	Progress struct {
		Status         string    `json:"status"`
		QuestionIndex  int       `json:"question_index"`
		CorrectCount   int       `json:"correct_count"`
		TotalQuestions int       `json:"total_questions"`
		Outstanding    *Question `json:"outstanding,omitempty"`
	}

	Game struct {
		GameID     string    `json:"game_id"`
		Player     string    `json:"player"`
		Room       string    `json:"room,omitempty"`
		Board      string    `json:"board"`
		Progress   Progress  `json:"progress"`
		CreateTime time.Time `json:"create_time"`
		UpdateTime time.Time `json:"update_time"`
	}

	Score struct {
		GameID         string    `json:"game_id"`
		Board          string    `json:"board"`
		CorrectCount   int       `json:"correct_count"`
		TotalQuestions int       `json:"total_questions"`
		Accuracy       string    `json:"accuracy"`
		CreateTime     time.Time `json:"create_time"`
	}

	CreateGameRequest struct {
		Player string `json:"player" binding:"required"`
		Room   string `json:"room"`
		Board  string `json:"board"`
	}

	SubmitAnswerRequest struct {
		Answer string `json:"answer" binding:"required"`
	}

	NextQuestionResponse struct {
		Question Question `json:"question"`
		Progress Progress `json:"progress"`
	}

	SubmitAnswerResponse struct {
		Correct       bool     `json:"correct"`
		CorrectAnswer string   `json:"correct_answer"`
		Explanation   string   `json:"explanation"`
		Progress      Progress `json:"progress"`
	}

	ScoreReport struct {
		CorrectCount   int `json:"correct_count"`
		TotalQuestions int `json:"total_questions"`
	}

	ListScoresResponse struct {
		Player string  `json:"player"`
		Scores []Score `json:"scores"`
	}

	AgentConfig struct {
		Model  string                   `json:"model"`
		Config *genai.LiveConnectConfig `json:"config"`
	}

	ConnectionDetails struct {
		ServerURL        string `json:"server_url"`
		RoomName         string `json:"room_name"`
		ParticipantName  string `json:"participant_name"`
		ParticipantToken string `json:"participant_token"`
	}

	ErrorResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func (a *API) registerRoutes(e *gin.Engine) {
	v1 := e.Group("/v1")

	games := v1.Group("/games")
	games.POST("", a.createGame)
	games.GET("/:id", a.getGame)
	games.POST("/:id/start", a.startGame)
	games.POST("/:id/questions", a.nextQuestion)
	games.POST("/:id/answers", a.submitAnswer)
	games.POST("/:id/finish", a.finishGame)
	games.POST("/:id/abort", a.abortGame)
	games.POST("/:id/tools/:name", a.callTool)
	games.GET("/:id/events", a.watchGame)
	games.POST("/:id/connection", a.connectRoom)

	v1.GET("/players/:player/scores", a.listScores)
	v1.GET("/leaderboards/:board", a.getLeaderboard)
	v1.GET("/agent/config", a.getAgentConfig)
}

func (a *API) createGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request: %v", err)))
		return
	}

	g, err := a.gs.CreateGame(c.Request.Context(), session.CreateGameRequest{
		Player: req.Player,
		Room:   req.Room,
		Board:  req.Board,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toGame(g))
}

func (a *API) getGame(c *gin.Context) {
	g, err := a.gs.GetGame(c.Request.Context(), gameRequest(c))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toGame(g))
}

func (a *API) startGame(c *gin.Context) {
	g, err := a.gs.StartGame(c.Request.Context(), gameRequest(c))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toGame(g))
}

func (a *API) nextQuestion(c *gin.Context) {
	res, err := a.gs.NextQuestion(c.Request.Context(), gameRequest(c))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, NextQuestionResponse{
		Question: toQuestion(*res.Question),
		Progress: toProgress(res.Progress),
	})
}

func (a *API) submitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid request: %v", err)))
		return
	}

	res, err := a.gs.SubmitAnswer(c.Request.Context(), session.SubmitAnswerRequest{
		GameID: c.Param("id"),
		Answer: req.Answer,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, SubmitAnswerResponse{
		Correct:       res.Verdict.Correct,
		CorrectAnswer: res.Verdict.CorrectAnswer,
		Explanation:   res.Verdict.Explanation,
		Progress:      toProgress(res.Progress),
	})
}

func (a *API) finishGame(c *gin.Context) {
	r, err := a.gs.FinishGame(c.Request.Context(), gameRequest(c))
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, ScoreReport{
		CorrectCount:   r.CorrectCount,
		TotalQuestions: r.TotalQuestions,
	})
}

func (a *API) abortGame(c *gin.Context) {
	if err := a.gs.AbortGame(c.Request.Context(), gameRequest(c)); err != nil {
		renderError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (a *API) callTool(c *gin.Context) {
	args := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid tool arguments: %v", err)))
			return
		}
	}

	resp, err := a.ad.Call(c.Request.Context(), c.Param("id"), &genai.FunctionCall{
		Name: c.Param("name"),
		Args: args,
	})
	if err != nil {
		c.JSON(errors.Convert(err).HTTPStatusCode(), resp.Response)
		return
	}

	c.JSON(http.StatusOK, resp.Response)
}

func (a *API) listScores(c *gin.Context) {
	player := c.Param("player")
	scores, err := a.ss.ListScores(c.Request.Context(), score.ListScoresRequest{Player: player})
	if err != nil {
		renderError(c, err)
		return
	}

	resp := ListScoresResponse{
		Player: player,
		Scores: make([]Score, 0, len(scores)),
	}
	for _, sc := range scores {
		resp.Scores = append(resp.Scores, Score{
			GameID:         sc.GameID,
			Board:          sc.Board,
			CorrectCount:   sc.CorrectCount,
			TotalQuestions: sc.TotalQuestions,
			Accuracy:       sc.Accuracy.StringFixed(2),
			CreateTime:     sc.UpdateTime,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getLeaderboard(c *gin.Context) {
	var limit int
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			renderError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid limit: %q", s)))
			return
		}
		limit = n
	}

	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		Board: c.Param("board"),
		Limit: limit,
	})
	if err != nil {
		renderError(c, err)
		return
	}

	resp := Leaderboard{
		Board:   l.Board,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}
	for _, e := range l.Entries {
		resp.Entries = append(resp.Entries, LeaderboardEntry{
			Player: e.Player,
			Score:  strconv.FormatFloat(e.Score, 'f', -1, 64),
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) getAgentConfig(c *gin.Context) {
	c.JSON(http.StatusOK, AgentConfig{
		Model:  a.live.ModelName(),
		Config: a.live.ConnectConfig(),
	})
}

func (a *API) connectRoom(c *gin.Context) {
	ctx := c.Request.Context()

	g, err := a.gs.GetGame(ctx, gameRequest(c))
	if err != nil {
		renderError(c, err)
		return
	}

	d, err := a.rs.Connect(ctx, *g)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, ConnectionDetails{
		ServerURL:        d.ServerURL,
		RoomName:         d.RoomName,
		ParticipantName:  d.ParticipantName,
		ParticipantToken: d.ParticipantToken,
	})
}

func gameRequest(c *gin.Context) session.GameRequest {
	return session.GameRequest{GameID: c.Param("id")}
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: internal error", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{
		Code:    e.Code.String(),
		Message: e.Message,
	})
}

func toGame(g *domain.Game) Game {
	return Game{
		GameID:     g.GameID,
		Player:     g.Player,
		Room:       g.Room,
		Board:      g.Board,
		Progress:   toProgress(g.Progress),
		CreateTime: g.CreateTime,
		UpdateTime: g.UpdateTime,
	}
}

func toProgress(p domain.Progress) Progress {
	res := Progress{
		Status:         string(p.Status),
		QuestionIndex:  p.QuestionIndex,
		CorrectCount:   p.CorrectCount,
		TotalQuestions: p.TotalQuestions,
	}
	if p.Outstanding != nil {
		q := toQuestion(*p.Outstanding)
		res.Outstanding = &q
	}

	return res
}

func toQuestion(q domain.Question) Question {
	return Question{
		QuestionID: q.QuestionID,
		Category:   q.Category,
		Difficulty: string(q.Difficulty),
		Type:       q.Type,
		Text:       q.Text,
		Options:    q.Options,
	}
}
