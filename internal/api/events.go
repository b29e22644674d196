package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/trivia/internal/domain"
)

const (
	eventNameGameSnapshot = "game.snapshot"

	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// watchGame streams the notifications of a game over a websocket. The first message is a
// snapshot of the game taken after subscribing; the connection is closed after game.ended.
func (a *API) watchGame(c *gin.Context) {
	ctx := c.Request.Context()

	g, err := a.gs.GetGame(ctx, gameRequest(c))
	if err != nil {
		renderError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "api: websocket upgrade failed", "game", g.GameID, "error", err)
		return
	}
	defer conn.Close()

	sub := a.redis.Subscribe(ctx, a.gameChannel(g.GameID))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		slog.ErrorContext(ctx, "api: subscribe game channel failed", "game", g.GameID, "error", err)
		closeWS(conn, websocket.CloseInternalServerErr, "subscribe failed")
		return
	}

	// Taken once subscribed, so an end published in between is seen in one or the other.
	g, err = a.gs.GetGame(ctx, gameRequest(c))
	if err != nil {
		slog.WarnContext(ctx, "api: get game snapshot failed", "game", c.Param("id"), "error", err)
		closeWS(conn, websocket.CloseInternalServerErr, "game not available")
		return
	}

	if err := writeWS(conn, websocket.TextMessage, mustJSON(Notification{
		Event: eventNameGameSnapshot,
		Data:  toGame(g),
	})); err != nil {
		return
	}

	if g.Progress.Status.Terminal() {
		closeWS(conn, websocket.CloseNormalClosure, "game ended")
		return
	}

	// Reading is needed to process control frames and to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	msgs := sub.Channel()
	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			if err := writeWS(conn, websocket.TextMessage, []byte(msg.Payload)); err != nil {
				slog.DebugContext(ctx, "api: websocket write failed", "game", g.GameID, "error", err)
				return
			}

			var n struct {
				Event string `json:"event"`
			}
			if json.Unmarshal([]byte(msg.Payload), &n) == nil && n.Event == domain.EventNameGameEnded {
				closeWS(conn, websocket.CloseNormalClosure, "game ended")
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, typ int, b []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}

	return conn.WriteMessage(typ, b)
}

func closeWS(conn *websocket.Conn, code int, text string) {
	_ = writeWS(conn, websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}
