package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/inkeep/agents/internal/logging"
)

var logStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // auth middleware already ran
	},
}

const logStreamWriteWait = 10 * time.Second

// handleLogStream upgrades the connection and streams log lines from the
// broadcaster: history first, then live lines until the client disconnects.
func handleLogStream(w http.ResponseWriter, r *http.Request) {
	conn, err := logStreamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade log stream connection")
		return
	}
	defer conn.Close()

	id, lines, history := logging.GetBroadcaster().Subscribe()
	defer logging.GetBroadcaster().Unsubscribe(id)

	for _, line := range history {
		if err := writeLogLine(conn, line); err != nil {
			return
		}
	}

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice close frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := writeLogLine(conn, line); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeLogLine(conn *websocket.Conn, line string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(logStreamWriteWait))
	return conn.WriteMessage(websocket.TextMessage, []byte(line))
}
