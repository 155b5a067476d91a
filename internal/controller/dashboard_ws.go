package controller

import (
	"context"
	"net/http"
	"time"

	"code4kids_backend/internal/dashboard"
	"code4kids_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 512
)

var dashboardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DashboardMessage is one frame on the teacher dashboard socket.
type DashboardMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// StreamTeacherDashboardWS godoc
// @Summary Live class dashboard over websocket
// @Description Sends {"type":"dashboard"} frames now and after every progress change. Browsers pass the token as ?token=
// @Tags teacher
// @Security ApiKeyAuth
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Router /api/teacher/dashboard/ws [get]
func (c *DashboardController) StreamTeacherDashboardWS(ctx *gin.Context) {
	conn, err := dashboardUpgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logger.Log.Warn("Dashboard websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// the upgraded connection outlives gin's request bookkeeping, so the
	// socket's read side decides when the stream ends
	streamCtx, cancel := context.WithCancel(ctx.Request.Context())
	defer cancel()
	go readDashboardSocket(conn, cancel)

	updates := make(chan *dashboard.TeacherDashboard, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- c.TeacherService.StreamDashboard(streamCtx, func(d *dashboard.TeacherDashboard) {
			select {
			case <-updates:
			default:
			}
			updates <- d
		})
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-streamCtx.Done():
			return
		case err := <-errc:
			if err != nil {
				logger.FromContext(streamCtx).Warn("Teacher dashboard socket ended", zap.Error(err))
				writeDashboardFrame(conn, DashboardMessage{Type: "error", Data: err.Error()})
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case d := <-updates:
			if err := writeDashboardFrame(conn, DashboardMessage{Type: "dashboard", Data: d}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readDashboardSocket drains client frames so pongs and close are seen.
func readDashboardSocket(conn *websocket.Conn, done context.CancelFunc) {
	defer done()
	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Debug("Dashboard websocket closed", zap.Error(err))
			}
			return
		}
	}
}

func writeDashboardFrame(conn *websocket.Conn, msg DashboardMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		logger.Log.Debug("Dashboard websocket write failed", zap.Error(err))
		return err
	}
	return nil
}
