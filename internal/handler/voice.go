package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	apperrors "github.com/vantageplatform/vantage-core/internal/errors"
	"github.com/vantageplatform/vantage-core/internal/logger"
)

var voiceUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// VoiceRelay handles WS /ws/voice: a token-gated relay between the caller
// and an external voice realtime API (spec.md §6 "Relay to external voice
// realtime API; token-gated"). Frames pass through unmodified in both
// directions; the relay does not interpret the realtime protocol.
func (s *Server) VoiceRelay(c *gin.Context) {
	if s.VoiceToken == "" || !validVoiceToken(c.Query("token"), s.VoiceToken) {
		c.Error(apperrors.NewForbiddenError("voice token invalid"))
		return
	}
	if s.VoiceUpstreamURL == "" {
		c.Error(apperrors.NewUpstreamUnavailableError("voice relay not configured"))
		return
	}

	client, err := voiceUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "voice relay: client upgrade failed")
		return
	}
	defer client.Close()

	upstream, _, err := websocket.DefaultDialer.Dial(s.VoiceUpstreamURL, nil)
	if err != nil {
		logger.ErrorWithFields(c.Request.Context(), err, map[string]interface{}{"component": "voice_relay"})
		_ = client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream unavailable"))
		return
	}
	defer upstream.Close()

	done := make(chan struct{})
	go relayFrames(upstream, client, done)
	relayFrames(client, upstream, done)
}

// validVoiceToken accepts either the bare shared secret or an HS256 JWT
// signed with it, so an operator can hand out short-lived per-session
// tokens instead of the long-lived secret itself. VOICE_WS_TOKEN is the
// signing key in both cases (spec.md §6 "token-gated").
func validVoiceToken(presented, secret string) bool {
	if presented == "" {
		return false
	}
	if presented == secret {
		return true
	}
	parsed, err := jwt.Parse(presented, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.NewForbiddenError("unexpected signing method")
		}
		return []byte(secret), nil
	})
	return err == nil && parsed.Valid
}

// relayFrames copies websocket frames from src to dst until either side
// closes or the sibling direction signals done.
func relayFrames(src, dst *websocket.Conn, done chan struct{}) {
	defer func() {
		select {
		case <-done:
		default:
			close(done)
		}
	}()
	for {
		select {
		case <-done:
			return
		default:
		}
		msgType, msg, err := src.ReadMessage()
		if err != nil {
			return
		}
		if err := dst.WriteMessage(msgType, msg); err != nil {
			return
		}
	}
}
