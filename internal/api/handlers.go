package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codenow/internal/config"
	"codenow/internal/models"
	"codenow/internal/session"
	"codenow/internal/utils"
)

// inbound frames keep the payload raw until the type is known
type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Handlers struct {
	log      *zap.Logger
	session  *session.Session
	upgrader websocket.Upgrader
	readMax  int64
}

func NewHandlers(log *zap.Logger, sess *session.Session, cfg *config.Config) *Handlers {
	h := &Handlers{
		log:     utils.OrNop(log),
		session: sess,
		// room for the JSON envelope and escaping around a full buffer
		readMax: int64(cfg.MaxBufferBytes)*2 + 4096,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(cfg)}
	return h
}

func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("Code Now Server is running!"))
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) SessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.session.Occupancy())
}

/*** Collab WebSocket: admission, snapshot, then the event loop ***/
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := session.NewClient(conn)
	go client.WritePump()
	id, canEdit := h.session.Connect(client)
	defer func() {
		client.Close()
		h.session.Disconnect(id)
	}()

	log := h.log.With(zap.String("connection", id))
	log.Debug("websocket open", zap.Bool("canEdit", canEdit), zap.String("remote", r.RemoteAddr))

	conn.SetReadLimit(h.readMax)
	_ = conn.SetReadDeadline(time.Now().Add(session.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(session.PongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(session.PongWait))

		var frame inboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			log.Warn("malformed frame", zap.Error(err))
			continue
		}
		h.dispatch(log, id, frame)
	}
}

// dispatch applies one client event. Rejections are never reported back to
// the sender; the session logs and counts them.
func (h *Handlers) dispatch(log *zap.Logger, id string, frame inboundFrame) {
	switch frame.Type {
	case models.EventCodeUpdate:
		var upd models.CodeUpdate
		if !decode(log, frame, &upd) {
			return
		}
		_ = h.session.ApplyCodeUpdate(id, upd)

	case models.EventLanguageChange:
		lang, ok := decodeLanguage(frame.Data)
		if !ok {
			log.Warn("malformed payload", zap.String("event", frame.Type))
			return
		}
		_ = h.session.ApplyLanguageChange(id, lang)

	case models.EventCursorSelection:
		var sel models.CursorSelection
		if !decode(log, frame, &sel) {
			return
		}
		_ = h.session.UpdateCursor(id, sel)

	default:
		log.Debug("ignoring unknown frame type", zap.String("type", frame.Type))
	}
}

// decodeLanguage accepts the bare string form and {"language": ...}.
func decodeLanguage(raw json.RawMessage) (models.Language, bool) {
	var lang models.Language
	if err := json.Unmarshal(raw, &lang); err == nil {
		return lang, true
	}
	var wrapped struct {
		Language models.Language `json:"language"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Language != "" {
		return wrapped.Language, true
	}
	return "", false
}

func decode(log *zap.Logger, frame inboundFrame, out any) bool {
	if len(frame.Data) == 0 {
		log.Warn("missing payload", zap.String("event", frame.Type))
		return false
	}
	if err := json.Unmarshal(frame.Data, out); err != nil {
		log.Warn("malformed payload", zap.String("event", frame.Type), zap.Error(err))
		return false
	}
	return true
}

func originChecker(cfg *config.Config) func(*http.Request) bool {
	if cfg.AllowsAnyOrigin() {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
