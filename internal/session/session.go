package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codenow/internal/metrics"
	"codenow/internal/models"
	"codenow/internal/utils"
)

var (
	// ErrForbidden marks a mutating event from a connection that holds no editor slot.
	ErrForbidden         = errors.New("forbidden")
	ErrUnknownConnection = errors.New("unknown_connection")
	ErrUnknownLanguage   = errors.New("unknown_language")
	ErrPayloadTooLarge   = errors.New("payload_too_large")
	ErrInvalidRanges     = errors.New("invalid_ranges")
)

// EventSink receives lifecycle events for observers outside the process.
// Publish is called with the session lock held and must not block.
type EventSink interface {
	Publish(models.PresenceEvent)
}

type nopSink struct{}

func (nopSink) Publish(models.PresenceEvent) {}

type Options struct {
	MaxEditors     int
	PythonCode     string
	JavaScriptCode string
	Language       models.Language
	CursorColor    string
	CursorTimeout  time.Duration
	MaxBufferBytes int
	PromoteViewers bool
	Logger         *zap.Logger
	Sink           EventSink
}

// Session is the single coordination path. Every field below mu is read and
// written only while mu is held, and outbound frames are queued under the same
// lock so each peer sees mutations in the order they were applied.
type Session struct {
	log         *zap.Logger
	sink        EventSink
	cursorColor string
	now         func() time.Time

	mu      sync.Mutex
	conns   *registry
	slots   *slotAllocator
	buffers *bufferStore
	cursors *presenceExpiry
}

func New(opts Options) *Session {
	if opts.CursorTimeout <= 0 {
		opts.CursorTimeout = 3 * time.Second
	}
	if opts.CursorColor == "" {
		opts.CursorColor = "#FFFFFF"
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	s := &Session{
		log:         utils.OrNop(opts.Logger),
		sink:        opts.Sink,
		cursorColor: opts.CursorColor,
		now:         time.Now,
		conns:       newRegistry(),
		slots:       newSlotAllocator(opts.MaxEditors, opts.PromoteViewers),
		buffers:     newBufferStore(opts.PythonCode, opts.JavaScriptCode, opts.Language, opts.MaxBufferBytes),
	}
	s.cursors = newPresenceExpiry(opts.CursorTimeout, s.expireCursor)
	metrics.SetOccupancy(0, 0, s.slots.limit)
	return s
}

// Connect registers a client, decides its role and sends it the initial state.
func (s *Session) Connect(c *Client) (id string, canEdit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = uuid.New().String()
	canEdit = s.slots.tryAdmit(id)
	role := models.RoleViewer
	if canEdit {
		role = models.RoleEditor
	}
	now := s.now()
	s.conns.add(&connection{id: id, client: c, role: role, connectedAt: now, lastSeen: now})

	snap := s.buffers.snapshot()
	s.sendTo(id, models.WSFrame{Type: models.EventInitialState, Data: models.InitialState{
		Python:         snap.Python,
		JavaScript:     snap.JavaScript,
		Language:       snap.Language,
		CanEdit:        canEdit,
		MaxEditors:     s.slots.limit,
		CurrentEditors: s.slots.count(),
	}})

	s.log.Info("connection admitted",
		zap.String("connection", id),
		zap.String("role", string(role)),
		zap.Int("currentEditors", s.slots.count()),
		zap.Int("maxEditors", s.slots.limit),
		zap.Int("connections", s.conns.len()))

	s.publish(models.PresenceConnected, id, role)
	if canEdit {
		s.broadcastEditorCount()
	}
	s.refreshGauges()
	return id, canEdit
}

// Disconnect tears down a connection: cursor entry and timer, editor slot,
// then the count and disconnect notices. Unknown ids are ignored.
func (s *Session) Disconnect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, ok := s.conns.remove(id)
	if !ok {
		return
	}
	s.cursors.cancel(id)

	if s.slots.release(id) {
		s.log.Info("editor disconnected",
			zap.String("connection", id),
			zap.Int("currentEditors", s.slots.count()),
			zap.Int("maxEditors", s.slots.limit))
		s.promoteWaitingViewer()
		s.broadcastEditorCount()
	} else {
		s.log.Info("viewer disconnected", zap.String("connection", id))
	}
	s.broadcast(id, models.WSFrame{Type: models.EventUserDisconnected, Data: id})

	s.publish(models.PresenceDisconnected, id, conn.role)
	s.refreshGauges()
}

// ApplyCodeUpdate replaces a whole buffer and relays it to everyone else.
func (s *Session) ApplyCodeUpdate(id string, upd models.CodeUpdate) (err error) {
	defer func() { s.record(models.EventCodeUpdate, id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(id); err != nil {
		return err
	}
	if err := s.buffers.replace(upd.Language, upd.Code); err != nil {
		return err
	}
	s.broadcast(id, models.WSFrame{Type: models.EventCodeUpdate, Data: upd})
	return nil
}

// ApplyLanguageChange switches the shared language. The change is echoed to
// the sender too so every client converges on the same selection.
func (s *Session) ApplyLanguageChange(id string, lang models.Language) (err error) {
	defer func() { s.record(models.EventLanguageChange, id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(id); err != nil {
		return err
	}
	if err := s.buffers.setActive(lang); err != nil {
		return err
	}
	s.broadcast("", models.WSFrame{Type: models.EventLanguageChange, Data: lang})
	s.publish(models.PresenceLanguageChange, id, models.RoleEditor)
	return nil
}

// UpdateCursor stores the sender's selection, re-arms its expiry timer and
// relays it tagged with the sender id and display color.
func (s *Session) UpdateCursor(id string, sel models.CursorSelection) (err error) {
	defer func() { s.record(models.EventCursorSelection, id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(id); err != nil {
		return err
	}
	ranges := make([]models.Range, 0, len(sel.Ranges))
	for _, r := range sel.Ranges {
		if r.From < 0 || r.To < 0 {
			return fmt.Errorf("%w: from=%d to=%d", ErrInvalidRanges, r.From, r.To)
		}
		ranges = append(ranges, r)
	}
	s.cursors.arm(id, ranges, s.cursorColor)
	s.broadcast(id, models.WSFrame{Type: models.EventCursorSelection, Data: models.RemoteCursor{
		UserID: id,
		Color:  s.cursorColor,
		Ranges: ranges,
	}})
	return nil
}

func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers.snapshot()
}

func (s *Session) Occupancy() models.Occupancy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.occupancy()
}

func (s *Session) IsEditor(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots.isEditor(id)
}

// Cursor returns the live selection for a connection, if any.
func (s *Session) Cursor(id string) ([]models.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cursors.get(id)
	if !ok {
		return nil, false
	}
	out := make([]models.Range, len(e.ranges))
	copy(out, e.ranges)
	return out, true
}

// Close stops every pending cursor timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors.stopAll()
}

func (s *Session) authorize(id string) error {
	if _, ok := s.conns.get(id); !ok {
		return ErrUnknownConnection
	}
	s.conns.touch(id, s.now())
	if !s.slots.isEditor(id) {
		return ErrForbidden
	}
	return nil
}

// expireCursor runs on the timer goroutine.
func (s *Session) expireCursor(id string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cursors.expire(id, gen) {
		return
	}
	s.log.Debug("cursor expired", zap.String("connection", id))
	metrics.CursorExpired()
	s.broadcast(id, models.WSFrame{Type: models.EventUserDisconnected, Data: id})
	s.publish(models.PresenceCursorExpired, id, models.RoleEditor)
}

func (s *Session) promoteWaitingViewer() {
	id, ok := s.slots.promoteIfSlotAvailable(s.conns.viewers())
	if !ok {
		return
	}
	conn, _ := s.conns.get(id)
	conn.role = models.RoleEditor
	s.log.Info("viewer promoted", zap.String("connection", id))
	s.sendTo(id, models.WSFrame{Type: models.EventRoleUpdate, Data: models.RoleUpdate{CanEdit: true}})
}

func (s *Session) broadcastEditorCount() {
	s.broadcast("", models.WSFrame{Type: models.EventEditorCount, Data: models.EditorCount{
		CurrentEditors: s.slots.count(),
		MaxEditors:     s.slots.limit,
	}})
	s.publish(models.PresenceEditorCount, "", "")
}

func (s *Session) occupancy() models.Occupancy {
	editors := s.slots.count()
	return models.Occupancy{
		Language:       s.buffers.active,
		CurrentEditors: editors,
		MaxEditors:     s.slots.limit,
		Connections:    s.conns.len(),
		Viewers:        s.conns.len() - editors,
	}
}

func (s *Session) refreshGauges() {
	o := s.occupancy()
	metrics.SetOccupancy(o.CurrentEditors, o.Viewers, o.MaxEditors)
}

func (s *Session) publish(kind, id string, role models.Role) {
	s.sink.Publish(s.presenceEvent(kind, id, role))
}

func (s *Session) presenceEvent(kind, id string, role models.Role) models.PresenceEvent {
	return models.PresenceEvent{
		Type:           kind,
		ConnectionID:   id,
		Role:           role,
		CurrentEditors: s.slots.count(),
		MaxEditors:     s.slots.limit,
		Language:       s.buffers.active,
		Timestamp:      s.now().UTC().Format(time.RFC3339Nano),
	}
}

func (s *Session) record(event, id string, err error) {
	switch {
	case err == nil:
		metrics.ObserveEvent(event, metrics.OutcomeAccepted)
	case errors.Is(err, ErrForbidden):
		metrics.ObserveEvent(event, metrics.OutcomeForbidden)
		s.log.Info("rejected event from non-editor", zap.String("event", event), zap.String("connection", id))
	default:
		metrics.ObserveEvent(event, metrics.OutcomeInvalid)
		s.log.Warn("dropped invalid event", zap.String("event", event), zap.String("connection", id), zap.Error(err))
	}
}
