package collaboration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"collab-editor/internal/middleware"
	"collab-editor/internal/models"
	"collab-editor/internal/ot"
	"collab-editor/internal/services"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

/*
LEARNING: WEBSOCKET SESSION MANAGER

This implements concurrent session management for real-time collaboration.

Key Concepts:
1. **Rooms**: One broadcast group per document, each behind its own mutex
2. **Presence registry**: document -> identities, shared by all rooms
3. **Broadcast Pattern**: Fan a frame out to every connection in a room
4. **Persistence pipeline**: Store calls leave the room through a worker pool

Lock order is room -> registry (and room -> manager map when a room is
dropped). The manager map lock is never held while waiting for a room lock.

Conflict policy is last-write-wins: a change replaces the whole buffer and
the persisted content is whichever write lands last.
*/

// DocumentPersister is what the coordinator needs from the persistence pipeline
type DocumentPersister interface {
	Load(ctx context.Context, documentID string) (*models.Document, error)
	Submit(job services.PersistJob) error
}

// PresenceMirror receives this process's presence set for a document
type PresenceMirror interface {
	Publish(ctx context.Context, documentID string, identities []string) error
}

// room is the broadcast group and last known content of one document
type room struct {
	mu      sync.Mutex
	id      string
	conns   map[*Connection]struct{}
	content string
	loaded  bool
	closed  bool // removed from the manager; joiners must fetch a new room
}

// SessionManager coordinates joins, edits, presence and disconnects
// Learning: Central hub for coordinating real-time collaboration
type SessionManager struct {
	registry   *PresenceRegistry
	persister  DocumentPersister
	sendBuffer int

	mu    sync.Mutex
	rooms map[string]*room
	conns map[*Connection]struct{}

	// Presence mirror (optional)
	mirror         PresenceMirror
	mirrorInterval time.Duration
	pendingMu      sync.Mutex
	pending        map[string][]string
	mirrorWake     chan struct{}

	// Control
	done         chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

// NewSessionManager creates a new session manager
func NewSessionManager(persister DocumentPersister, sendBufferSize int) *SessionManager {
	return &SessionManager{
		registry:       NewPresenceRegistry(),
		persister:      persister,
		sendBuffer:     sendBufferSize,
		rooms:          make(map[string]*room),
		conns:          make(map[*Connection]struct{}),
		mirrorInterval: time.Minute,
		pending:        make(map[string][]string),
		mirrorWake:     make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// SetPresenceMirror enables publishing presence to an external store.
// refresh is how often every live document is republished; call before Start.
func (sm *SessionManager) SetPresenceMirror(mirror PresenceMirror, refresh time.Duration) {
	sm.mirror = mirror
	if refresh > 0 {
		sm.mirrorInterval = refresh
	}
}

// Registry exposes the presence registry (read-only use)
func (sm *SessionManager) Registry() *PresenceRegistry {
	return sm.registry
}

// Start begins the background presence mirror loop, if a mirror is set
func (sm *SessionManager) Start() {
	sm.startOnce.Do(func() {
		log.Println("🔄 Starting WebSocket session manager...")
		if sm.mirror != nil {
			sm.wg.Add(1)
			go sm.mirrorLoop()
		}
		log.Println("✓ WebSocket session manager started")
	})
}

// NewConnection registers a connection in state Connected.
// A non-empty session identity marks the connection as authenticated.
func (sm *SessionManager) NewConnection(session *models.Session, ws *websocket.Conn) *Connection {
	c := newConnection(session, ws, sm.sendBuffer)

	sm.mu.Lock()
	defer sm.mu.Unlock()

	select {
	case <-sm.done:
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.close()
	default:
		sm.conns[c] = struct{}{}
	}
	return c
}

// acquireRoom returns the locked live room for a document, creating it if needed
func (sm *SessionManager) acquireRoom(docID string) *room {
	for {
		sm.mu.Lock()
		r, ok := sm.rooms[docID]
		if !ok {
			r = &room{id: docID, conns: make(map[*Connection]struct{})}
			sm.rooms[docID] = r
		}
		sm.mu.Unlock()

		r.mu.Lock()
		if !r.closed {
			return r
		}
		// Emptied and dropped between lookup and lock
		r.mu.Unlock()
	}
}

// joinedRoom returns the locked room the connection joined for docID
func (sm *SessionManager) joinedRoom(c *Connection, docID string) (*room, error) {
	joinedDoc, _, joined := c.binding()
	if !joined {
		if c.State() == StateDisconnected {
			return nil, ErrConnectionClosed
		}
		return nil, ErrNotJoined
	}
	if docID != "" && docID != joinedDoc {
		return nil, ErrNotJoined
	}

	sm.mu.Lock()
	r := sm.rooms[joinedDoc]
	sm.mu.Unlock()
	if r == nil {
		return nil, ErrNotJoined
	}

	r.mu.Lock()
	if _, ok := r.conns[c]; !ok || r.closed {
		r.mu.Unlock()
		return nil, ErrNotJoined
	}
	return r, nil
}

// Join binds the connection to a document.
// In order: group membership, registry join, load (or create), initialContent to
// the joiner, presence to the whole group. A failed load is reported to the joiner
// with syncError but the join stands.
func (sm *SessionManager) Join(ctx context.Context, c *Connection, docID, identity string) error {
	if docID == "" {
		return ErrMissingDocument
	}

	ctx, span := middleware.StartSpan(ctx, "SessionManager.Join",
		attribute.String("document.id", docID),
		attribute.String("connection.id", c.ID),
	)
	defer span.End()

	r := sm.acquireRoom(docID)
	defer r.mu.Unlock()

	c.mu.Lock()
	var err error
	switch {
	case c.state == StateJoined:
		err = ErrAlreadyJoined
	case c.state == StateDisconnected:
		err = ErrConnectionClosed
	case c.authenticated && identity == "":
		identity = c.Identity
	case c.authenticated && identity != c.Identity:
		err = ErrIdentityMismatch
	case identity == "":
		err = ErrMissingIdentity
	}
	if err != nil {
		c.mu.Unlock()
		sm.dropIfEmptyLocked(r)
		return err
	}
	c.state = StateJoined
	c.DocumentID = docID
	c.Identity = identity
	c.mu.Unlock()

	r.conns[c] = struct{}{}
	members := sm.registry.Join(docID, identity)

	doc, err := sm.persister.Load(ctx, docID)
	if err != nil {
		log.Printf("⚠️  Failed to load document %s for %s: %v", docID, identity, err)
		middleware.AddSpanError(ctx, err)
		c.sendSyncError("Failed to join document")
	} else {
		r.content = doc.Content
		r.loaded = true
		c.sendJSON(models.ContentMessage{Type: models.EventInitialContent, Content: doc.Content})
		middleware.AddSpanEvent(ctx, "initial content sent",
			attribute.Int("document.length", len([]rune(doc.Content))),
		)
	}

	sm.broadcastLocked(r, models.PresenceMessage{Type: models.EventPresence, Identities: members}, nil)
	sm.notifyMirror(docID, members)

	log.Printf("  %s joined document %s (connection %s, %d users)", identity, docID, c.ID, len(members))
	return nil
}

// SubmitChange relays a full-buffer replacement to the other members and persists it.
// Persistence failure is reported to the sender only; the broadcast stands.
func (sm *SessionManager) SubmitChange(ctx context.Context, c *Connection, docID, content string) error {
	r, err := sm.joinedRoom(c, docID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	_, span := middleware.StartSpan(ctx, "SessionManager.SubmitChange",
		attribute.String("document.id", r.id),
		attribute.Int("content.length", len(content)),
	)
	defer span.End()

	r.content = content
	r.loaded = true
	sm.broadcastLocked(r, models.ContentMessage{Type: models.EventChange, Content: content}, c)
	sm.persistLocked(c, r.id, content, func(err error) {
		if err != nil {
			c.sendSyncError("Failed to update document")
		}
	})
	return nil
}

// UploadContent is SubmitChange for a whole uploaded file; the uploader gets
// uploadAck once the content is stored.
func (sm *SessionManager) UploadContent(ctx context.Context, c *Connection, docID, content, filename string) error {
	if content == "" {
		return ErrEmptyUpload
	}

	r, err := sm.joinedRoom(c, docID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	_, span := middleware.StartSpan(ctx, "SessionManager.UploadContent",
		attribute.String("document.id", r.id),
		attribute.String("upload.filename", filename),
		attribute.Int("content.length", len(content)),
	)
	defer span.End()

	r.content = content
	r.loaded = true
	sm.broadcastLocked(r, models.ContentMessage{Type: models.EventChange, Content: content}, c)
	sm.persistLocked(c, r.id, content, func(err error) {
		if err != nil {
			c.sendSyncError("Failed to upload file")
			return
		}
		c.sendJSON(models.UploadAckMessage{Type: models.EventUploadAck, Content: content, Filename: filename})
	})

	_, identity, _ := c.binding()
	log.Printf("  %s uploaded %q to document %s", identity, filename, r.id)
	return nil
}

// SubmitOperations replays insert/delete operations against the room's last known
// content. The result goes to every member, sender included, so all converge on it.
func (sm *SessionManager) SubmitOperations(ctx context.Context, c *Connection, docID string, ops []ot.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	r, err := sm.joinedRoom(c, docID)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	ctx, span := middleware.StartSpan(ctx, "SessionManager.SubmitOperations",
		attribute.String("document.id", r.id),
		attribute.Int("operations.count", len(ops)),
	)
	defer span.End()

	if !r.loaded {
		doc, err := sm.persister.Load(ctx, r.id)
		if err != nil {
			middleware.AddSpanError(ctx, err)
			c.sendSyncError("Failed to update document")
			return nil
		}
		r.content = doc.Content
		r.loaded = true
	}

	r.content = ot.Apply(r.content, ops)
	sm.broadcastLocked(r, models.ContentMessage{Type: models.EventChange, Content: r.content}, nil)
	sm.persistLocked(c, r.id, r.content, func(err error) {
		if err != nil {
			c.sendSyncError("Failed to update document")
		}
	})
	return nil
}

// Disconnect removes the connection from its room and presence.
// Calling it again for the same connection is a no-op.
func (sm *SessionManager) Disconnect(c *Connection) {
	c.mu.Lock()
	prev := c.state
	c.state = StateDisconnected
	docID, identity := c.DocumentID, c.Identity
	c.mu.Unlock()

	c.close()

	sm.mu.Lock()
	delete(sm.conns, c)
	r := sm.rooms[docID]
	sm.mu.Unlock()

	if prev != StateJoined || r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[c]; !ok {
		return
	}
	delete(r.conns, c)

	// Another tab of the same user keeps the identity present
	var remaining []string
	if sm.identityInRoom(r, identity) {
		remaining = sm.registry.Members(docID)
	} else {
		remaining = sm.registry.Leave(docID, identity)
	}

	if !sm.dropIfEmptyLocked(r) {
		sm.broadcastLocked(r, models.PresenceMessage{Type: models.EventPresence, Identities: remaining}, nil)
	}
	sm.notifyMirror(docID, remaining)

	log.Printf("  %s left document %s (connection %s, remaining: %d users)", identity, docID, c.ID, len(remaining))
}

// dropIfEmptyLocked removes an empty room from the manager. Caller holds r.mu.
func (sm *SessionManager) dropIfEmptyLocked(r *room) bool {
	if len(r.conns) > 0 {
		return false
	}
	r.closed = true
	sm.mu.Lock()
	if sm.rooms[r.id] == r {
		delete(sm.rooms, r.id)
	}
	sm.mu.Unlock()
	return true
}

func (sm *SessionManager) identityInRoom(r *room, identity string) bool {
	for conn := range r.conns {
		if _, id, _ := conn.binding(); id == identity {
			return true
		}
	}
	return false
}

// HandleMessage decodes one inbound frame and dispatches it.
// Failures are reported to the sender with syncError and never affect other connections.
func (sm *SessionManager) HandleMessage(ctx context.Context, c *Connection, raw []byte) error {
	ctx, span := middleware.StartSpan(ctx, "WebSocket.ProcessMessage",
		attribute.String("connection.id", c.ID),
		attribute.Int("message.size", len(raw)),
	)
	defer span.End()

	err := sm.dispatch(ctx, c, raw)
	if err != nil {
		middleware.AddSpanError(ctx, err)
		log.Printf("⚠️  Connection %s: %v", c.ID, err)
		if text := syncErrorText(err); text != "" {
			c.sendSyncError(text)
		}
	}
	return err
}

func (sm *SessionManager) dispatch(ctx context.Context, c *Connection, raw []byte) error {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	switch msg.Type {
	case models.EventJoin:
		return sm.Join(ctx, c, msg.DocID, msg.Identity)

	case models.EventChange:
		if msg.Content == nil {
			return fmt.Errorf("%w: change without content", ErrMalformedInput)
		}
		return sm.SubmitChange(ctx, c, msg.DocID, *msg.Content)

	case models.EventUpload:
		content := ""
		if msg.Content != nil {
			content = *msg.Content
		}
		return sm.UploadContent(ctx, c, msg.DocID, content, msg.Filename)

	case models.EventOperations:
		return sm.SubmitOperations(ctx, c, msg.DocID, ot.Decode(msg.Operations))

	default:
		return fmt.Errorf("%w: unknown event type %q", ErrMalformedInput, msg.Type)
	}
}

// broadcastLocked sends a message to every connection in the room except skip.
// Caller holds r.mu.
func (sm *SessionManager) broadcastLocked(r *room, v any, skip *Connection) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("⚠️  Failed to encode broadcast for document %s: %v", r.id, err)
		return
	}

	for conn := range r.conns {
		if conn == skip {
			continue
		}
		conn.enqueue(data)
	}
}

// persistLocked queues a write; enqueueing under the room lock keeps
// persisted order equal to broadcast order for the document.
func (sm *SessionManager) persistLocked(c *Connection, docID, content string, done func(error)) {
	err := sm.persister.Submit(services.PersistJob{
		DocumentID: docID,
		Content:    content,
		Done:       done,
	})
	if err != nil {
		log.Printf("⚠️  Failed to queue write for document %s: %v", docID, err)
		done(err)
	}
}

// Presence returns the local presence snapshot for a document
func (sm *SessionManager) Presence(docID string) models.PresenceSnapshot {
	return models.PresenceSnapshot{
		DocumentID: docID,
		Identities: sm.registry.Members(docID),
		Source:     "local",
	}
}

// ActiveDocuments lists the documents this process has collaborators on
func (sm *SessionManager) ActiveDocuments() []string {
	return sm.registry.Documents()
}

// ConnectionCount returns the number of live connections
// Learning: Useful for monitoring/debugging
func (sm *SessionManager) ConnectionCount() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.conns)
}

// notifyMirror records the latest presence for the mirror loop (coalesced per document)
func (sm *SessionManager) notifyMirror(docID string, identities []string) {
	if sm.mirror == nil {
		return
	}

	sm.pendingMu.Lock()
	sm.pending[docID] = identities
	sm.pendingMu.Unlock()

	select {
	case sm.mirrorWake <- struct{}{}:
	default:
	}
}

// mirrorLoop publishes presence changes and periodically refreshes every live
// document so mirror entries do not expire while users stay connected.
func (sm *SessionManager) mirrorLoop() {
	defer sm.wg.Done()

	ticker := time.NewTicker(sm.mirrorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			sm.flushMirror()
			return

		case <-sm.mirrorWake:
			sm.flushMirror()

		case <-ticker.C:
			for _, docID := range sm.registry.Documents() {
				sm.notifyMirror(docID, sm.registry.Members(docID))
			}
		}
	}
}

func (sm *SessionManager) flushMirror() {
	sm.pendingMu.Lock()
	batch := sm.pending
	sm.pending = make(map[string][]string)
	sm.pendingMu.Unlock()

	for docID, identities := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := sm.mirror.Publish(ctx, docID, identities); err != nil {
			log.Printf("⚠️  Failed to mirror presence for document %s: %v", docID, err)
		}
		cancel()
	}
}

// Shutdown gracefully closes all connections
func (sm *SessionManager) Shutdown() {
	sm.shutdownOnce.Do(func() {
		log.Println("🛑 Shutting down session manager...")

		sm.mu.Lock()
		close(sm.done)
		conns := make([]*Connection, 0, len(sm.conns))
		for c := range sm.conns {
			conns = append(conns, c)
		}
		sm.mu.Unlock()

		// Read pumps notice the closed sockets and run Disconnect
		for _, c := range conns {
			c.close()
		}

		sm.wg.Wait()
		log.Println("✓ Session manager shutdown complete")
	})
}
