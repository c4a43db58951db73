// Package autosave keeps the latest project document sent by the editor
// over a websocket and writes it to the project repository periodically.
package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"

	"github.com/inamate/imageboard/internal/project"
	"github.com/inamate/imageboard/internal/typeid"
)

const flushTimeout = 30 * time.Second

// Saver writes a project document. project.Repository satisfies it.
type Saver interface {
	Save(ctx context.Context, id string, doc json.RawMessage) (project.Project, error)
}

type pendingDoc struct {
	doc    json.RawMessage
	seq    int64
	client string
}

type Hub struct {
	saver    Saver
	interval time.Duration
	validate func([]byte) error

	mu       sync.Mutex
	sessions map[string]*Client     // projectID -> client
	pending  map[string]*pendingDoc // projectID -> latest unsaved document

	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(saver Saver, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		saver:      saver,
		interval:   interval,
		validate:   project.Validate,
		sessions:   make(map[string]*Client),
		pending:    make(map[string]*pendingDoc),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and flushes on every tick until Stop.
func (h *Hub) Run() {
	defer close(h.done)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.flushWithTimeout()
		case <-h.stop:
			h.flushWithTimeout()
			h.closeAll()
			return
		}
	}
}

// Stop writes every pending document and closes all sessions. It returns
// once Run has exited.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// addClient makes client the only session for its project. A previous
// session is told it was replaced and closed.
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	old := h.sessions[client.ProjectID]
	h.sessions[client.ProjectID] = client
	h.mu.Unlock()

	if old != nil {
		old.Send(&Message{Type: TypeReplaced, ProjectID: old.ProjectID})
		old.closeSend()
		slog.Info("autosave session replaced", "project", client.ProjectID, "client", old.ClientID)
	}

	payload, _ := json.Marshal(WelcomePayload{
		ClientID:        client.ClientID,
		FlushIntervalMs: h.interval.Milliseconds(),
	})
	client.Send(&Message{Type: TypeWelcome, ProjectID: client.ProjectID, ClientID: client.ClientID, Payload: payload})
	slog.Info("autosave session opened", "project", client.ProjectID, "client", client.ClientID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if h.sessions[client.ProjectID] != client {
		// Already replaced; its channel is closed.
		h.mu.Unlock()
		return
	}
	delete(h.sessions, client.ProjectID)
	client.closeSend()
	h.mu.Unlock()

	slog.Info("autosave session closed", "project", client.ProjectID, "client", client.ClientID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.sessions {
		c.closeSend()
		delete(h.sessions, id)
	}
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypeDocSave:
		h.handleSave(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
	}
}

// handleSave validates the document on the sender's goroutine and keeps it
// as the project's latest unless the same client already sent a newer one.
func (h *Hub) handleSave(sender *Client, msg *Message) {
	var p SavePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || len(p.Document) == 0 {
		h.nack(sender, msg.Seq, "invalid save payload")
		return
	}
	if err := h.validate(p.Document); err != nil {
		slog.Warn("autosave rejected", "project", sender.ProjectID, "seq", msg.Seq, "error", err)
		h.nack(sender, msg.Seq, err.Error())
		return
	}

	h.mu.Lock()
	if cur, ok := h.pending[sender.ProjectID]; ok && cur.client == sender.ClientID && cur.seq > msg.Seq {
		h.mu.Unlock()
		h.nack(sender, msg.Seq, "stale document")
		return
	}
	h.pending[sender.ProjectID] = &pendingDoc{doc: p.Document, seq: msg.Seq, client: sender.ClientID}
	h.mu.Unlock()

	payload, _ := json.Marshal(AckPayload{Seq: msg.Seq})
	sender.Send(&Message{Type: TypeSaveAck, ProjectID: sender.ProjectID, Seq: msg.Seq, Payload: payload})
}

func (h *Hub) nack(c *Client, seq int64, reason string) {
	payload, _ := json.Marshal(NackPayload{Seq: seq, Reason: reason})
	c.Send(&Message{Type: TypeSaveNack, ProjectID: c.ProjectID, Seq: seq, Payload: payload})
}

// Pending reports whether projectID has an unsaved document.
func (h *Hub) Pending(projectID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.pending[projectID]
	return ok
}

// Flush writes every pending document. Documents that fail to save stay
// pending unless the project no longer exists.
func (h *Hub) Flush(ctx context.Context) error {
	h.mu.Lock()
	batch := h.pending
	h.pending = make(map[string]*pendingDoc)
	h.mu.Unlock()

	var result *multierror.Error
	for id, p := range batch {
		_, err := h.saver.Save(ctx, id, p.doc)
		switch {
		case err == nil:
			slog.Debug("autosaved project", "project", id, "seq", p.seq)
		case errors.Is(err, project.ErrNotFound):
			slog.Warn("dropping autosave for missing project", "project", id)
		default:
			result = multierror.Append(result, fmt.Errorf("autosave %s: %w", id, err))
			h.mu.Lock()
			if _, newer := h.pending[id]; !newer {
				h.pending[id] = p
			}
			h.mu.Unlock()
		}
	}
	return result.ErrorOrNil()
}

func (h *Hub) flushWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := h.Flush(ctx); err != nil {
		slog.Error("autosave flush failed", "error", err)
	}
}

// ServeWS upgrades GET /ws/autosave/{projectId}. Origins are full origins
// such as http://localhost:5173.
func (h *Hub) ServeWS(origins []string) http.HandlerFunc {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		patterns = append(patterns, o)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := mux.Vars(r)["projectId"]
		if err := typeid.Validate(projectID, typeid.PrefixProject); err != nil {
			http.Error(w, "invalid project id", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
		if err != nil {
			slog.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(h, conn, projectID, uuid.New().String())
		h.Register(client)

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}
