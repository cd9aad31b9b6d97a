// Package web provides the HTTP status page, command endpoint and live
// websocket feed for the hoist daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sweeney/hoist/internal/logic"
	"github.com/sweeney/hoist/internal/status"
)

// SourceWeb tags commands submitted over HTTP or the websocket.
const SourceWeb = "web"

// PushInterval is how often websocket clients receive a status frame.
const PushInterval = 500 * time.Millisecond

// Server serves the status page over HTTP and forwards commands to the
// control loop.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	queue      *logic.Queue
	log        zerolog.Logger

	upgrader  websocket.Upgrader
	clientsMu sync.RWMutex
	clients   map[int64]*wsClient
	nextID    int64

	startOnce sync.Once
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a Server that reads state from the given tracker and submits
// commands to queue. Submits never block; a full queue is reported to the
// caller as busy.
func New(addr string, tracker *status.Tracker, queue *logic.Queue, log zerolog.Logger) *Server {
	s := &Server{
		tracker: tracker,
		queue:   queue,
		log:     log,
		clients: make(map[int64]*wsClient),
		done:    make(chan struct{}),
	}
	// The websocket accepts commands, so only pages served by this host
	// may open it. The zero CheckOrigin enforces same origin.
	s.upgrader = websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/command", s.handleCommand)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	s.startOnce.Do(func() { go s.broadcastLoop() })
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	s.startOnce.Do(func() { go s.broadcastLoop() })
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and closes websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	s.clientsMu.Lock()
	for _, c := range s.clients {
		c.close()
	}
	s.clientsMu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		s.log.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// commandResponse is the JSON body returned by /command.
type commandResponse struct {
	Accepted string `json:"accepted,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleCommand accepts a POST form with cmd=<command> or floor=<1|2|3>.
// Schedule commands also take value=<seconds of day>.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeCommandResponse(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}

	cmd, err := parseForm(r)
	if err != nil {
		writeCommandResponse(w, http.StatusBadRequest, commandResponse{Error: err.Error()})
		return
	}
	if err := s.submit(cmd); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, logic.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		writeCommandResponse(w, code, commandResponse{Error: err.Error()})
		return
	}

	// Browser form posts go back to the page.
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeCommandResponse(w, http.StatusAccepted, commandResponse{Accepted: string(cmd.Type)})
}

func parseForm(r *http.Request) (logic.Command, error) {
	if f := r.PostForm.Get("floor"); f != "" {
		n, err := strconv.Atoi(f)
		if err != nil {
			return logic.Command{}, fmt.Errorf("bad floor %q", f)
		}
		ct, err := logic.FloorCommand(n)
		if err != nil {
			return logic.Command{}, err
		}
		return logic.Command{Type: ct, Source: SourceWeb}, nil
	}

	ct, err := logic.ParseCommandType(strings.TrimSpace(r.PostForm.Get("cmd")))
	if err != nil {
		return logic.Command{}, err
	}
	cmd := logic.Command{Type: ct, Source: SourceWeb}
	if cmd.IsSchedule() {
		v := r.PostForm.Get("value")
		n, err := strconv.Atoi(v)
		if err != nil {
			return logic.Command{}, fmt.Errorf("bad schedule value %q", v)
		}
		cmd.Value = n
	}
	return cmd, nil
}

func writeCommandResponse(w http.ResponseWriter, code int, body commandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) submit(cmd logic.Command) error {
	if err := s.queue.Submit(cmd); err != nil {
		return err
	}
	s.log.Debug().Str("cmd", string(cmd.Type)).Msg("command queued")
	return nil
}
