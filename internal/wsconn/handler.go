// Package wsconn binds one client websocket to one tutoring session.
package wsconn

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"signconnect/tutor/internal/auth"
	"signconnect/tutor/internal/store"
	"signconnect/tutor/internal/tutor"
	"signconnect/tutor/internal/types"
)

// DepsFunc builds the collaborators for one session.
type DepsFunc func(sessionID string) tutor.Deps

type Server struct {
	Store   *store.Store
	Signer  *auth.Signer
	Reg     *Registry
	Options tutor.Options
	Deps    DepsFunc
	// OriginPatterns are host patterns accepted besides same-origin.
	OriginPatterns []string
}

func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID, err := s.resolveSession(q.Get("session_id"), q.Get("token"))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, store.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	if err := s.Store.MarkConnected(sessionID); err != nil {
		http.Error(w, "session already connected", http.StatusConflict)
		return
	}

	w.Header().Set("X-Session-Id", sessionID)
	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: s.OriginPatterns})
	if err != nil {
		log.Printf("[ws] accept sid=%s: %v", sessionID, err)
		s.Store.MarkEnded(sessionID, time.Now())
		return
	}
	c.SetReadLimit(1 << 20)
	s.Reg.Add(sessionID, c)
	s.Store.AppendEvent(sessionID, "client_connected", map[string]any{"remote": r.RemoteAddr})
	log.Printf("[ws] connected sid=%s remote=%s", sessionID, r.RemoteAddr)

	reason := s.serve(r.Context(), c, sessionID)

	s.Reg.Remove(sessionID)
	s.Store.MarkEnded(sessionID, time.Now())
	s.Store.AppendEvent(sessionID, "client_disconnected", map[string]any{"reason": reason})
	log.Printf("[ws] disconnected sid=%s reason=%s", sessionID, reason)
	_ = c.Close(ws.StatusNormalClosure, "bye")
}

// serve runs the session until the socket closes and returns why it ended.
func (s *Server) serve(parent context.Context, c *ws.Conn, sessionID string) string {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var deps tutor.Deps
	if s.Deps != nil {
		deps = s.Deps(sessionID)
	}
	if deps.Recorder == nil {
		deps.Recorder = s.Store
	}
	orch := tutor.New(sessionID, s.Options, deps)
	go func() { _ = orch.Run(ctx) }()

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-orch.Outbound():
				wctx, wcancel := context.WithTimeout(ctx, 10*time.Second)
				err := wsjson.Write(wctx, c, msg)
				wcancel()
				if err != nil {
					writeErr <- err
					cancel()
					return
				}
			}
		}
	}()

	reason := "client_closed"
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			select {
			case werr := <-writeErr:
				reason = "write_failed: " + werr.Error()
			default:
				if st := ws.CloseStatus(err); st == -1 {
					reason = "read_failed: " + err.Error()
				}
			}
			break
		}
		if typ != ws.MessageText {
			continue
		}
		if !orch.Submit(data) {
			reason = "session_ended"
			break
		}
	}
	cancel()
	<-orch.Done()
	return reason
}

// resolveSession picks the session for a new connection. With auth enabled
// the session must exist and the token must match it; otherwise an unknown
// or missing id gets a fresh session.
func (s *Server) resolveSession(sessionID, token string) (string, error) {
	if s.Signer.Enabled() {
		if sessionID == "" || token == "" {
			return "", errors.New("missing session_id or token")
		}
		if s.Store.GetSession(sessionID) == nil {
			return "", store.ErrSessionNotFound
		}
		if _, err := s.Signer.Verify(token, sessionID, time.Now()); err != nil {
			return "", err
		}
		return sessionID, nil
	}
	if sessionID != "" && s.Store.GetSession(sessionID) != nil {
		return sessionID, nil
	}
	id := uuid.NewString()
	if err := s.Store.CreateSession(&types.Session{ID: id, CreatedAt: time.Now().UTC()}); err != nil {
		return "", err
	}
	s.Store.AppendEvent(id, "session_created", map[string]any{"anonymous": true})
	return id, nil
}
