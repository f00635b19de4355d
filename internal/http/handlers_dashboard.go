package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"saldo/internal/export"
	"saldo/internal/log"
	"saldo/internal/session"
	"saldo/internal/view"
)

const heartbeatInterval = 25 * time.Second

// viewStateKeys are the body fields a session update may carry.
var viewStateKeys = []string{"mode", "period", "year", "month", "filter", "chart", "select"}

func (s *Server) defaultState() view.State {
	return view.DefaultState(s.now(), s.loc)
}

// dashboardFor loads a snapshot and projects it for the request's view state.
func (s *Server) dashboardFor(r *http.Request) (view.Dashboard, error) {
	state, err := ParseViewState(r.URL.Query(), s.defaultState())
	if err != nil {
		return view.Dashboard{}, err
	}
	l, err := s.records.Snapshot(r.Context(), scopeOf(r))
	if err != nil {
		return view.Dashboard{}, err
	}
	return view.Build(l, state, s.now()), nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.dashboardFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d, err := s.dashboardFor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(d, s.now())))
	if err := export.Write(w, d); err != nil {
		// headers are gone; all that is left is to log
		log.FromContext(r.Context()).WithComponent(log.ComponentExport).ErrorContext(r.Context(), "Export failed",
			log.NewFields().WithOperation(log.OpExport).WithError(err).ToSlice()...)
	}
}

type sessionJSON struct {
	ID string `json:"id"`
}

// handleDashboardStream opens a live session and streams a dashboard as a
// server-sent event after every change. The first event names the session so
// the client can change its view state.
func (s *Server) handleDashboardStream(w http.ResponseWriter, r *http.Request) {
	state, err := ParseViewState(r.URL.Query(), s.defaultState())
	if err != nil {
		writeError(w, r, err)
		return
	}
	scope := scopeOf(r)
	logger := log.FromContext(r.Context())

	live := newLiveSession(uuid.NewString(), scope)
	live.session = session.New(s.records, scope, state, live.offer,
		session.WithLogger(logger), session.WithClock(s.now))
	s.sessions.add(live)
	defer s.sessions.remove(live.id)
	s.streams.Add(1)
	defer s.streams.Done()

	ctx, cancel := context.WithCancel(r.Context())
	runErr := make(chan error, 1)
	go func() { runErr <- live.session.Run(ctx) }()
	finished := false
	defer func() {
		cancel()
		if !finished {
			<-runErr
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	if err := writeEvent(w, rc, "session", sessionJSON{ID: live.id}); err != nil {
		return
	}
	logger.InfoContext(ctx, "Dashboard stream opened", "session_id", live.id)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopStreams:
			return
		case d := <-live.updates:
			if err := writeEvent(w, rc, "dashboard", d); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case err := <-runErr:
			finished = true
			if err != nil {
				status, code := statusFor(err)
				_ = writeEvent(w, rc, "error", errorBody{Error: code, Message: http.StatusText(status)})
			}
			return
		}
	}
}

func writeEvent(w io.Writer, rc *http.ResponseController, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return rc.Flush()
}

// handleSessionSelect applies a chart click: {"key": "income"}. An empty or
// unknown key clears the filter.
func (s *Server) handleSessionSelect(w http.ResponseWriter, r *http.Request) {
	live, err := s.sessions.get(r.PathValue("id"), scopeOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := NewRequestBodyParser(w, r, s.maxUpload)
	defer p.Close()
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	live.session.Select(p.Get("key"))
	NewJSONResponse().Body(stateJSON(live.session.State())).Write(w)
}

// handleSessionUpdate changes mode, period, filter or chart of a live session.
func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	live, err := s.sessions.get(r.PathValue("id"), scopeOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p := NewRequestBodyParser(w, r, s.maxUpload)
	defer p.Close()
	if err := p.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	q := url.Values{}
	for _, k := range viewStateKeys {
		if p.Has(k) {
			q.Set(k, p.Get(k))
		}
	}
	if _, err := ParseViewState(q, live.session.State()); err != nil {
		writeError(w, r, err)
		return
	}
	live.session.Update(func(cur view.State) view.State {
		if next, err := ParseViewState(q, cur); err == nil {
			return next
		}
		return cur
	})
	NewJSONResponse().Body(stateJSON(live.session.State())).Write(w)
}

type viewStateJSON struct {
	Mode   string `json:"mode"`
	Period string `json:"period"`
	Filter string `json:"filter"`
	Chart  string `json:"chart"`
}

func stateJSON(st view.State) viewStateJSON {
	return viewStateJSON{
		Mode:   string(st.Mode),
		Period: st.Period.String(),
		Filter: string(st.Filter),
		Chart:  string(st.Chart),
	}
}
