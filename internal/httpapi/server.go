// Package httpapi exposes sessions over HTTP: JSON for views and commands,
// server-sent events for the live view stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/storefront/internal/dispatch"
	"github.com/roach88/storefront/internal/engine"
	"github.com/roach88/storefront/internal/metrics"
	"github.com/roach88/storefront/internal/session"
)

// DefaultCookieName carries the session id.
const DefaultCookieName = "storefront_session"

// DefaultViewWait bounds how long GET /api/view waits for a first view.
const DefaultViewWait = 2 * time.Second

// Options configures the handler.
type Options struct {
	CookieName string
	ViewWait   time.Duration
	Metrics    *metrics.Metrics
	// Gatherer serves /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server routes HTTP requests to sessions.
type Server struct {
	sessions *session.Manager
	opts     Options
	router   *mux.Router
	handler  http.Handler
}

// New builds the router.
func New(sessions *session.Manager, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.ViewWait <= 0 {
		opts.ViewWait = DefaultViewWait
	}

	s := &Server{sessions: sessions, opts: opts, router: mux.NewRouter()}
	s.routes()
	s.handler = WithRequestID(s.router)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(WithLogging(s.opts.Metrics))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleOpenSession).Methods(http.MethodPost)
	api.HandleFunc("/session", s.withSession(s.handleCloseSession)).Methods(http.MethodDelete)

	api.HandleFunc("/view", s.withSession(s.handleView)).Methods(http.MethodGet)
	api.HandleFunc("/view/events", s.withSession(s.handleViewEvents)).Methods(http.MethodGet)
	api.HandleFunc("/view/mode", s.withSession(s.handleMode)).Methods(http.MethodPost)
	api.HandleFunc("/view/reload", s.withSession(s.handleReload)).Methods(http.MethodPost)

	api.HandleFunc("/auth/signin", s.withSession(s.handleSignIn)).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", s.withSession(s.handleSignOut)).Methods(http.MethodPost)

	api.HandleFunc("/products", s.withAdmin(s.handleAddProduct)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}/stock", s.withAdmin(s.handleSetStock)).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}/toggle-stock", s.withAdmin(s.handleToggleStock)).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", s.withAdmin(s.handleDeleteProduct)).Methods(http.MethodDelete)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the session cookie.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.opts.CookieName)
		if err != nil {
			WriteJSONError(w, http.StatusUnauthorized, "No session.", "no_session", "open one with POST /api/session")
			return
		}
		sess, ok := s.sessions.Get(c.Value)
		if !ok {
			WriteJSONError(w, http.StatusUnauthorized, "Session expired.", "no_session", "")
			return
		}
		h(w, r, sess)
	}
}

// withAdmin additionally requires a signed-in principal.
func (s *Server) withAdmin(h sessionHandler) http.HandlerFunc {
	return s.withSession(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if sess.Identity.Current() == nil {
			WriteJSONError(w, http.StatusUnauthorized, "Please sign in.", "not_signed_in", "")
			return
		}
		h(w, r, sess)
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

type sessionResponse struct {
	Session string `json:"session"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Open()
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			WriteJSONError(w, http.StatusServiceUnavailable, "Server is shutting down.", "unavailable", "")
			return
		}
		WriteJSONError(w, http.StatusInternalServerError, "Could not open session.", "internal", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess.ID})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	s.sessions.Close(sess.ID)
	http.SetCookie(w, &http.Cookie{Name: s.opts.CookieName, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.ViewWait)
	defer cancel()

	v, ok := sess.View(ctx)
	if !ok {
		// Nothing is shown until the first snapshot arrives.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request.", "bad_request", err.Error())
		return
	}
	mode, err := engine.ParseViewMode(req.Mode)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request.", "bad_request", err.Error())
		return
	}
	sess.Reconciler.RequestMode(mode)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sess.Reconciler.Reload()
	w.WriteHeader(http.StatusAccepted)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req signInRequest
	if err := decodeBody(r, &req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Invalid request.", "bad_request", err.Error())
		return
	}
	if err := sess.Dispatcher.SignIn(r.Context(), req.Email, req.Password); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"principal": sess.Identity.Current()})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Dispatcher.SignOut(r.Context()); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var form dispatch.ProductForm
	if err := decodeBody(r, &form); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Failed to add product.", "bad_request", err.Error())
		return
	}
	fields, err := dispatch.ParseProductForm(form)
	if err != nil {
		writeCommandError(w, &dispatch.MutationError{Op: dispatch.OpAddProduct, Err: err})
		return
	}

	id, err := sess.Dispatcher.AddProduct(r.Context(), fields)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dispatch.Result{ID: id})
}

type stockRequest struct {
	InStock *bool `json:"inStock"`
}

func decodeStock(r *http.Request) (bool, error) {
	var req stockRequest
	if err := decodeBody(r, &req); err != nil {
		return false, err
	}
	if req.InStock == nil {
		return false, errors.New("inStock is required")
	}
	return *req.InStock, nil
}

func (s *Server) handleSetStock(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	inStock, err := decodeStock(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Failed to update stock status.", "bad_request", err.Error())
		return
	}
	if err := sess.Dispatcher.SetStock(r.Context(), mux.Vars(r)["id"], inStock); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleStock takes the stock value the client currently displays.
func (s *Server) handleToggleStock(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	current, err := decodeStock(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "Failed to update stock status.", "bad_request", err.Error())
		return
	}
	if err := sess.Dispatcher.ToggleStock(r.Context(), mux.Vars(r)["id"], current); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Dispatcher.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
