package dummy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ServerConfig shapes the stub's behaviour. Zero values mean "behave like a
// healthy service".
type ServerConfig struct {
	Port int

	// Force a status on pull request creation instead of the normal 201/404/409.
	CreateStatus int

	// Fraction of create calls answered with 500.
	ErrorRate float64

	// Each request sleeps a random time in [0, Jitter).
	Jitter time.Duration

	// Treat every user id as known, even before a team is added.
	OpenRoster bool
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type member struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

type team struct {
	TeamName string   `json:"team_name"`
	Members  []member `json:"members"`
}

type pullRequest struct {
	ID        string   `json:"pull_request_id"`
	Name      string   `json:"pull_request_name"`
	AuthorID  string   `json:"author_id"`
	Status    string   `json:"status"`
	Reviewers []string `json:"assigned_reviewers"`
}

// Server is an in-memory stand-in for the review-assignment service: it
// answers the four endpoints the load scripts use and exposes its own
// request metrics on /metrics.
type Server struct {
	cfg ServerConfig
	log *zap.Logger

	mu    sync.Mutex
	teams map[string]team
	users map[string]member
	prs   map[string]pullRequest

	// user id -> team name
	teamOf map[string]string

	hits sync.Map // path -> *int64

	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewServer(cfg ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		teams:    make(map[string]team),
		users:    make(map[string]member),
		teamOf:   make(map[string]string),
		prs:      make(map[string]pullRequest),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"method", "path", "status"}),
	}
	s.registry.MustRegister(s.requests, s.latency)
	return s
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Post("/team/add", s.addTeam)
	r.Post("/pullRequest/create", s.createPR)
	r.Get("/users/getReview", s.getReview)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int64 {
	v, ok := s.hits.Load(path)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, _ := s.hits.LoadOrStore(r.URL.Path, new(int64))
		atomic.AddInt64(v.(*int64), 1)

		if s.cfg.Jitter > 0 {
			time.Sleep(time.Duration(rand.Int64N(int64(s.cfg.Jitter))))
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		s.requests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		s.latency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) addTeam(w http.ResponseWriter, r *http.Request) {
	var t team
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil || t.TeamName == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid team payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[t.TeamName]; ok {
		writeError(w, http.StatusBadRequest, "TEAM_EXISTS", t.TeamName+" already exists")
		return
	}
	s.teams[t.TeamName] = t
	for _, m := range t.Members {
		s.users[m.UserID] = m
		s.teamOf[m.UserID] = t.TeamName
	}
	writeJSON(w, http.StatusCreated, map[string]team{"team": t})
}

func (s *Server) createPR(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CreateStatus != 0 {
		writeError(w, s.cfg.CreateStatus, "FORCED", "forced status")
		return
	}
	if s.cfg.ErrorRate > 0 && rand.Float64() < s.cfg.ErrorRate {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "injected failure")
		return
	}

	var req struct {
		ID       string `json:"pull_request_id"`
		Name     string `json:"pull_request_name"`
		AuthorID string `json:"author_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || req.AuthorID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid pull request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownLocked(req.AuthorID) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "author "+req.AuthorID+" not found")
		return
	}
	if _, ok := s.prs[req.ID]; ok {
		writeError(w, http.StatusConflict, "PR_EXISTS", "pull request "+req.ID+" already exists")
		return
	}

	pr := pullRequest{
		ID:        req.ID,
		Name:      req.Name,
		AuthorID:  req.AuthorID,
		Status:    "OPEN",
		Reviewers: s.pickReviewersLocked(req.AuthorID, 2),
	}
	s.prs[pr.ID] = pr
	writeJSON(w, http.StatusCreated, map[string]pullRequest{"pr": pr})
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "user_id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownLocked(userID) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("user %s not found", userID))
		return
	}

	var assigned []pullRequest
	for _, pr := range s.prs {
		for _, rv := range pr.Reviewers {
			if rv == userID {
				assigned = append(assigned, pr)
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       userID,
		"pull_requests": assigned,
	})
}

func (s *Server) knownLocked(userID string) bool {
	if s.cfg.OpenRoster {
		return true
	}
	_, ok := s.users[userID]
	return ok
}

// pickReviewersLocked assigns up to n random active members of the
// author's team, never the author. An author with no team gets none.
func (s *Server) pickReviewersLocked(author string, n int) []string {
	t, ok := s.teams[s.teamOf[author]]
	if !ok {
		return nil
	}

	var candidates []string
	for _, m := range t.Members {
		if m.UserID != author && m.IsActive {
			candidates = append(candidates, m.UserID)
		}
	}
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates[:min(n, len(candidates))]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

// Start binds cfg.Port and serves in the background. The port is bound
// before Start returns, so a busy port is an error here. Port 0 picks a
// free port; the returned server's Addr holds the one bound.
func Start(cfg ServerConfig, log *zap.Logger) (*http.Server, error) {
	s := NewServer(cfg, log)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("dummy server listen: %w", err)
	}

	server := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: s.Handler(),
	}

	s.log.Info("dummy server listening",
		zap.String("addr", server.Addr),
		zap.Strings("endpoints", []string{"/team/add", "/pullRequest/create", "/users/getReview", "/metrics"}),
	)

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("dummy server failed", zap.Error(err))
		}
	}()
	return server, nil
}
