// Package gameapitest provides a fake game service. Tests script exact
// responses per route; the sandbox mode backs unscripted routes with a small
// in-process table so the client can be played without the hosted service.
package gameapitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	rand "math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/gameapi"
)

// Reply is a scripted response for one request
type Reply struct {
	Status int
	Body   any
	// Wait, when set, holds the response until it is closed or the
	// request is cancelled.
	Wait <-chan struct{}
}

// TurnReply is the wire shape of player-action and bot-action responses
type TurnReply struct {
	GameState    game.GameSnapshot `json:"game_state"`
	Status       game.TurnStatus   `json:"status"`
	TableComment string            `json:"table_comment,omitempty"`
	CommentIndex *int              `json:"comment_index,omitempty"`
	Winner       any               `json:"winner,omitempty"`
	ChipDelta    *int              `json:"chip_delta,omitempty"`
}

// CreateReply is the wire shape of the create response
type CreateReply struct {
	GameID string            `json:"game_id"`
	State  game.GameSnapshot `json:"state"`
}

// StateReply is the wire shape of the start-hand response
type StateReply struct {
	GameState game.GameSnapshot `json:"game_state"`
}

// Request is a request the server received
type Request struct {
	Method string
	Route  string
	Header http.Header
	Body   []byte
}

// Decode unmarshals the request body into v
func (r Request) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Server is a fake game service
type Server struct {
	engine *gin.Engine
	logger *log.Logger

	mu       sync.Mutex
	script   map[string][]Reply
	requests []Request
	tables   map[string]*Table
	sandbox  bool
	rng      *rand.Rand
	token    string
	origins  []string
	cors     bool
}

// Option configures a Server
type Option func(*Server)

// WithSandbox answers unscripted routes from in-process tables seeded with seed
func WithSandbox(seed uint64) Option {
	return func(s *Server) {
		s.sandbox = true
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithToken rejects requests that do not carry the bearer token
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithCORS allows browser clients from origins, or from anywhere when empty
func WithCORS(origins ...string) Option {
	return func(s *Server) {
		s.cors = true
		s.origins = origins
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) { s.logger = logger.WithPrefix("fake-service") }
}

// New creates a fake service
func New(opts ...Option) *Server {
	s := &Server{
		logger: log.New(io.Discard),
		script: make(map[string][]Reply),
		tables: make(map[string]*Table),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.record)
	if s.cors {
		cfg := cors.DefaultConfig()
		if len(s.origins) == 0 {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = s.origins
		}
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "X-Request-ID")
		r.Use(cors.New(cfg))
	}
	if s.token != "" {
		r.Use(s.authorize)
	}

	r.POST(gameapi.RouteCreate, s.handle(gameapi.RouteCreate, s.createGame))
	r.POST(gameapi.RouteStartHand, s.handle(gameapi.RouteStartHand, s.startHand))
	r.POST(gameapi.RoutePlayerAction, s.handle(gameapi.RoutePlayerAction, s.playerAction))
	r.POST(gameapi.RouteBotAction, s.handle(gameapi.RouteBotAction, s.botAction))
	r.POST(gameapi.RouteCoachQuestion, s.handle(gameapi.RouteCoachQuestion, s.coachQuestion))
	r.POST(gameapi.RouteRecommendation, s.handle(gameapi.RouteRecommendation, s.recommendation))
	r.DELETE(gameapi.RouteDelete+":id", s.handle(gameapi.RouteDelete, s.deleteGame))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	s.engine = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves on an httptest server closed when the test ends and returns its URL
func (s *Server) Start(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(s.engine)
	t.Cleanup(srv.Close)
	return srv.URL
}

// Enqueue scripts the next response for route
func (s *Server) Enqueue(route string, status int, body any) {
	s.EnqueueReply(route, Reply{Status: status, Body: body})
}

// EnqueueReply scripts the next response for route
func (s *Server) EnqueueReply(route string, reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reply.Status == 0 {
		reply.Status = http.StatusOK
	}
	s.script[route] = append(s.script[route], reply)
}

// Pending returns how many scripted responses for route are unused
func (s *Server) Pending(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script[route])
}

// Requests returns every request received, oldest first
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests hit route
func (s *Server) Count(route string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Route == route {
			n++
		}
	}
	return n
}

// Table returns the sandbox table for id
func (s *Server) Table(id string) (*Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	return t, ok
}

func (s *Server) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	route := c.FullPath()
	if strings.HasPrefix(route, gameapi.RouteDelete) {
		route = gameapi.RouteDelete
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: c.Request.Method,
		Route:  route,
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	start := time.Now()
	c.Next()
	s.logger.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
		"status", c.Writer.Status(), "request_id", c.GetHeader("X-Request-ID"), "elapsed", time.Since(start))
}

func (s *Server) authorize(c *gin.Context) {
	if c.Request.Method == http.MethodOptions || c.FullPath() == "/health" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
		return
	}
	c.Next()
}

func (s *Server) handle(route string, sandbox gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		queue := s.script[route]
		var (
			reply    Reply
			scripted = len(queue) > 0
		)
		if scripted {
			reply = queue[0]
			s.script[route] = queue[1:]
		}
		sandboxed := s.sandbox
		s.mu.Unlock()

		switch {
		case scripted:
			if reply.Wait != nil {
				select {
				case <-reply.Wait:
				case <-c.Request.Context().Done():
					return
				}
			}
			c.JSON(reply.Status, reply.Body)
		case sandboxed:
			sandbox(c)
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("no scripted reply for %s", route)})
		}
	}
}

type createRequest struct {
	PlayerNames []string  `json:"player_names" binding:"required"`
	BotIDs      []*string `json:"bot_ids"`
}

type gameRequest struct {
	GameID   string      `json:"game_id" binding:"required"`
	Action   game.Action `json:"action"`
	Amount   int         `json:"amount"`
	Question string      `json:"question"`
}

func (s *Server) createGame(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request"})
		return
	}
	id := uuid.NewString()

	s.mu.Lock()
	rng := rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
	s.mu.Unlock()

	t, err := NewTable(id, req.PlayerNames, req.BotIDs, rng)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	s.mu.Lock()
	s.tables[id] = t
	s.mu.Unlock()
	c.JSON(http.StatusOK, CreateReply{GameID: id, State: t.Snapshot()})
}

func (s *Server) lookup(c *gin.Context) (*Table, gameRequest, bool) {
	var req gameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "invalid request"})
		return nil, req, false
	}
	t, ok := s.Table(req.GameID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Game not found"})
		return nil, req, false
	}
	return t, req, true
}

func (s *Server) startHand(c *gin.Context) {
	t, _, ok := s.lookup(c)
	if !ok {
		return
	}
	snap, err := t.StartHand()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, StateReply{GameState: snap})
}

func (s *Server) playerAction(c *gin.Context) {
	t, req, ok := s.lookup(c)
	if !ok {
		return
	}
	out, err := t.Act(req.Action, req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, turnReply(out))
}

func (s *Server) botAction(c *gin.Context) {
	t, _, ok := s.lookup(c)
	if !ok {
		return
	}
	out, err := t.PlayBot()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, turnReply(out))
}

func (s *Server) coachQuestion(c *gin.Context) {
	t, req, ok := s.lookup(c)
	if !ok {
		return
	}
	rec := recommend(t.Snapshot())
	advice := rec.CoachTip
	if strings.TrimSpace(req.Question) != "" {
		advice = fmt.Sprintf("You asked %q. %s", req.Question, rec.CoachTip)
	}
	c.JSON(http.StatusOK, gin.H{"advice": advice})
}

func (s *Server) recommendation(c *gin.Context) {
	t, _, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"advice": recommend(t.Snapshot())})
}

func (s *Server) deleteGame(c *gin.Context) {
	s.mu.Lock()
	delete(s.tables, c.Param("id"))
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func turnReply(out TurnOutcome) TurnReply {
	r := TurnReply{
		GameState:    out.Snapshot,
		Status:       game.TurnInProgress,
		TableComment: out.Comment,
		ChipDelta:    out.ChipDelta,
	}
	if out.Comment != "" {
		idx := out.CommentIndex
		r.CommentIndex = &idx
	}
	if out.Complete {
		r.Status = game.TurnHandComplete
		if out.Winner != nil {
			r.Winner = out.Winner
		}
	}
	return r
}

// recommend gives a pot-odds flavoured suggestion for the human
func recommend(snap game.GameSnapshot) game.Recommendation {
	h := snap.Human()
	if h == nil || !snap.IsHumanTurn() {
		return game.Recommendation{CoachTip: "Wait for your turn and watch how the bots bet.", Action: ""}
	}
	switch {
	case h.CanAct(game.ActionCheck):
		return game.Recommendation{CoachTip: "Nothing to call. Take the free card.", Action: string(game.ActionCheck)}
	case h.CallAmount*4 <= snap.TotalPot:
		return game.Recommendation{
			CoachTip: fmt.Sprintf("Calling %d into a pot of %d is a good price.", h.CallAmount, snap.TotalPot),
			Action:   string(game.ActionCall),
		}
	default:
		return game.Recommendation{
			CoachTip: fmt.Sprintf("Calling %d into a pot of %d needs a strong hand.", h.CallAmount, snap.TotalPot),
			Action:   string(game.ActionFold),
		}
	}
}
