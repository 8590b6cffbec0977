// Package gameapi talks to the remote Hold'em service. The service owns the
// rules engine, the bots and the coach; this package only moves requests and
// snapshots over HTTP/JSON.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/acehigh/internal/game"
)

var (
	// ErrServiceUnavailable indicates a transport failure or a non-2xx response.
	ErrServiceUnavailable = errors.New("game service unavailable")

	// ErrStaleSession indicates the service no longer knows the game.
	ErrStaleSession = errors.New("stale session")
)

// StatusError carries a non-2xx response from the service
type StatusError struct {
	Route      string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Route, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Route, e.StatusCode)
}

// Is matches ErrServiceUnavailable for every status and ErrStaleSession for 404
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrServiceUnavailable:
		return true
	case ErrStaleSession:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Service routes
const (
	RouteCreate         = "/games/create"
	RouteStartHand      = "/games/start-hand"
	RoutePlayerAction   = "/games/player-action"
	RouteBotAction      = "/games/bot-action"
	RouteCoachQuestion  = "/games/coach-question"
	RouteRecommendation = "/games/coach-recommendation"
	RouteDelete         = "/games/delete/"
)

const maxResponseBytes = 1 << 20

// Client is an HTTP client for the game service
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithToken sends token as a bearer credential on every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger.WithPrefix("gameapi") }
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse service url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("service url must be http or https, got %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.Default().WithPrefix("gameapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type createRequest struct {
	PlayerNames []string  `json:"player_names"`
	BotIDs      []*string `json:"bot_ids"`
}

type createResponse struct {
	GameID string            `json:"game_id"`
	State  game.GameSnapshot `json:"state"`
}

type gameRequest struct {
	GameID string `json:"game_id"`
}

type stateResponse struct {
	GameState game.GameSnapshot `json:"game_state"`
}

type actionRequest struct {
	GameID string      `json:"game_id"`
	Action game.Action `json:"action"`
	Amount int         `json:"amount"`
}

type turnResponse struct {
	GameState    game.GameSnapshot `json:"game_state"`
	Status       game.TurnStatus   `json:"status"`
	TableComment string            `json:"table_comment,omitempty"`
	CommentIndex *int              `json:"comment_index,omitempty"`
	Winner       *winnerField      `json:"winner,omitempty"`
	ChipDelta    *int              `json:"chip_delta,omitempty"`
}

type questionRequest struct {
	GameID   string `json:"game_id"`
	Question string `json:"question"`
}

type questionResponse struct {
	Advice string `json:"advice"`
}

type recommendationResponse struct {
	Advice game.Recommendation `json:"advice"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// CreateSession creates a game. The human is seated at index 0 with a nil bot id.
func (c *Client) CreateSession(ctx context.Context, playerNames []string, botIDs []*string) (string, game.GameSnapshot, error) {
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, RouteCreate, createRequest{PlayerNames: playerNames, BotIDs: botIDs}, &resp); err != nil {
		return "", game.GameSnapshot{}, err
	}
	if resp.GameID == "" {
		return "", game.GameSnapshot{}, fmt.Errorf("%w: create returned no game id", ErrServiceUnavailable)
	}
	return resp.GameID, resp.State, nil
}

// StartHand deals a new hand
func (c *Client) StartHand(ctx context.Context, gameID string) (game.GameSnapshot, error) {
	var resp stateResponse
	if err := c.do(ctx, http.MethodPost, RouteStartHand, gameRequest{GameID: gameID}, &resp); err != nil {
		return game.GameSnapshot{}, err
	}
	return resp.GameState, nil
}

// SubmitPlayerAction submits the human's action. Amount is ignored by the
// service for actions that carry none.
func (c *Client) SubmitPlayerAction(ctx context.Context, gameID string, action game.Action, amount int) (game.TurnResult, error) {
	var resp turnResponse
	req := actionRequest{GameID: gameID, Action: action, Amount: amount}
	if err := c.do(ctx, http.MethodPost, RoutePlayerAction, req, &resp); err != nil {
		return game.TurnResult{}, err
	}
	return resp.result(), nil
}

// AdvanceBotTurn asks the service to play the acting bot's turn
func (c *Client) AdvanceBotTurn(ctx context.Context, gameID string) (game.TurnResult, error) {
	var resp turnResponse
	if err := c.do(ctx, http.MethodPost, RouteBotAction, gameRequest{GameID: gameID}, &resp); err != nil {
		return game.TurnResult{}, err
	}
	return resp.result(), nil
}

// AskCoach sends a free-form question to the coach
func (c *Client) AskCoach(ctx context.Context, gameID, question string) (string, error) {
	var resp questionResponse
	if err := c.do(ctx, http.MethodPost, RouteCoachQuestion, questionRequest{GameID: gameID, Question: question}, &resp); err != nil {
		return "", err
	}
	return resp.Advice, nil
}

// GetRecommendation fetches the coach's suggestion for the current state
func (c *Client) GetRecommendation(ctx context.Context, gameID string) (game.Recommendation, error) {
	var resp recommendationResponse
	if err := c.do(ctx, http.MethodPost, RouteRecommendation, gameRequest{GameID: gameID}, &resp); err != nil {
		return game.Recommendation{}, err
	}
	return resp.Advice, nil
}

// EndGame deletes the game on the service
func (c *Client) EndGame(ctx context.Context, gameID string) error {
	return c.do(ctx, http.MethodDelete, RouteDelete+url.PathEscape(gameID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, route string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", route, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+route, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", route, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, route, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request", "method", method, "route", route, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))

	limited := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Route: route, StatusCode: resp.StatusCode}
		var er errorResponse
		if data, _ := io.ReadAll(limited); len(data) > 0 {
			if json.Unmarshal(data, &er) == nil {
				statusErr.Detail = er.Detail
				if statusErr.Detail == "" {
					statusErr.Detail = er.Error
				}
			}
		}
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, limited)
		return nil
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrServiceUnavailable, route, err)
	}
	return nil
}

func (r turnResponse) result() game.TurnResult {
	res := game.TurnResult{
		Snapshot:  r.GameState,
		Status:    r.Status,
		ChipDelta: r.ChipDelta,
	}
	if res.Status == "" {
		res.Status = game.TurnInProgress
	}
	if r.TableComment != "" {
		n := &game.Narration{Text: r.TableComment, ActorIndex: -1}
		if r.CommentIndex != nil {
			n.ActorIndex = *r.CommentIndex
			if n.ActorIndex >= 0 && n.ActorIndex < len(r.GameState.Players) {
				n.ActorName = r.GameState.Players[n.ActorIndex].Name
			}
		}
		res.Narration = n
	}
	if r.Winner != nil {
		ref := r.Winner.resolve(&r.GameState)
		if ref.Index >= 0 {
			res.Winner = &ref
		}
	}
	return res
}

// winnerField accepts the shapes the service has used for the hand winner:
// a seat index, a player name, or a {index, name} object.
type winnerField struct {
	index *int
	name  string
}

func (w *winnerField) UnmarshalJSON(data []byte) error {
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		w.index = &idx
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		w.name = name
		return nil
	}
	var ref struct {
		Index *int   `json:"index"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("decode winner: %w", err)
	}
	w.index, w.name = ref.Index, ref.Name
	return nil
}

func (w winnerField) resolve(snap *game.GameSnapshot) game.PlayerRef {
	if w.index != nil && *w.index >= 0 && *w.index < len(snap.Players) {
		return game.PlayerRef{Index: *w.index, Name: snap.Players[*w.index].Name}
	}
	for i, p := range snap.Players {
		if w.name != "" && p.Name == w.name {
			return game.PlayerRef{Index: i, Name: p.Name}
		}
	}
	return game.PlayerRef{Index: -1, Name: w.name}
}
