package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tidemark-ai/coxswain/internal/core/domain"
	"github.com/tidemark-ai/coxswain/internal/logger"
)

const (
	DefaultTimeout  = 5 * time.Second
	MaxResponseSize = 4 * 1024 * 1024 // leaderboard payloads are small

	DefaultMaxIdleConnections = 4
	DefaultIdleConnTimeout    = 60 * time.Second

	breakerInterval     = 60 * time.Second
	breakerOpenDuration = 5 * time.Minute
	breakerTripAfter    = 3
)

// Config for the external fetchers. When Enabled is false every lookup
// serves the static tables without touching the network.
type Config struct {
	Enabled  bool
	ArenaURL string
	MTEBURL  string
	Timeout  time.Duration
}

// EvalFeed supplies internal evaluation metrics per model. The default
// feed returns the seed table; deployments override it to pull from
// their evaluation pipeline.
type EvalFeed func(ctx context.Context) (map[string]map[string]float64, error)

// HTTPLeaderboardClient fetches external rankings with bounded timeouts
// and a circuit breaker per source. Any upstream failure substitutes the
// static fallback table; callers of ArenaRatings/MTEBScores never see an
// error.
type HTTPLeaderboardClient struct {
	httpClient   *http.Client
	cfg          Config
	evalFeed     EvalFeed
	arenaBreaker *gobreaker.CircuitBreaker[[]byte]
	mtebBreaker  *gobreaker.CircuitBreaker[[]byte]
	logger       *logger.StyledLogger
}

func NewHTTPLeaderboardClient(cfg Config, evalFeed EvalFeed, logger *logger.StyledLogger) *HTTPLeaderboardClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if evalFeed == nil {
		evalFeed = func(ctx context.Context) (map[string]map[string]float64, error) {
			return StaticInternalEvaluations(), nil
		}
	}

	return &HTTPLeaderboardClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    DefaultMaxIdleConnections,
				IdleConnTimeout: DefaultIdleConnTimeout,
			},
		},
		cfg:          cfg,
		evalFeed:     evalFeed,
		arenaBreaker: newSourceBreaker(domain.SourceArenaLeaderboard),
		mtebBreaker:  newSourceBreaker(domain.SourceMTEBScores),
		logger:       logger,
	}
}

func newSourceBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripAfter
		},
	})
}

// ArenaRatings returns model->Elo. Falls back to the static table on any
// failure and reports the payload actually used.
func (c *HTTPLeaderboardClient) ArenaRatings(ctx context.Context) (map[string]float64, []byte) {
	if !c.cfg.Enabled {
		return fallbackRatings(StaticArenaRatings())
	}

	payload, err := c.arenaBreaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, domain.SourceArenaLeaderboard, c.cfg.ArenaURL)
	})
	if err != nil {
		c.logger.WarnWithSource("falling back to static rankings", domain.SourceArenaLeaderboard, "error", err)
		return fallbackRatings(StaticArenaRatings())
	}

	ratings, err := parseArenaPayload(payload)
	if err != nil {
		c.logger.WarnWithSource("malformed payload, falling back to static rankings", domain.SourceArenaLeaderboard, "error", err)
		return fallbackRatings(StaticArenaRatings())
	}

	return ratings, payload
}

// MTEBScores returns model->benchmark score with the same fallback
// discipline as ArenaRatings.
func (c *HTTPLeaderboardClient) MTEBScores(ctx context.Context) (map[string]float64, []byte) {
	if !c.cfg.Enabled {
		return fallbackRatings(StaticMTEBScores())
	}

	payload, err := c.mtebBreaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, domain.SourceMTEBScores, c.cfg.MTEBURL)
	})
	if err != nil {
		c.logger.WarnWithSource("falling back to static scores", domain.SourceMTEBScores, "error", err)
		return fallbackRatings(StaticMTEBScores())
	}

	scores, err := parseMTEBPayload(payload)
	if err != nil {
		c.logger.WarnWithSource("malformed payload, falling back to static scores", domain.SourceMTEBScores, "error", err)
		return fallbackRatings(StaticMTEBScores())
	}

	return scores, payload
}

// InternalEvaluations pulls the local evaluation feed. A failure here is
// surfaced: it fails the current refresh cycle only, never the service.
func (c *HTTPLeaderboardClient) InternalEvaluations(ctx context.Context) (map[string]map[string]float64, []byte, error) {
	evals, err := c.evalFeed(ctx)
	if err != nil {
		return nil, nil, &domain.RefreshError{Source: domain.SourceInternalEvals, Err: err}
	}

	payload, err := json.Marshal(evals)
	if err != nil {
		return nil, nil, &domain.RefreshError{Source: domain.SourceInternalEvals, Err: err}
	}

	return evals, payload, nil
}

func (c *HTTPLeaderboardClient) fetch(ctx context.Context, source, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.FetchError{
			Source:     source,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &domain.FetchError{Source: source, URL: url, Err: err}
	}

	return body, nil
}

// arenaPayload mirrors the leaderboard export shape: a table of entries
// keyed by model with a numeric rating.
type arenaPayload struct {
	LeaderboardTable []struct {
		Key    string  `json:"key"`
		Rating float64 `json:"rating"`
	} `json:"leaderboard_table_df"`
}

func parseArenaPayload(payload []byte) (map[string]float64, error) {
	var parsed arenaPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.LeaderboardTable) == 0 {
		return nil, fmt.Errorf("empty leaderboard table")
	}

	ratings := make(map[string]float64, len(parsed.LeaderboardTable))
	for _, entry := range parsed.LeaderboardTable {
		if entry.Key == "" {
			continue
		}
		ratings[entry.Key] = entry.Rating
	}
	return ratings, nil
}

type mtebPayload struct {
	Data []struct {
		Model string  `json:"model"`
		Score float64 `json:"score"`
	} `json:"data"`
}

func parseMTEBPayload(payload []byte) (map[string]float64, error) {
	var parsed mtebPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("empty score table")
	}

	scores := make(map[string]float64, len(parsed.Data))
	for _, entry := range parsed.Data {
		if entry.Model == "" {
			continue
		}
		scores[entry.Model] = entry.Score
	}
	return scores, nil
}

func fallbackRatings(table map[string]float64) (map[string]float64, []byte) {
	payload, _ := json.Marshal(table)
	return table, payload
}
