package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/config"
	"github.com/richard-senior/leaguesim/pkg/league"
	"github.com/richard-senior/leaguesim/pkg/transport"
)

// Client reads standings and fixtures from the SofaScore api.
// Responses are cached in memory per url and, when CacheDir is set, on disk for the day.
type Client struct {
	BaseURL    string
	CacheDir   string
	UseBrowser bool
	PageSize   int

	mu      sync.Mutex
	memory  map[string][]byte
	browser *browserSession
	// replaces the headless browser when set
	browserGet func(ctx context.Context, url string) ([]byte, error)
}

func NewClient(cfg *config.LeaguesimConfig) *Client {
	c := &Client{
		BaseURL:    cfg.BaseURL,
		UseBrowser: cfg.UseBrowser,
		PageSize:   cfg.FixturePageSize,
		memory:     map[string][]byte{},
	}
	if cfg.UseDiskCache {
		c.CacheDir = cfg.CachePath
	}
	if c.PageSize <= 0 {
		c.PageSize = 30
	}
	return c
}

// Close shuts down the headless browser if one was started
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.close()
	c.browser = nil
	return err
}

/////////////////////////////////////////////////////////////////////////
////// Fetching and caching
/////////////////////////////////////////////////////////////////////////

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

var cacheNameReplacer = strings.NewReplacer("/", "-", "?", "-", "&", "-", "=", "-")

func (c *Client) cacheFile(path string) string {
	if c.CacheDir == "" {
		return ""
	}
	name := time.Now().Format("2006-01-02") + "-" + cacheNameReplacer.Replace(strings.Trim(path, "/")) + ".json"
	return filepath.Join(c.CacheDir, name)
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	url := c.url(path)
	c.mu.Lock()
	if data, ok := c.memory[url]; ok {
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	cacheFile := c.cacheFile(path)
	if cacheFile != "" {
		if data, err := os.ReadFile(cacheFile); err == nil {
			logger.Debug("Loaded from cache:", cacheFile)
			c.remember(url, data)
			return data, nil
		}
	}

	var data []byte
	var err error
	if c.UseBrowser {
		data, err = c.browserFetch(ctx, url)
	} else {
		data, err = transport.Get(ctx, url)
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusForbidden {
			logger.Warn("Plain http refused, retrying through the browser:", url)
			data, err = c.browserFetch(ctx, url)
		}
	}
	if err != nil {
		return nil, err
	}

	c.remember(url, data)
	if cacheFile != "" {
		if err := os.MkdirAll(c.CacheDir, 0755); err != nil {
			logger.Warn("Failed to create cache directory", err)
		} else if err := os.WriteFile(cacheFile, data, 0644); err != nil {
			logger.Warn("Failed to write cache file", cacheFile, err)
		}
	}
	return data, nil
}

func (c *Client) remember(url string, data []byte) {
	c.mu.Lock()
	c.memory[url] = data
	c.mu.Unlock()
}

func (c *Client) browserFetch(ctx context.Context, url string) ([]byte, error) {
	if c.browserGet != nil {
		return c.browserGet(ctx, url)
	}
	c.mu.Lock()
	if c.browser == nil {
		b, err := startBrowser()
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.browser = b
	}
	b := c.browser
	c.mu.Unlock()
	return b.fetch(ctx, url)
}

/////////////////////////////////////////////////////////////////////////
////// Endpoints
/////////////////////////////////////////////////////////////////////////

// CurrentSeasonID returns the most recent season of a tournament
func (c *Client) CurrentSeasonID(ctx context.Context, tournament int) (int, error) {
	data, err := c.fetch(ctx, fmt.Sprintf("unique-tournament/%d/seasons", tournament))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch seasons for tournament %d: %w", tournament, err)
	}
	return ParseCurrentSeason(data)
}

// Standings fetches one of the total, home or away tables
func (c *Client) Standings(ctx context.Context, tournament, season int, kind StandingsKind) (league.StandingsTable, error) {
	data, err := c.fetch(ctx, standingsPath(tournament, season, kind))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s standings: %w", kind, err)
	}
	return ParseStandings(data)
}

// TeamColours reads kit colours from the total standings
func (c *Client) TeamColours(ctx context.Context, tournament, season int) (map[string]TeamColours, error) {
	data, err := c.fetch(ctx, standingsPath(tournament, season, StandingsTotal))
	if err != nil {
		return nil, err
	}
	return ParseTeamColours(data)
}

func standingsPath(tournament, season int, kind StandingsKind) string {
	return fmt.Sprintf("unique-tournament/%d/season/%d/standings/%s", tournament, season, kind)
}

// RemainingFixtures pages through upcoming events until a short or empty page
func (c *Client) RemainingFixtures(ctx context.Context, tournament, season int) ([]league.Fixture, error) {
	var all []league.Fixture
	for page := 0; ; page++ {
		data, err := c.fetch(ctx, fmt.Sprintf("unique-tournament/%d/season/%d/events/next/%d", tournament, season, page))
		var statusErr *transport.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			logger.Debug("No more fixture pages after", page)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch fixtures page %d: %w", page, err)
		}
		fixtures, events, err := ParseEvents(data)
		if err != nil {
			return nil, err
		}
		all = append(all, fixtures...)
		logger.Debug("Fixtures page", page, "events", events, "not started", len(fixtures))
		if events < c.PageSize {
			break
		}
	}
	logger.Info("Found", len(all), "remaining fixtures")
	return all, nil
}

// FetchSnapshot gathers everything a forecast needs for the current season of a tournament
func (c *Client) FetchSnapshot(ctx context.Context, tournament int) (*Snapshot, error) {
	season, err := c.CurrentSeasonID(ctx, tournament)
	if err != nil {
		return nil, err
	}
	overall, err := c.Standings(ctx, tournament, season, StandingsTotal)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		League:       leagueName(tournament),
		TournamentID: tournament,
		SeasonID:     season,
		Standings:    league.Standings{Overall: overall},
		FetchedAt:    time.Now().UTC(),
	}
	// the split tables only sharpen the rates, so a failure just falls back to the overall rate
	if home, err := c.Standings(ctx, tournament, season, StandingsHome); err != nil {
		logger.Warn("Home standings unavailable:", err)
	} else {
		snap.Standings.Home = home
	}
	if away, err := c.Standings(ctx, tournament, season, StandingsAway); err != nil {
		logger.Warn("Away standings unavailable:", err)
	} else {
		snap.Standings.Away = away
	}
	if colours, err := c.TeamColours(ctx, tournament, season); err == nil {
		snap.Colours = colours
	}

	snap.Fixtures, err = c.RemainingFixtures(ctx, tournament, season)
	if err != nil {
		return nil, err
	}
	logger.Info("Fetched", snap.League, "season", season, "teams", len(overall), "fixtures", len(snap.Fixtures))
	return snap, nil
}
