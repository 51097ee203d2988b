package upstream

import (
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/okian/boxscore/internal/domain/model"
	"github.com/okian/boxscore/pkg/logger"
)

// FetchTodayScoreboard returns today's events from the live feed. Events
// without a numeric id are dropped.
func (c *Client) FetchTodayScoreboard(ctx context.Context) ([]model.Event, error) {
	const endpoint = "scoreboard"
	body, err := c.request(ctx, c.feeds, endpoint, http.MethodGet, c.liveURL)
	if err != nil {
		return nil, err
	}

	var resp scoreboardResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(endpoint, err)
	}

	date, ok := parseCalendarDate(resp.Scoreboard.GameDate)
	if !ok {
		date = model.DateOf(c.now(), c.loc)
	}

	events := make([]model.Event, 0, len(resp.Scoreboard.Games))
	for _, g := range resp.Scoreboard.Games {
		id, ok := g.GameID.Int64()
		if !ok {
			c.skip(ctx, endpoint, "event id", g.GameID.raw)
			continue
		}
		events = append(events, g.event(id, date))
	}
	return events, nil
}

// FetchFullSchedule returns every event of the season schedule. Date groups
// whose date cannot be parsed are dropped rather than guessed.
func (c *Client) FetchFullSchedule(ctx context.Context) ([]model.Event, error) {
	const endpoint = "schedule"
	body, err := c.request(ctx, c.feeds, endpoint, http.MethodGet, c.scheduleURL)
	if err != nil {
		return nil, err
	}

	var resp scheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(endpoint, err)
	}
	if resp.LeagueSchedule.GameDates == nil {
		return nil, malformed(endpoint, fmt.Errorf("missing leagueSchedule.gameDates"))
	}

	var events []model.Event
	for _, group := range resp.LeagueSchedule.GameDates {
		date, ok := parseCalendarDate(group.GameDate)
		if !ok {
			c.skip(ctx, endpoint, "game date", group.GameDate)
			continue
		}
		for _, g := range group.Games {
			id, ok := g.GameID.Int64()
			if !ok {
				c.skip(ctx, endpoint, "event id", g.GameID.raw)
				continue
			}
			events = append(events, g.event(id, date))
		}
	}
	return events, nil
}

// skip logs a payload entry dropped for a malformed field.
func (c *Client) skip(ctx context.Context, endpoint, field, value string) {
	c.logger.Warn(ctx, "skipping malformed upstream entry",
		logger.String("endpoint", endpoint),
		logger.String("field", field),
		logger.String("value", value),
		logger.Error(model.ErrMalformedPayload))
}
