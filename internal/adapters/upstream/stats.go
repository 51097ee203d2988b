package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/okian/boxscore/internal/domain/model"
)

// eventIDWidth is the zero-padded width of event ids in stats service paths.
const eventIDWidth = 10

// FetchFinalEvents lists the events the stats service reports as final.
func (c *Client) FetchFinalEvents(ctx context.Context) ([]model.FinalEvent, error) {
	const endpoint = "finals"
	body, err := c.request(ctx, c.stats, endpoint, http.MethodGet, c.baseURL+"/games/finals")
	if err != nil {
		return nil, err
	}

	var resp finalsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(endpoint, err)
	}

	out := make([]model.FinalEvent, 0, len(resp.Games))
	for _, g := range resp.Games {
		id, ok := g.GameID.Int64()
		if !ok {
			c.skip(ctx, endpoint, "game_id", g.GameID.raw)
			continue
		}
		date, _ := parseCalendarDate(g.GameDate)
		out = append(out, model.FinalEvent{ID: id, Date: date, StatusText: strings.TrimSpace(g.Status)})
	}
	return out, nil
}

// FetchEventDetail returns the per-subject and per-side lines of one event.
// Subject lines without a numeric subject id are dropped.
func (c *Client) FetchEventDetail(ctx context.Context, eventID int64) (model.EventDetail, error) {
	const endpoint = "boxscore"
	u := fmt.Sprintf("%s/games/%0*d/boxscore", c.baseURL, eventIDWidth, eventID)
	body, err := c.request(ctx, c.stats, endpoint, http.MethodGet, u)
	if err != nil {
		return model.EventDetail{}, err
	}

	var resp boxscoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.EventDetail{}, malformed(endpoint, err)
	}
	if resp.Players == nil {
		return model.EventDetail{}, malformed(endpoint, fmt.Errorf("event %d: missing players", eventID))
	}

	detail := model.EventDetail{
		EventID:  eventID,
		Subjects: make([]model.SubjectLine, 0, len(resp.Players)),
		Sides:    make([]model.SideLine, 0, len(resp.Teams)),
	}
	for _, t := range resp.Teams {
		id, ok := t.TeamID.Int64()
		if !ok {
			c.skip(ctx, endpoint, "team_id", t.TeamID.raw)
			continue
		}
		detail.Sides = append(detail.Sides, model.SideLine{TeamID: id, Abbreviation: t.TeamAbbr, Points: t.Pts.v})
	}
	for _, p := range resp.Players {
		id, ok := p.PlayerID.Int64()
		if !ok {
			c.skip(ctx, endpoint, "player_id", p.PlayerID.raw)
			continue
		}
		detail.Subjects = append(detail.Subjects, model.SubjectLine{
			SubjectID:   id,
			SubjectName: p.PlayerName,
			TeamID:      p.TeamID.ptr(),
			TeamAbbr:    p.TeamAbbr,
			Stats:       p.stats(),
		})
	}
	return detail, nil
}

// FetchRecentLog returns up to limit of the subject's most recent events.
func (c *Client) FetchRecentLog(ctx context.Context, subjectID int64, limit int) ([]model.LogEntry, error) {
	const endpoint = "gamelog"
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	u := fmt.Sprintf("%s/players/%d/gamelog?%s", c.baseURL, subjectID, q.Encode())
	body, err := c.request(ctx, c.stats, endpoint, http.MethodGet, u)
	if err != nil {
		return nil, err
	}

	var resp gamelogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(endpoint, err)
	}

	out := make([]model.LogEntry, 0, len(resp.Games))
	for _, g := range resp.Games {
		id, ok := g.GameID.Int64()
		if !ok {
			c.skip(ctx, endpoint, "game_id", g.GameID.raw)
			continue
		}
		date, _ := parseCalendarDate(g.GameDate)
		out = append(out, model.LogEntry{
			EventID: id,
			Date:    date,
			Matchup: strings.TrimSpace(g.Matchup),
			Result:  strings.ToUpper(strings.TrimSpace(g.WL)),
			Stats:   g.stats(),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Warmup asks the stats service to rebuild its derived tables.
func (c *Client) Warmup(ctx context.Context) error {
	_, err := c.request(ctx, c.stats, "warmup", http.MethodPost, c.baseURL+"/team-differentials/refresh")
	return err
}
