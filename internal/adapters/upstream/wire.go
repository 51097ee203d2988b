package upstream

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/okian/boxscore/internal/domain/model"
	"github.com/shopspring/decimal"
)

// flexID accepts an id encoded as a JSON number or string. It never fails
// to unmarshal; Int64 reports whether the value is a usable numeric id.
type flexID struct {
	raw string
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		f.raw = ""
		return nil
	}
	f.raw = strings.TrimSpace(strings.Trim(string(b), `"`))
	return nil
}

// Int64 parses the id. Leading zeros are dropped ("0022400123" -> 22400123).
func (f flexID) Int64() (int64, bool) {
	if f.raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(f.raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (f flexID) ptr() *int64 {
	n, ok := f.Int64()
	if !ok {
		return nil
	}
	return &n
}

// flexFloat accepts numbers, numeric strings, "MM:SS" minute strings and
// null. Anything else leaves the value unset instead of failing the decode.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	f.v = parseFlexFloat(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	return nil
}

var sixty = decimal.NewFromInt(60)

// parseFlexFloat reads a number, a numeric string or an "MM:SS" minutes
// string rounded to two decimals. Anything else is nil.
func parseFlexFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err1 := strconv.Atoi(m)
		secs, err2 := strconv.Atoi(sec)
		if err1 != nil || err2 != nil {
			return nil
		}
		v, _ := decimal.NewFromInt(int64(mins)).Add(decimal.NewFromInt(int64(secs)).Div(sixty)).Round(2).Float64()
		return &v
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	v, _ := d.Float64()
	return &v
}

func (f flexFloat) int() int {
	if f.v == nil {
		return 0
	}
	return int(*f.v)
}

// Live scoreboard and schedule feeds.

type scoreboardResponse struct {
	Scoreboard struct {
		GameDate string     `json:"gameDate"`
		Games    []feedGame `json:"games"`
	} `json:"scoreboard"`
}

type scheduleResponse struct {
	LeagueSchedule struct {
		GameDates []struct {
			GameDate string     `json:"gameDate"`
			Games    []feedGame `json:"games"`
		} `json:"gameDates"`
	} `json:"leagueSchedule"`
}

type feedGame struct {
	GameID          flexID    `json:"gameId"`
	GameStatus      flexFloat `json:"gameStatus"`
	GameStatusText  string    `json:"gameStatusText"`
	Period          flexFloat `json:"period"`
	GameTimeUTC     string    `json:"gameTimeUTC"`
	GameDateTimeUTC string    `json:"gameDateTimeUTC"`
	HomeTeam        feedTeam  `json:"homeTeam"`
	AwayTeam        feedTeam  `json:"awayTeam"`
}

type feedTeam struct {
	TeamID      flexID    `json:"teamId"`
	TeamName    string    `json:"teamName"`
	TeamCity    string    `json:"teamCity"`
	TeamTricode string    `json:"teamTricode"`
	Wins        flexFloat `json:"wins"`
	Losses      flexFloat `json:"losses"`
	Score       flexFloat `json:"score"`
}

func (t feedTeam) side() model.Side {
	id, _ := t.TeamID.Int64()
	return model.Side{
		TeamID:       id,
		Name:         t.TeamName,
		City:         t.TeamCity,
		Abbreviation: t.TeamTricode,
		Score:        t.Score.v,
		Wins:         t.Wins.int(),
		Losses:       t.Losses.int(),
	}
}

func (g feedGame) event(id int64, date time.Time) model.Event {
	startsAt := parseInstant(g.GameTimeUTC)
	if startsAt.IsZero() {
		startsAt = parseInstant(g.GameDateTimeUTC)
	}
	return model.Event{
		ID:         id,
		Date:       date,
		Status:     model.StatusFrom(g.GameStatus.int(), g.GameStatusText),
		StatusText: strings.TrimSpace(g.GameStatusText),
		Period:     g.Period.int(),
		StartsAt:   startsAt,
		Home:       g.HomeTeam.side(),
		Away:       g.AwayTeam.side(),
	}
}

// Stats service payloads.

type finalsResponse struct {
	Games []struct {
		GameID   flexID `json:"game_id"`
		GameDate string `json:"game_date"`
		Status   string `json:"status"`
	} `json:"games"`
}

type boxscoreResponse struct {
	Players []boxscorePlayer `json:"players"`
	Teams   []struct {
		TeamID   flexID    `json:"team_id"`
		TeamAbbr string    `json:"team_abbr"`
		Pts      flexFloat `json:"pts"`
	} `json:"teams"`
}

type boxscorePlayer struct {
	PlayerID   flexID `json:"player_id"`
	PlayerName string `json:"player_name"`
	TeamID     flexID `json:"team_id"`
	TeamAbbr   string `json:"team_abbr"`
	statLine
}

type statLine struct {
	Min    flexFloat `json:"min"`
	Pts    flexFloat `json:"pts"`
	Reb    flexFloat `json:"reb"`
	Ast    flexFloat `json:"ast"`
	Stl    flexFloat `json:"stl"`
	Blk    flexFloat `json:"blk"`
	Tov    flexFloat `json:"tov"`
	Fgm    flexFloat `json:"fgm"`
	Fga    flexFloat `json:"fga"`
	FgPct  flexFloat `json:"fg_pct"`
	Fg3m   flexFloat `json:"fg3m"`
	Fg3a   flexFloat `json:"fg3a"`
	Fg3Pct flexFloat `json:"fg3_pct"`
	Ftm    flexFloat `json:"ftm"`
	Fta    flexFloat `json:"fta"`
	FtPct  flexFloat `json:"ft_pct"`
}

func (s statLine) stats() model.Stats {
	return model.Stats{
		Minutes: s.Min.v, Points: s.Pts.v, Rebounds: s.Reb.v, Assists: s.Ast.v,
		Steals: s.Stl.v, Blocks: s.Blk.v, Turnovers: s.Tov.v,
		FGM: s.Fgm.v, FGA: s.Fga.v, FGPct: s.FgPct.v,
		FG3M: s.Fg3m.v, FG3A: s.Fg3a.v, FG3Pct: s.Fg3Pct.v,
		FTM: s.Ftm.v, FTA: s.Fta.v, FTPct: s.FtPct.v,
	}
}

type gamelogResponse struct {
	Games []struct {
		GameID   flexID `json:"game_id"`
		GameDate string `json:"game_date"`
		Matchup  string `json:"matchup"`
		WL       string `json:"wl"`
		statLine
	} `json:"games"`
}

// Date handling.

var calendarLayouts = []string{ //nolint:gochecknoglobals // accepted upstream date layouts
	"2006-01-02",
	"Jan 2, 2006",
	"01/02/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// parseCalendarDate accepts the date layouts seen upstream and returns the
// calendar day as midnight UTC. A leading date token is enough, so schedule
// stamps like "01/15/2025 12:00:00 AM" parse too.
func parseCalendarDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t.Date()), true
		}
	}
	if first, _, ok := strings.Cut(s, " "); ok {
		if t, err := time.Parse("01/02/2006", first); err == nil {
			return model.Day(t.Date()), true
		}
	}
	return time.Time{}, false
}

func parseInstant(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02T15:04:05", strings.TrimSuffix(s, "Z")); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
