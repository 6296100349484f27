package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"brainboard/pkg/timegrid"
)

// Config-dir file names for the Google Calendar credentials.
const (
	credentialsFile = "credentials.json"
	tokenFile       = "token.json"
)

// GoogleSource reads events from a Google Calendar.
type GoogleSource struct {
	srv        *calendar.Service
	calendarID string
}

// NewGoogleSource builds an authenticated calendar source. configDir holds
// credentials.json (OAuth client) and token.json (a previously authorized
// token); calendarID may be "primary".
func NewGoogleSource(ctx context.Context, configDir, calendarID string) (*GoogleSource, error) {
	cfg, err := oauthConfig(configDir)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(filepath.Join(configDir, tokenFile))
	if err != nil {
		return nil, fmt.Errorf("no stored token (run authorization first): %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleSource{srv: srv, calendarID: calendarID}, nil
}

// Authorize exchanges an authorization code for a token and stores it in
// configDir. AuthURL returns the URL the user must visit to obtain the code.
func Authorize(ctx context.Context, configDir, code string) error {
	cfg, err := oauthConfig(configDir)
	if err != nil {
		return err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(configDir, tokenFile), data, 0600)
}

// AuthURL returns the user-facing authorization URL.
func AuthURL(configDir string) (string, error) {
	cfg, err := oauthConfig(configDir)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

func oauthConfig(configDir string) (*oauth2.Config, error) {
	b, err := os.ReadFile(filepath.Join(configDir, credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("read client credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client credentials: %w", err)
	}
	return cfg, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", path, err)
	}
	return tok, nil
}

// Events lists the calendar's events in [from, to) as normalized events.
// Recurring events are expanded into single instances.
func (g *GoogleSource) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	call := g.srv.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	var out []Event
	for _, item := range res.Items {
		if item.Status == "cancelled" {
			continue
		}
		ev, err := normalize(item)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// normalize maps one API event to the importer's shape. All-day events carry
// only a date; timed events carry RFC3339 start/end stamps.
func normalize(item *calendar.Event) (Event, error) {
	ev := Event{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Minutes:     timegrid.SlotMinutes,
	}
	if ev.Title == "" {
		ev.Title = "(untitled event)"
	}

	if item.Start == nil {
		return Event{}, fmt.Errorf("event %s has no start", item.Id)
	}
	if item.Start.Date != "" {
		ev.AllDay = true
		ev.Date = item.Start.Date
		return ev, nil
	}

	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, fmt.Errorf("parse start of %s: %w", item.Id, err)
	}
	ev.Date = timegrid.DayID(start)
	ev.Time = start.Format("15:04")

	if item.End != nil && item.End.DateTime != "" {
		if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
			if mins := int(end.Sub(start).Minutes()); mins > 0 {
				ev.Minutes = mins
			}
		}
	}
	return ev, nil
}
