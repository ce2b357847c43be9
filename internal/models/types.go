package models

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Tile is one cell of the board. IDs are assigned in final shuffled order and
// double as render keys on the client.
type Tile struct {
	ID        int    `json:"id"`
	Icon      string `json:"icon"`
	IsFlipped bool   `json:"isFlipped"`
	IsMatched bool   `json:"isMatched"`
}

// GameSession is one play-through record. EndTime and Duration are absent
// while the session is in progress. BoardSize is the number of distinct icon
// types, not the tile count.
type GameSession struct {
	GameNumber int    `json:"gameNumber"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime,omitempty"`
	Duration   int    `json:"duration,omitempty"`
	Status     string `json:"status"`
	BoardSize  int    `json:"boardSize"`
}

// UserData is the single persisted profile. Email is the identifying key,
// compared exactly with no normalization. Sessions are kept in creation order.
type UserData struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Sessions []GameSession `json:"sessions"`
}

// SessionStats are the dashboard aggregates derived from a profile's session
// list.
type SessionStats struct {
	TotalGames int `json:"totalGames"`
	Completed  int `json:"completed"`
	Lost       int `json:"lost"`
}

// TimerView reports the elapsed-seconds ticker state for the in-flight game.
type TimerView struct {
	Elapsed int  `json:"elapsed"`
	Active  bool `json:"active"`
}

// ProfileView is the user portion of a snapshot: identity, aggregates, and
// the session log in reverse-chronological order.
type ProfileView struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Stats    SessionStats  `json:"stats"`
	Sessions []GameSession `json:"sessions"`
}

// Snapshot is everything the presentation layer consumes: the current view,
// the board, selection/checking flags, timer state, and profile aggregates.
type Snapshot struct {
	View       string       `json:"view"`
	User       *ProfileView `json:"user,omitempty"`
	Board      []Tile       `json:"board,omitempty"`
	Selected   []int        `json:"selected"`
	Checking   bool         `json:"checking"`
	Won        bool         `json:"won"`
	StopPrompt bool         `json:"stopPrompt"`
	Timer      TimerView    `json:"timer"`
	GameNumber int          `json:"gameNumber,omitempty"`
}

type RateLimiterEntry struct {
	Limiter        *rate.Limiter
	LastAccessTime time.Time
}

// App holds process-wide configuration and the per-IP limiter registry.
// Per-browser controllers live in the session registry, not here.
type App struct {
	LimiterMap     map[string]*RateLimiterEntry
	LimiterMutex   sync.RWMutex
	IsProduction   bool
	StartTime      time.Time
	CookieMaxAge   time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	SessionTTL     time.Duration
	MatchDelay     time.Duration
	MismatchDelay  time.Duration
	WinDwell       time.Duration
}
