package game

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"

	board "github.com/anuragn091/memory-game-cautio/internal/board"
	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	store "github.com/anuragn091/memory-game-cautio/internal/store"
	util "github.com/anuragn091/memory-game-cautio/internal/util"
)

// Config carries the icon alphabet and the UX pacing delays for one
// controller.
type Config struct {
	Icons         []string
	MatchDelay    time.Duration
	MismatchDelay time.Duration
	WinDwell      time.Duration
}

// Controller orchestrates one play-through at a time for one browser
// session: it owns the board, the two-tile selection, the elapsed-seconds
// ticker, and the session lifecycle, calling the board package for pure
// logic and the store for durable writes.
//
// Deferred match/mismatch/win callbacks capture the epoch current at
// scheduling time and re-check it under the lock before mutating, so a stale
// deferral from a discarded game can never touch a newer board. The epoch
// advances on StartGame, ConfirmStop, and Logout.
type Controller struct {
	mu    sync.Mutex
	store store.Store
	cfg   Config
	rng   *rand.Rand

	user       *models.UserData
	view       string
	board      []models.Tile
	selected   []int
	checking   bool
	won        bool
	stopPrompt bool
	session    *models.GameSession

	epoch       uint64
	timerActive bool
	timerStop   chan struct{}
	elapsed     int

	lastAccess time.Time
}

// New builds a controller with a shuffle source seeded from crypto/rand.
func New(s store.Store, cfg Config) *Controller {
	return NewWithRand(s, cfg, rand.New(rand.NewSource(cryptoSeed())))
}

// NewWithRand injects the shuffle source, making board generation fully
// deterministic for a fixed seed.
func NewWithRand(s store.Store, cfg Config, rng *rand.Rand) *Controller {
	if len(cfg.Icons) == 0 {
		cfg.Icons = constants.Icons
	}
	return &Controller{
		store:      s,
		cfg:        cfg,
		rng:        rng,
		view:       constants.ViewLogin,
		lastAccess: time.Now(),
	}
}

func cryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		util.LogWarn("Error seeding shuffle source: %v, using clock fallback", err)
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// Login loads the stored profile when its email matches exactly (the
// supplied name is ignored), otherwise creates and persists a fresh profile
// with an empty session history. Either way the controller lands on the
// dashboard.
func (c *Controller) Login(ctx context.Context, name, email string) (*models.UserData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		util.LogInfo("Returning user logged in: %s (%d sessions)", existing.Email, len(existing.Sessions))
		c.user = existing
	} else {
		user := &models.UserData{Name: name, Email: email, Sessions: []models.GameSession{}}
		if err := c.store.SaveProfile(ctx, user); err != nil {
			return nil, err
		}
		util.LogInfo("Created new profile for %s", email)
		c.user = user
	}
	c.view = constants.ViewDashboard
	return c.user, nil
}

// StartGame creates the in-flight session record, persists it to the
// current-session slot, generates a fresh board, and activates the timer.
// Rejected when nobody is logged in.
func (c *Controller) StartGame(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return errors.New(constants.ErrorCodeNotLoggedIn)
	}

	gameNumber, err := c.store.NextGameNumber(ctx, c.user.Email)
	if err != nil {
		return err
	}
	session := &models.GameSession{
		GameNumber: gameNumber,
		StartTime:  time.Now().UTC().Format(time.RFC3339),
		Status:     constants.StatusInProgress,
		BoardSize:  len(c.cfg.Icons),
	}
	// Overwriting the slot discards any unfinished previous session; it is
	// abandoned, not marked lost.
	if err := c.store.SetCurrentSession(ctx, session); err != nil {
		return err
	}

	c.session = session
	c.board = board.Create(c.rng, c.cfg.Icons)
	c.selected = nil
	c.checking = false
	c.won = false
	c.stopPrompt = false
	c.epoch++
	c.stopTimerLocked()
	c.startTimerLocked()
	c.view = constants.ViewGame

	util.LogInfo("Game #%d started for %s (%d tiles)", gameNumber, c.user.Email, len(c.board))
	return nil
}

// TileClick flips a tile and tracks the two-tile selection. Clicks during a
// pending match check, on resolved or already face-up tiles, or outside the
// board are ignored without error. The second selection enters the checking
// sub-state and schedules the deferred resolution.
func (c *Controller) TileClick(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != constants.ViewGame || c.won || c.checking {
		return
	}
	if index < 0 || index >= len(c.board) {
		return
	}
	tile := &c.board[index]
	if tile.IsFlipped || tile.IsMatched {
		return
	}

	tile.IsFlipped = true
	c.selected = append(c.selected, index)
	if len(c.selected) != 2 {
		return
	}

	c.checking = true
	first, second := c.selected[0], c.selected[1]
	epoch := c.epoch
	if board.CheckMatch(c.board[first], c.board[second]) {
		time.AfterFunc(c.cfg.MatchDelay, func() { c.resolveMatch(epoch, first, second) })
	} else {
		time.AfterFunc(c.cfg.MismatchDelay, func() { c.resolveMismatch(epoch, first, second) })
	}
}

func (c *Controller) resolveMatch(epoch uint64, first, second int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.board[first].IsMatched = true
	c.board[second].IsMatched = true
	c.selected = nil
	c.checking = false
	// The win check runs exactly here, once, right after a match resolution
	// commits.
	if board.AllMatched(c.board) {
		c.winLocked()
	}
}

func (c *Controller) resolveMismatch(epoch uint64, first, second int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.board[first].IsFlipped = false
	c.board[second].IsFlipped = false
	c.selected = nil
	c.checking = false
}

func (c *Controller) winLocked() {
	if c.won || c.session == nil {
		return
	}
	c.won = true
	c.stopTimerLocked()

	end := time.Now()
	duration := durationSeconds(c.session.StartTime, end)
	if err := store.CompleteSession(context.Background(), c.store, end.UTC().Format(time.RFC3339), duration, constants.StatusCompleted); err != nil {
		util.LogWarn("Failed to record completed session: %v", err)
	}
	util.LogInfo("Game #%d won in %ds", c.session.GameNumber, duration)
	c.session = nil

	epoch := c.epoch
	time.AfterFunc(c.cfg.WinDwell, func() { c.returnToDashboard(epoch) })
}

func (c *Controller) returnToDashboard(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.board = nil
	c.selected = nil
	c.checking = false
	c.won = false
	c.view = constants.ViewDashboard
	c.reloadProfileLocked()
}

// RequestStop opens the stop-confirmation step; nothing is recorded until
// the player confirms.
func (c *Controller) RequestStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view != constants.ViewGame || c.won || c.session == nil {
		return
	}
	c.stopPrompt = true
}

func (c *Controller) CancelStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPrompt = false
}

// ConfirmStop aborts the in-flight game: the session is recorded as lost and
// the controller returns to the dashboard immediately, with no display
// delay. Pending flip-backs on the discarded board go stale via the epoch.
func (c *Controller) ConfirmStop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopPrompt = false
	if c.view != constants.ViewGame || c.session == nil {
		return
	}

	c.stopTimerLocked()
	end := time.Now()
	duration := durationSeconds(c.session.StartTime, end)
	if err := store.CompleteSession(ctx, c.store, end.UTC().Format(time.RFC3339), duration, constants.StatusLost); err != nil {
		util.LogWarn("Failed to record lost session: %v", err)
	}
	util.LogInfo("Game #%d stopped after %ds", c.session.GameNumber, duration)

	c.session = nil
	c.board = nil
	c.selected = nil
	c.checking = false
	c.won = false
	c.epoch++
	c.view = constants.ViewDashboard
	c.reloadProfileLocked()
}

// Logout clears in-memory state and discards any in-flight session marker
// without recording it as lost.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.ClearCurrentSession(ctx); err != nil {
		util.LogWarn("Failed to clear current session on logout: %v", err)
	}

	c.stopTimerLocked()
	c.user = nil
	c.session = nil
	c.board = nil
	c.selected = nil
	c.checking = false
	c.won = false
	c.stopPrompt = false
	c.epoch++
	c.view = constants.ViewLogin
}

func (c *Controller) reloadProfileLocked() {
	if c.user == nil {
		return
	}
	updated, err := c.store.GetProfileByEmail(context.Background(), c.user.Email)
	if err != nil {
		util.LogWarn("Failed to reload profile for %s: %v", c.user.Email, err)
		return
	}
	if updated != nil {
		c.user = updated
	}
}

// Snapshot returns a copy of everything the presentation layer renders.
func (c *Controller) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.Snapshot{
		View:       c.view,
		Selected:   append([]int(nil), c.selected...),
		Checking:   c.checking,
		Won:        c.won,
		StopPrompt: c.stopPrompt,
		Timer:      models.TimerView{Elapsed: c.elapsed, Active: c.timerActive},
	}
	if c.board != nil {
		snap.Board = append([]models.Tile(nil), c.board...)
	}
	if c.session != nil {
		snap.GameNumber = c.session.GameNumber
	}
	if c.user != nil {
		sessions := append([]models.GameSession(nil), c.user.Sessions...)
		snap.User = &models.ProfileView{
			Name:     c.user.Name,
			Email:    c.user.Email,
			Stats:    store.ComputeStats(c.user.Sessions),
			Sessions: lo.Reverse(sessions),
		}
	}
	return snap
}

// Touch refreshes the access time used by the registry's TTL cleanup.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.lastAccess = time.Now()
	c.mu.Unlock()
}

func (c *Controller) LastAccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastAccess
}

// startTimerLocked begins the 1-second elapsed ticker. The stop channel is
// re-checked under the lock so no tick lands after cancellation.
func (c *Controller) startTimerLocked() {
	c.elapsed = 0
	c.timerActive = true
	stop := make(chan struct{})
	c.timerStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				select {
				case <-stop:
					c.mu.Unlock()
					return
				default:
				}
				c.elapsed++
				c.mu.Unlock()
			}
		}
	}()
}

func (c *Controller) stopTimerLocked() {
	if !c.timerActive {
		return
	}
	c.timerActive = false
	close(c.timerStop)
	c.timerStop = nil
}

// durationSeconds floors the wall time between an RFC 3339 start stamp and
// the given end to whole seconds, clamping at zero.
func durationSeconds(start string, end time.Time) int {
	started, err := time.Parse(time.RFC3339, start)
	if err != nil {
		util.LogWarn("Unparseable session start time %q: %v", start, err)
		return 0
	}
	seconds := int(end.Sub(started).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
