package constants

import "time"

type ContextKey string

// Icons is the fixed alphabet for board generation. Each icon appears on two
// tiles, so 8 icons produce a 4x4 board.
var Icons = []string{"🍎", "🚀", "🎵", "🐶", "🌟", "🎲", "🎮", "🍕"}

const (
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusLost       = "lost"
)

const (
	ViewLogin     = "login"
	ViewDashboard = "dashboard"
	ViewGame      = "game"
)

// Keys in the durable key-value substrate. One slot for the single stored
// profile, one for the transient in-flight session.
const (
	UserDataKey       = "memory_game_user_data"
	CurrentSessionKey = "memory_game_current_session"
)

const (
	SessionCookieName = "session_id"
)

const (
	RouteLogin       = "/api/login"
	RouteLogout      = "/api/logout"
	RouteState       = "/api/state"
	RouteStart       = "/api/game/start"
	RouteClick       = "/api/game/click"
	RouteStop        = "/api/game/stop"
	RouteStopConfirm = "/api/game/stop/confirm"
	RouteStopCancel  = "/api/game/stop/cancel"
)

const (
	ErrorCodeMissingFields = "missing_fields"
	ErrorCodeNotLoggedIn   = "not_logged_in"
	ErrorCodeBadRequest    = "bad_request"
	ErrorCodeStorage       = "storage_error"
)

// UX pacing defaults: a match settles quickly, a mismatch lingers so the
// player can memorize positions, and the win message dwells before the
// dashboard returns.
const (
	DefaultMatchDelay    = 500 * time.Millisecond
	DefaultMismatchDelay = 1 * time.Second
	DefaultWinDwell      = 2 * time.Second
)

const (
	RequestIDKey ContextKey = "request_id"
)
