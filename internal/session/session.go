package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	game "github.com/anuragn091/memory-game-cautio/internal/game"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	store "github.com/anuragn091/memory-game-cautio/internal/store"
	util "github.com/anuragn091/memory-game-cautio/internal/util"
)

// Registry maps browser session cookies to game controllers. Each cookie
// owns one controller, so one game can be in flight per browser session.
// Stale controllers are evicted by TTL.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*game.Controller
	store       store.Store
	cfg         game.Config
	ttl         time.Duration
}

func NewRegistry(s store.Store, cfg game.Config, ttl time.Duration) *Registry {
	return &Registry{
		controllers: make(map[string]*game.Controller),
		store:       s,
		cfg:         cfg,
		ttl:         ttl,
	}
}

// GetOrCreateSession returns the browser session ID from the cookie, minting
// a fresh one when absent or malformed.
func GetOrCreateSession(app *models.App, c *gin.Context) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		secure := app.IsProduction
		c.SetCookie(constants.SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", secure, true)
		util.LogInfo("Created new session: %s", sessionID)
	}
	return sessionID
}

// Controller returns the controller for a browser session, creating one on
// first use and refreshing its access time on every call.
func (r *Registry) Controller(sessionID string) *game.Controller {
	r.mu.RLock()
	ctrl, exists := r.controllers[sessionID]
	r.mu.RUnlock()
	if exists {
		ctrl.Touch()
		return ctrl
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ctrl, exists = r.controllers[sessionID]; exists {
		ctrl.Touch()
		return ctrl
	}
	util.LogInfo("Creating controller for session: %s", sessionID)
	ctrl = game.New(r.store, r.cfg)
	r.controllers[sessionID] = ctrl
	return ctrl
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

func (r *Registry) CleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	expiredCount := 0
	for sessionID, ctrl := range r.controllers {
		if ctrl.LastAccess().Before(cutoff) {
			delete(r.controllers, sessionID)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		util.LogInfo("Cleaned up %d expired controllers", expiredCount)
	}
}

func (r *Registry) StartCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			r.CleanupExpired()
		}
	}()
	util.LogInfo("Started controller cleanup goroutine")
}
