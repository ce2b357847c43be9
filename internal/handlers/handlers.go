package handlers

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	session "github.com/anuragn091/memory-game-cautio/internal/session"
	util "github.com/anuragn091/memory-game-cautio/internal/util"
)

type loginRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type clickRequest struct {
	Index *int `json:"index"`
}

// LoginHandler validates the identity fields at the boundary, so the
// controller never sees blank names or emails, then loads or creates the
// profile.
func LoginHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrorCodeBadRequest})
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrorCodeMissingFields})
		return
	}

	sessionID := session.GetOrCreateSession(app, c)
	ctrl := registry.Controller(sessionID)
	if _, err := ctrl.Login(c.Request.Context(), name, email); err != nil {
		util.LogWarn("Login failed for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrorCodeStorage})
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func StartGameHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	sessionID := session.GetOrCreateSession(app, c)
	ctrl := registry.Controller(sessionID)

	if err := ctrl.StartGame(c.Request.Context()); err != nil {
		if err.Error() == constants.ErrorCodeNotLoggedIn {
			c.JSON(http.StatusConflict, gin.H{"error": constants.ErrorCodeNotLoggedIn})
			return
		}
		util.LogWarn("StartGame failed for session %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrorCodeStorage})
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// ClickHandler applies a tile click. Invalid clicks (during checking, on
// resolved tiles, out of range) are silent no-ops, so the response is always
// the current snapshot.
func ClickHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrorCodeBadRequest})
		return
	}

	ctrl := registry.Controller(session.GetOrCreateSession(app, c))
	ctrl.TileClick(*req.Index)
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func StopHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	ctrl := registry.Controller(session.GetOrCreateSession(app, c))
	ctrl.RequestStop()
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func StopConfirmHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	ctrl := registry.Controller(session.GetOrCreateSession(app, c))
	ctrl.ConfirmStop(c.Request.Context())
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func StopCancelHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	ctrl := registry.Controller(session.GetOrCreateSession(app, c))
	ctrl.CancelStop()
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func LogoutHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	ctrl := registry.Controller(session.GetOrCreateSession(app, c))
	ctrl.Logout(c.Request.Context())
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func StateHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	ctrl := registry.Controller(session.GetOrCreateSession(app, c))
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

func HealthzHandler(app *models.App, registry *session.Registry, c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(app.StartTime)

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"env":                map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"icons":              len(constants.Icons),
		"active_controllers": registry.Count(),
		"active_limiters":    limiterCount,
		"memory_alloc_mb":    m.Alloc / 1024 / 1024,
		"memory_sys_mb":      m.Sys / 1024 / 1024,
		"memory_gc_count":    m.NumGC,
		"uptime":             util.FormatUptime(uptime),
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	})
}
