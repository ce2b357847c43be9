package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	constants "github.com/anuragn091/memory-game-cautio/internal/constants"
	game "github.com/anuragn091/memory-game-cautio/internal/game"
	handlers "github.com/anuragn091/memory-game-cautio/internal/handlers"
	models "github.com/anuragn091/memory-game-cautio/internal/models"
	session "github.com/anuragn091/memory-game-cautio/internal/session"
	store "github.com/anuragn091/memory-game-cautio/internal/store"
	util "github.com/anuragn091/memory-game-cautio/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.LogInfo("Starting memory-game server in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	app := &models.App{
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		SessionTTL:     util.GetEnvDuration("SESSION_TTL", 3*time.Hour),
		MatchDelay:     util.GetEnvDuration("MATCH_DELAY", constants.DefaultMatchDelay),
		MismatchDelay:  util.GetEnvDuration("MISMATCH_DELAY", constants.DefaultMismatchDelay),
		WinDwell:       util.GetEnvDuration("WIN_DWELL", constants.DefaultWinDwell),
		LimiterMap:     make(map[string]*models.RateLimiterEntry),
	}

	dbPath := util.GetEnvString("DB_PATH", "data/memory.db")
	st, err := store.NewSQLite(dbPath)
	if err != nil {
		util.LogFatal("Failed to open store: %v", err)
	}
	defer st.Close()

	registry := session.NewRegistry(st, game.Config{
		Icons:         constants.Icons,
		MatchDelay:    app.MatchDelay,
		MismatchDelay: app.MismatchDelay,
		WinDwell:      app.WinDwell,
	}, app.SessionTTL)

	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())

	router.Use(csrfMiddleware(app))
	router.Use(validateCSRFMiddleware())

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))

	// API responses carry game state, never cache them.
	router.Use(cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	}))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	limited := rateLimitMiddleware(app)

	router.POST(constants.RouteLogin, limited, func(c *gin.Context) { handlers.LoginHandler(app, registry, c) })
	router.POST(constants.RouteLogout, func(c *gin.Context) { handlers.LogoutHandler(app, registry, c) })
	router.GET(constants.RouteState, func(c *gin.Context) { handlers.StateHandler(app, registry, c) })
	router.POST(constants.RouteStart, limited, func(c *gin.Context) { handlers.StartGameHandler(app, registry, c) })
	router.POST(constants.RouteClick, limited, func(c *gin.Context) { handlers.ClickHandler(app, registry, c) })
	router.POST(constants.RouteStop, func(c *gin.Context) { handlers.StopHandler(app, registry, c) })
	router.POST(constants.RouteStopConfirm, func(c *gin.Context) { handlers.StopConfirmHandler(app, registry, c) })
	router.POST(constants.RouteStopCancel, func(c *gin.Context) { handlers.StopCancelHandler(app, registry, c) })
	router.GET("/healthz", func(c *gin.Context) { handlers.HealthzHandler(app, registry, c) })

	registry.StartCleanup()
	startLimiterCleanup(app)

	startServer(router)
}

func startServer(router *gin.Engine) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

func startLimiterCleanup(app *models.App) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			cleanupStaleRateLimiters(app)
		}
	}()
	util.LogInfo("Started rate limiter cleanup routine")
}

func cleanupStaleRateLimiters(app *models.App) {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := time.Now().Add(-app.RateLimiterTTL)
	removedCount := 0

	for key, entry := range app.LimiterMap {
		if entry.LastAccessTime.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}

	if len(app.LimiterMap) > 10000 {
		util.LogInfo("Rate limiter map too large (%d entries), performing emergency cleanup", len(app.LimiterMap))

		if len(app.LimiterMap) > 50000 {
			type limiterInfo struct {
				key        string
				lastAccess time.Time
			}

			var limiters []limiterInfo
			for key, entry := range app.LimiterMap {
				limiters = append(limiters, limiterInfo{key: key, lastAccess: entry.LastAccessTime})
			}

			sort.Slice(limiters, func(i, j int) bool {
				return limiters[i].lastAccess.Before(limiters[j].lastAccess)
			})

			entriesToRemove := len(limiters) / 2
			for i := 0; i < entriesToRemove; i++ {
				delete(app.LimiterMap, limiters[i].key)
				removedCount++
			}

			util.LogInfo("Removed %d oldest rate limiters", entriesToRemove)
		}
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
}
