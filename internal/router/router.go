// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/repository"
)

// Options selects what is mounted.  Auth is nil in the local variant,
// where the kiosk serves every route without accounts.  Redis may be
// nil; the limiter and the QR cache are then skipped.
type Options struct {
	Tickets   *handler.TicketHandler
	Door      *handler.DoorHandler
	Auth      *handler.AuthHandler
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       *zap.Logger
}

// New returns an echo instance with every route registered.
func New(opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	Register(e, opts)
	return e
}

// Register mounts the routes on e.
func Register(e *echo.Echo, opts Options) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))

	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	var organizer, door []echo.MiddlewareFunc

	if opts.Auth != nil {
		a := opts.Auth
		jwt := middleware.JWTAuth(opts.JWTSecret)
		organizer = []echo.MiddlewareFunc{jwt, middleware.RequireRole(repository.RoleOrganizer)}
		door = []echo.MiddlewareFunc{jwt, middleware.RequireRole(repository.RoleOrganizer, repository.RoleDoor)}

		g := v1.Group("/auth")
		g.POST("/login", a.Login)
		g.POST("/refresh", a.Refresh)
		g.POST("/logout", a.Logout)
		g.POST("/register", a.Register, organizer...)

		v1.GET("/me", a.Me, door...)
	}

	limited := append(append([]echo.MiddlewareFunc{}, door...), middleware.NewTokenBucket(opts.RateLimit, opts.Redis, log))
	cached := append(append([]echo.MiddlewareFunc{}, organizer...), middleware.NewRedisCache(opts.Cache, opts.Redis))

	if d := opts.Door; d != nil {
		v1.POST("/scan", d.Scan, limited...)
		v1.POST("/scan/frame", d.Frame, limited...)
		v1.GET("/sync/status", d.SyncStatus, door...)
		v1.GET("/tickets/stream", d.Stream, door...)
	}

	if t := opts.Tickets; t != nil {
		v1.POST("/tickets", t.Create, organizer...)
		v1.GET("/tickets", t.List, organizer...)
		v1.POST("/tickets/delete", t.DeleteMany, organizer...)
		v1.GET("/tickets/:id", t.Get, organizer...)
		v1.DELETE("/tickets/:id", t.Delete, organizer...)
		v1.GET("/tickets/:id/qr.png", t.QR, cached...)
		v1.GET("/tickets/:id/share", t.Share, organizer...)
		v1.GET("/settings", t.GetSettings, organizer...)
		v1.PUT("/settings", t.PutSettings, organizer...)
	}
}
