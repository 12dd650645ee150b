package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/andestours/experience-booking/internal/handler"    // import the handlers that implement business logic
	"github.com/andestours/experience-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The health endpoint can be used by load balancers or monitoring
	// systems to verify that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access issues a new
	// access token without rotating.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts a refresh token in the body or a bearer token in
	// the Authorization header; it does not require the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("TOURIST", "GUIDE", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated browse endpoints: the
// experience catalog and ratings are readable by guests.  cache may be
// nil (or a no-op) when Redis is unavailable.
func RegisterPublic(e *echo.Echo, exp *handler.ExperienceHandler, rat *handler.RatingHandler, cache echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{}
	if cache != nil {
		mws = append(mws, cache)
	}
	e.GET("/v1/experiences", exp.List, mws...)
	e.GET("/v1/experiences/:id", exp.Get, mws...)
	e.GET("/v1/ratings", rat.List, mws...)
	e.GET("/v1/ratings/:id", rat.Get, mws...)
}

// RegisterExperiences registers the guide-facing experience management
// endpoints.  Only guides and admins may create or mutate experiences.
func RegisterExperiences(e *echo.Echo, exp *handler.ExperienceHandler, jwtSecret string) {
	g := e.Group("/v1/experiences")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("GUIDE", "ADMIN"))
	g.POST("", exp.Create)
	g.PUT("/:id", exp.Update)
	g.DELETE("/:id", exp.Delete)
}

// RegisterReservations registers the booking endpoints.  Creating,
// listing and cancelling are open to every authenticated role; marking
// attendance is restricted to guides and admins.
func RegisterReservations(e *echo.Echo, res *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1/reservations")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("TOURIST", "GUIDE", "ADMIN"))
	g.POST("", res.Create)
	g.GET("", res.List)
	g.GET("/:id", res.Get)
	g.DELETE("/:id", res.Cancel)

	attend := e.Group("/v1/reservations")
	attend.Use(middleware.JWTAuth(jwtSecret))
	attend.Use(middleware.RequireRole("GUIDE", "ADMIN"))
	attend.POST("/:id/attend", res.Attend)
}

// RegisterRatings registers the authenticated rating mutations; reads
// live in RegisterPublic.
func RegisterRatings(e *echo.Echo, rat *handler.RatingHandler, jwtSecret string) {
	g := e.Group("/v1/ratings")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("TOURIST", "GUIDE", "ADMIN"))
	g.POST("", rat.Create)
	g.DELETE("/:id", rat.Delete)
}
