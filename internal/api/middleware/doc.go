// Package middleware provides the gateway's HTTP middleware.
//
//   - CORS: cross-origin access for browser dashboards that poll QR codes
//   - RateLimit: per-IP token buckets, idle clients forgotten after IdleTTL
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
