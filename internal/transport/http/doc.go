// Package http implements the HTTP handlers of the promo analysis API.
// Handlers stay thin: they decode and validate requests, call the promo
// service and render results or RFC 7807 problems through go-chi/render.
//
// # Endpoints
//
//	GET  /api/health            liveness summary
//	GET  /api/health/ready      readiness, fails when no rules are loaded
//	GET  /api/version           build information
//	GET  /api/promos            promotions in alphabetical order
//	POST /api/analyze           classify JSON rows
//	POST /api/analyze/upload    classify an uploaded xlsx or csv export
//	GET  /metrics               Prometheus exposition
//
// The upload endpoint answers with JSON by default. With ?format=xlsx it
// returns the analysed workbook, with ?format=csv the summary as csv.
package http
