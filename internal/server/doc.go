// Package server implements the lecsy backend HTTP API: session auth,
// transcript CRUD with ownership-scoped mutations, billing webhook intake,
// AI summarization, and the request policy layer (origin validation,
// redirect validation, fixed-window rate limiting) in front of it all.
package server
