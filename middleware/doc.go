// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start and completion with status and duration_ms.

# Admin Routes

	mux.HandleFunc("POST /elections", middleware.RequireAdmin(cfg.AdminKey, h))

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

# Errors

WriteError maps a models.Rejection to its HTTP status and an
infrastructure failure to 503.
*/
package middleware
