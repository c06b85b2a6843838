package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days

	// Bearer tokens
	DefaultTokenTTL = 24 * time.Hour

	// Reporting cache
	DefaultReportCacheTTL = 1 * time.Minute
)

// Attachment and reporting limits
const (
	MaxAttachmentBytes         = 10 << 20 // 10 MiB per file
	MaxAttachmentsPerComplaint = 5
	DefaultReportingWindowDays = 30
	DefaultRecentComplaints    = 10
	DefaultSummaryComplaints   = 5
	DefaultBcryptCost          = 12
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "metronix-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
