package db

import _ "embed"

// Schema creates the appointments and notification_logs tables. It is idempotent.
//
//go:embed schema.sql
var Schema string
