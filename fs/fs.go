package appfs

import "embed"

// FS holds the SQL migrations of every supported engine and the email templates.
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql templates/email/*
var FS embed.FS
