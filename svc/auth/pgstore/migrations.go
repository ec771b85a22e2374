package pgstore

import "embed"

// MigrationsDir is the directory inside Migrations holding goose files.
const MigrationsDir = "migrations"

// Migrations holds the schema for users, companies, provider identities,
// passkeys and audit events.
//
//go:embed migrations/*.sql
var Migrations embed.FS
