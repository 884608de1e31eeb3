// Package config provides database configuration helpers for PostgreSQL
// connections used by the circulation service.
//
// This package contains factory functions for creating database connections
// using different PostgreSQL drivers (pgx.Pool, sql.DB, sqlx.DB), with DSNs
// taken from the environment and sensible pool defaults.
package config
