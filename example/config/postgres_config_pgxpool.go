package config

import (
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPGXPoolConfig creates a pgxpool.Config for the circulation database.
func PostgresPGXPoolConfig() *pgxpool.Config {
	return pgxPoolConfigFor(PostgresDSN())
}

// PostgresPGXPoolReplicaConfig creates a pgxpool.Config for the read replica.
// It returns nil when no replica DSN is configured.
func PostgresPGXPoolReplicaConfig() *pgxpool.Config {
	replicaDSN := PostgresReplicaDSN()
	if replicaDSN == "" {
		return nil
	}

	return pgxPoolConfigFor(replicaDSN)
}

func pgxPoolConfigFor(dsn string) *pgxpool.Config {
	const defaultMaxConnections = int32(8)
	const defaultMinConnections = int32(2)
	const defaultMaxConnLifetime = time.Hour
	const defaultMaxConnIdleTime = time.Minute * 5
	const defaultHealthCheckPeriod = time.Minute
	const defaultConnectTimeout = time.Second * 5

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatal("Failed to create a config, error: ", err)
	}

	dbConfig.MaxConns = defaultMaxConnections
	dbConfig.MinConns = defaultMinConnections
	dbConfig.MaxConnLifetime = defaultMaxConnLifetime
	dbConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	return dbConfig
}
