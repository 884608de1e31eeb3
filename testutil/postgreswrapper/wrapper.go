package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-go/circulation/postgresengine"
	"github.com/AntonStoeckl/library-circulation-go/example/config"
)

// Adapter type constants
const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"
)

// Wrapper abstracts over the different database adapters so component tests
// run unchanged against each of them.
type Wrapper interface {
	Handle() postgresengine.DBHandle
	Exec(t testing.TB, statement string)
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	handle postgresengine.DBHandle
}

func (w *PGXPoolWrapper) Handle() postgresengine.DBHandle {
	return w.handle
}

func (w *PGXPoolWrapper) Exec(t testing.TB, statement string) {
	_, err := w.pool.Exec(context.Background(), statement)
	assert.NoError(t, err, "error executing statement in test setup")
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing
type SQLDBWrapper struct {
	db     *sql.DB
	handle postgresengine.DBHandle
}

func (w *SQLDBWrapper) Handle() postgresengine.DBHandle {
	return w.handle
}

func (w *SQLDBWrapper) Exec(t testing.TB, statement string) {
	_, err := w.db.Exec(statement)
	assert.NoError(t, err, "error executing statement in test setup")
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing
type SQLXWrapper struct {
	db     *sqlx.DB
	handle postgresengine.DBHandle
}

func (w *SQLXWrapper) Handle() postgresengine.DBHandle {
	return w.handle
}

func (w *SQLXWrapper) Exec(t testing.TB, statement string) {
	_, err := w.db.Exec(statement)
	assert.NoError(t, err, "error executing statement in test setup")
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE,
// ensures the schema exists and returns it ready for use.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	adapterTypeFromEnv := strings.ToLower(os.Getenv("ADAPTER_TYPE"))

	var wrapper Wrapper

	switch adapterTypeFromEnv {
	case typePGXPool, "":
		connPool, err := pgxpool.NewWithConfig(context.Background(), config.PostgresPGXPoolConfig())
		require.NoError(t, err, "error connecting to DB pool in test setup")

		handle, err := postgresengine.NewDBHandleFromPGXPool(connPool, options...)
		require.NoError(t, err, "error creating database handle")

		wrapper = &PGXPoolWrapper{pool: connPool, handle: handle}

	case typeSQLDB:
		db := config.PostgresSQLDBConfig()

		handle, err := postgresengine.NewDBHandleFromSQLDB(db, options...)
		require.NoError(t, err, "error creating database handle")

		wrapper = &SQLDBWrapper{db: db, handle: handle}

	case typeSQLXDB:
		db := config.PostgresSQLXConfig()

		handle, err := postgresengine.NewDBHandleFromSQLX(db, options...)
		require.NoError(t, err, "error creating database handle")

		wrapper = &SQLXWrapper{db: db, handle: handle}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}

	ensureSchema(t, wrapper)

	return wrapper
}

// CleanUp truncates all circulation tables for the given wrapper.
func CleanUp(t testing.TB, wrapper Wrapper) {
	tables := strings.Join([]string{
		postgresengine.DefaultAuditTableName,
		postgresengine.DefaultIssuesTableName,
		postgresengine.DefaultBooksTableName,
		postgresengine.DefaultMembersTableName,
	}, ", ")

	wrapper.Exec(t, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", tables))
}

func ensureSchema(t testing.TB, wrapper Wrapper) {
	for _, statement := range postgresengine.DefaultSchemaStatements() {
		wrapper.Exec(t, statement)
	}
}
