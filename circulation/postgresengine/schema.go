package postgresengine

import "fmt"

// SchemaStatements returns the DDL that creates the circulation tables with
// the given names, in dependency order. Statements are idempotent so they can
// be replayed on startup.
func SchemaStatements(booksTable, membersTable, issuesTable, auditTable string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			isbn TEXT NOT NULL UNIQUE,
			publication_date TIMESTAMP NULL,
			description TEXT NOT NULL DEFAULT '',
			total_copies INTEGER NOT NULL CHECK (total_copies >= 0),
			available_copies INTEGER NOT NULL CHECK (available_copies >= 0),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CHECK (available_copies <= total_copies)
		)`, booksTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			member_code TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			joined_at TIMESTAMP NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE
		)`, membersTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			book_id UUID NOT NULL REFERENCES %s (id),
			member_id UUID NOT NULL REFERENCES %s (id),
			issue_date TIMESTAMP NOT NULL,
			due_date TIMESTAMP NOT NULL,
			return_date TIMESTAMP NULL
		)`, issuesTable, booksTable, membersTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_member_open
			ON %s (member_id) WHERE return_date IS NULL`, issuesTable, issuesTable),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_open_per_book_member
			ON %s (book_id, member_id) WHERE return_date IS NULL`, issuesTable, issuesTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_issue_date
			ON %s (issue_date DESC)`, issuesTable, issuesTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			payload JSONB NOT NULL
		)`, auditTable),
	}
}

// DefaultSchemaStatements returns the DDL for the default table names.
func DefaultSchemaStatements() []string {
	return SchemaStatements(DefaultBooksTableName, DefaultMembersTableName, DefaultIssuesTableName, DefaultAuditTableName)
}
