package archive

// Schema for the Kestrel report archive.
// Compatible with both SQLite and PostgreSQL.

// schemaReports stores one row per screening report. The full report
// travels as JSON in the report column; the scalar columns exist so
// audits can filter by time and risk without parsing bodies.
const schemaReports = `
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,
    generated_at TIMESTAMP NOT NULL,
    transaction_count INTEGER NOT NULL,
    risk_score REAL NOT NULL,
    contributing_typology TEXT NOT NULL DEFAULT '',
    match_count INTEGER NOT NULL,
    report TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports(generated_at);
CREATE INDEX IF NOT EXISTS idx_reports_risk_score ON reports(risk_score);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaReports,
	}
}
