package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/speech-to-contract/internal/domain"
	"github.com/yungbote/speech-to-contract/internal/domain/contracts"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.Transcription{},
		&types.Generation{},
		&types.Contract{},
		&types.Suggestion{},
		&types.JobRun{},
	); err != nil {
		return err
	}
	return EnsureJobIndexes(db)
}

// EnsureJobIndexes closes the check-then-insert race on "one active job per
// owner": a second concurrent insert fails on the partial unique index.
// The statements are portable between Postgres and SQLite.
func EnsureJobIndexes(db *gorm.DB) error {
	var activeT, activeG []string
	for _, s := range contracts.ActiveTranscriptionStatuses() {
		activeT = append(activeT, string(s))
	}
	for _, s := range contracts.ActiveGenerationStatuses() {
		activeG = append(activeG, string(s))
	}
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_transcriptions_one_active_per_owner",
			sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_transcriptions_one_active_per_owner
				ON transcriptions(owner_user_id) WHERE status IN (` + quoteList(activeT) + `);`,
		},
		{
			name: "idx_generations_one_active_per_owner",
			sql: `CREATE UNIQUE INDEX IF NOT EXISTS idx_generations_one_active_per_owner
				ON generations(owner_user_id) WHERE status IN (` + quoteList(activeG) + `);`,
		},
		{
			name: "idx_transcriptions_owner_created",
			sql:  `CREATE INDEX IF NOT EXISTS idx_transcriptions_owner_created ON transcriptions(owner_user_id, created_at);`,
		},
		{
			name: "idx_generations_owner_created",
			sql:  `CREATE INDEX IF NOT EXISTS idx_generations_owner_created ON generations(owner_user_id, created_at);`,
		},
		{
			name: "idx_job_run_claim",
			sql:  `CREATE INDEX IF NOT EXISTS idx_job_run_claim ON job_run(status, created_at);`,
		},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}

// Values come from the status enums, never from input.
func quoteList(vals []string) string {
	quoted := make([]string, 0, len(vals))
	for _, v := range vals {
		quoted = append(quoted, "'"+strings.ReplaceAll(v, "'", "''")+"'")
	}
	return strings.Join(quoted, ",")
}
