package migration

import (
	"regexp"
	"strings"
	"testing"
)

// Columns each repository query references, keyed by table. Kept in sync
// with the SQL in internal/repository: a column listed here but absent from
// the migration DDL means the query fails at runtime against a freshly
// migrated database.
var repositoryColumns = map[string][]string{
	"sync_jobs": {
		"id", "org_id", "job_type", "priority", "attempts", "max_attempts",
		"run_after", "payload", "dedupe_key", "status", "last_error",
		"created_at", "updated_at",
	},
	"org_credentials": {
		"org_id", "access_token", "refresh_token", "token_expires_at", "updated_at",
	},
	"integrations": {
		"org_id", "is_connected", "disconnect_reason", "stage_map", "updated_at",
	},
	"org_members": {
		"org_id", "user_id", "email", "role",
	},
	"object_mappings": {
		"id", "org_id", "object_type", "local_id", "remote_id", "local_key",
		"last_synced_at", "last_seen_remote_modified_at",
	},
	"form_cursors": {
		"org_id", "form_id", "submitted_after", "updated_at",
	},
	"form_submissions_seen": {
		"org_id", "form_id", "submission_id", "local_id",
	},
	"sync_audit_log": {
		"id", "org_id", "direction", "object_type", "entity_id", "status",
		"error", "created_at",
	},
	"worker_locks": {
		"name", "held_by", "expires_at",
	},
	"contacts": {
		"id", "org_id", "email", "first_name", "last_name", "phone",
		"company", "lead_source", "created_at", "updated_at",
	},
	"deals": {
		"id", "org_id", "name", "amount", "stage", "close_date", "contact_id",
		"created_at", "updated_at",
	},
	"tasks": {
		"id", "org_id", "title", "body", "status", "due_at", "owner_id",
		"contact_id", "created_at", "updated_at",
	},
	"notes": {
		"id", "org_id", "body", "contact_id", "deal_id", "created_at", "updated_at",
	},
	"quotes": {
		"id", "org_id", "title", "status", "amount", "deal_id",
		"created_at", "updated_at",
	},
	"line_items": {
		"id", "org_id", "quote_id", "name", "quantity", "unit_price",
		"created_at", "updated_at",
	},
	"custom_objects": {
		"id", "org_id", "object_type", "properties", "created_at", "updated_at",
	},
}

var createTableRe = regexp.MustCompile(`(?ms)^CREATE TABLE (\w+) \((.*?)^\);`)

// schemaColumns parses the embedded migration files into table -> column set.
func schemaColumns(t *testing.T) map[string]map[string]bool {
	t.Helper()

	entries, err := embeddedMigrations.ReadDir("migrations")
	if err != nil {
		t.Fatalf("failed to read embedded migrations: %v", err)
	}

	tables := make(map[string]map[string]bool)
	for _, entry := range entries {
		data, err := embeddedMigrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			t.Fatalf("failed to read %s: %v", entry.Name(), err)
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(data), -1) {
			cols := make(map[string]bool)
			for _, line := range strings.Split(m[2], "\n") {
				fields := strings.Fields(strings.TrimSpace(line))
				if len(fields) == 0 {
					continue
				}
				switch strings.ToUpper(fields[0]) {
				case "UNIQUE", "PRIMARY", "CONSTRAINT", "FOREIGN", "CHECK":
					continue
				}
				cols[strings.ToLower(fields[0])] = true
			}
			tables[m[1]] = cols
		}
	}
	return tables
}

func TestMigrations_CoverRepositoryColumns(t *testing.T) {
	tables := schemaColumns(t)
	if len(tables) == 0 {
		t.Fatal("no CREATE TABLE statements found in embedded migrations")
	}

	for table, cols := range repositoryColumns {
		ddl, ok := tables[table]
		if !ok {
			t.Errorf("table %s is queried by a repository but not created by any migration", table)
			continue
		}
		for _, col := range cols {
			if !ddl[col] {
				t.Errorf("%s.%s is queried by a repository but missing from the migration DDL", table, col)
			}
		}
	}
}

func TestMigrations_RosterColumnsPresent(t *testing.T) {
	// ListMembers runs on every worker pass; a missing roster column fails
	// every org group before any job executes.
	tables := schemaColumns(t)
	members, ok := tables["org_members"]
	if !ok {
		t.Fatal("org_members table not found in migrations")
	}
	for _, col := range []string{"user_id", "role"} {
		if !members[col] {
			t.Errorf("org_members.%s missing: the worker cannot load any org roster without it", col)
		}
	}
}
