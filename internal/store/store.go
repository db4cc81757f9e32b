// Package store implements the SQLite-backed repositories the AI
// pipeline reads from: tickets, ticket messages, user notes, and
// profiles. Each repository method is a narrow, typed query; callers
// never see the underlying query builder.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with typed repository methods.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "fastdesk.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies any embedded SQL migration files not yet recorded in
// schema_version.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// --- Tickets ---

func (s *Store) SaveTicket(t Ticket) error {
	_, err := s.db.Exec(`
		INSERT INTO tickets (id, org_id, requester_id, requester_name, title, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrgID, t.RequesterID, t.RequesterName, t.Title, t.Body,
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetTicket(id string) (Ticket, error) {
	var t Ticket
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, org_id, requester_id, requester_name, title, body, created_at
		FROM tickets WHERE id = ?`, id,
	).Scan(&t.ID, &t.OrgID, &t.RequesterID, &t.RequesterName, &t.Title, &t.Body, &createdAt)
	if err == sql.ErrNoRows {
		return Ticket{}, ErrNotFound
	}
	if err != nil {
		return Ticket{}, err
	}
	t.CreatedAt, err = parseTime(createdAt)
	return t, err
}

// TicketsByRequester returns all tickets opened by the given user,
// ordered by creation time ascending so the per-ticket transcript
// concatenation is deterministic.
func (s *Store) TicketsByRequester(userID string) ([]Ticket, error) {
	rows, err := s.db.Query(`
		SELECT id, org_id, requester_id, requester_name, title, body, created_at
		FROM tickets WHERE requester_id = ? ORDER BY created_at ASC, id ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Ticket
	for rows.Next() {
		var t Ticket
		var createdAt string
		if err := rows.Scan(&t.ID, &t.OrgID, &t.RequesterID, &t.RequesterName, &t.Title, &t.Body, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Ticket messages ---

func (s *Store) SaveTicketMessage(m TicketMessage) error {
	_, err := s.db.Exec(`
		INSERT INTO ticket_messages (id, ticket_id, sender_id, sender_name, role, body, attachment_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TicketID, m.SenderID, m.SenderName, m.Role, m.Body, m.AttachmentPath,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// TicketMessagesByTicket returns a ticket's messages in chronological
// order.
func (s *Store) TicketMessagesByTicket(ticketID string) ([]TicketMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, ticket_id, sender_id, sender_name, role, body, attachment_path, created_at
		FROM ticket_messages WHERE ticket_id = ? ORDER BY created_at ASC, id ASC`, ticketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TicketMessage
	for rows.Next() {
		var m TicketMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.SenderName, &m.Role, &m.Body, &m.AttachmentPath, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- User notes ---

// NotesByUser returns the notes row for (userID, orgID). ErrNotFound
// means no notes exist yet; callers treat that as empty defaults.
func (s *Store) NotesByUser(userID, orgID string) (UserNotes, error) {
	var n UserNotes
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, org_id, notes, tags, version, updated_at
		FROM user_notes WHERE user_id = ? AND org_id = ?`, userID, orgID,
	).Scan(&n.UserID, &n.OrgID, &n.Notes, &n.Tags, &n.Version, &updatedAt)
	if err == sql.ErrNoRows {
		return UserNotes{}, ErrNotFound
	}
	if err != nil {
		return UserNotes{}, err
	}
	n.UpdatedAt, err = parseTime(updatedAt)
	return n, err
}

// UpsertNotes writes a notes row with an optimistic concurrency check.
// n.Version must be the version the caller read (0 for a row that did
// not exist). A mismatch returns ErrVersionConflict and leaves the row
// untouched; the caller re-reads and re-applies.
func (s *Store) UpsertNotes(n UserNotes) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if n.Version == 0 {
		_, err := s.db.Exec(`
			INSERT INTO user_notes (user_id, org_id, notes, tags, version, updated_at)
			VALUES (?, ?, ?, ?, 1, ?)`,
			n.UserID, n.OrgID, n.Notes, n.Tags, now,
		)
		if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrVersionConflict
		}
		return err
	}

	res, err := s.db.Exec(`
		UPDATE user_notes SET notes = ?, tags = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND org_id = ? AND version = ?`,
		n.Notes, n.Tags, now, n.UserID, n.OrgID, n.Version,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// --- Profiles ---

func (s *Store) SaveProfile(p Profile) error {
	_, err := s.db.Exec(`
		INSERT INTO profiles (id, display_name, email, company, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name,
			email = excluded.email, company = excluded.company`,
		p.ID, p.DisplayName, p.Email, p.Company,
		p.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ProfileByID(id string) (Profile, error) {
	var p Profile
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, display_name, email, company, created_at
		FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.DisplayName, &p.Email, &p.Company, &createdAt)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	p.CreatedAt, err = parseTime(createdAt)
	return p, err
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return t, nil
}
