package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/maneesh/filevault/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MySQLStore persists the username -> User mapping in MySQL. The document
// semantics of MetadataStore are kept: Load reads every row, Save replaces
// the whole table in one transaction.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore initializes a MySQL-backed metadata store
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	schema := `CREATE TABLE IF NOT EXISTS users (
		username      VARCHAR(191) PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		files         JSON NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}

	return &MySQLStore{db: db}, nil
}

// Close closes the database connection
func (ms *MySQLStore) Close() error {
	return ms.db.Close()
}

// Load reads every user row with tracing
func (ms *MySQLStore) Load(ctx context.Context) (map[string]*models.User, error) {
	ctx, span := tracer.Start(ctx, "mysql.load_users")
	defer span.End()

	query := `SELECT username, password_hash, files FROM users`

	rows, err := ms.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make(map[string]*models.User)
	for rows.Next() {
		var username string
		var user models.User
		var filesJSON []byte

		if err := rows.Scan(&username, &user.PasswordHash, &filesJSON); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		if err := json.Unmarshal(filesJSON, &user.Files); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to parse file list for %s: %w", username, err)
		}

		users[username] = &user
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	span.SetAttributes(attribute.Int("user_count", len(users)))
	return users, nil
}

// Save replaces the whole users table in one transaction with tracing
func (ms *MySQLStore) Save(ctx context.Context, users map[string]*models.User) error {
	ctx, span := tracer.Start(ctx, "mysql.save_users",
		trace.WithAttributes(
			attribute.Int("user_count", len(users)),
		),
	)
	defer span.End()

	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear users: %w", err)
	}

	insert := `INSERT INTO users (username, password_hash, files) VALUES (?, ?, ?)`
	for username, user := range users {
		files := user.Files
		if files == nil {
			files = []models.FileRecord{}
		}
		filesJSON, err := json.Marshal(files)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to marshal file list for %s: %w", username, err)
		}

		if _, err := tx.ExecContext(ctx, insert, username, user.PasswordHash, filesJSON); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert user %s: %w", username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit users: %w", err)
	}

	return nil
}
