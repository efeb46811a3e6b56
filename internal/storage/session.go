package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/garyellow/scamguard-linebot-go/internal/detection"
)

// SaveResult replaces the user's last detection result.
func (db *DB) SaveResult(ctx context.Context, userID string, result *detection.DetectionResult) error {
	if result == nil {
		return errors.New("save result: nil result")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO last_results (user_id, result, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET result = excluded.result, updated_at = excluded.updated_at
	`
	if _, err := db.conn.ExecContext(ctx, query, userID, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// LastResult returns the user's last detection result, or ErrNotFound.
func (db *DB) LastResult(ctx context.Context, userID string) (*detection.DetectionResult, error) {
	var data string
	err := db.conn.QueryRowContext(ctx,
		`SELECT result FROM last_results WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query result: %w", err)
	}

	var result detection.DetectionResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &result, nil
}

// Reset clears the last result and the chat history of a user. The
// preferred provider survives.
func (db *DB) Reset(ctx context.Context, userID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM last_results WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_history WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return tx.Commit()
}

// AppendHistory stores a message and trims the user's history to the
// configured limit, dropping the oldest rows.
func (db *DB) AppendHistory(ctx context.Context, userID, content string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_history (user_id, content, created_at) VALUES (?, ?, ?)`,
		userID, content, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	trim := `
		DELETE FROM chat_history
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM chat_history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)
	`
	if _, err := tx.ExecContext(ctx, trim, userID, userID, db.historyLimit); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return tx.Commit()
}

// RecentHistory returns up to n of the newest messages, oldest first.
func (db *DB) RecentHistory(ctx context.Context, userID string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT content FROM chat_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// CountHistory returns the number of stored messages for a user.
func (db *DB) CountHistory(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_history WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// SetProvider records the user's preferred LLM provider.
func (db *DB) SetProvider(ctx context.Context, userID, provider string) error {
	query := `
		INSERT INTO user_prefs (user_id, provider, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET provider = excluded.provider, updated_at = excluded.updated_at
	`
	if _, err := db.conn.ExecContext(ctx, query, userID, provider, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	return nil
}

// Provider returns the user's preferred provider, or "" if none is set.
func (db *DB) Provider(ctx context.Context, userID string) (string, error) {
	var provider string
	err := db.conn.QueryRowContext(ctx,
		`SELECT provider FROM user_prefs WHERE user_id = ?`, userID).Scan(&provider)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query provider: %w", err)
	}
	return provider, nil
}
