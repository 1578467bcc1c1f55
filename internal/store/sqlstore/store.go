package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	ms "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib" // Postgres driver
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/samber/lo"

	"github.com/pliu/quachat/internal/models"
	"github.com/pliu/quachat/internal/store"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type SQLStore struct {
	queries
	db *sqlx.DB
}

// queries runs statements against either the pool or a transaction.
type queries struct {
	ext    sqlx.ExtContext
	driver string
}

var _ store.Store = (*SQLStore)(nil)

// New opens the database, checks the connection and creates missing tables.
// driverName is one of sqlite3, postgres or mysql.
func New(driverName, dataSourceName string) (*SQLStore, error) {
	sqlDriver := driverName
	switch driverName {
	case DriverSQLite, DriverMySQL:
	case DriverPostgres:
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}

	db, err := sqlx.Open(sqlDriver, dataSourceName)
	if err != nil {
		return nil, err
	}
	if driverName == DriverSQLite {
		// An in-memory database only lives as long as its connection.
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLStore{queries: queries{ext: db, driver: driverName}, db: db}
	if err = s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&queries{ext: tx, driver: s.driver}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) createTables() error {
	for _, stmt := range schema(s.driver) {
		if _, err := s.db.Exec(s.rebind(stmt)); err != nil {
			return err
		}
	}
	return nil
}

// mysqlTableOptions makes every MySQL string column compare byte-wise, matching the
// case-sensitive equality SQLite and PostgreSQL have by default.
const mysqlTableOptions = " DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin"

// schema returns the DDL statements for driver, in execution order.
func schema(driver string) []string {
	stmts := []string{`
	CREATE TABLE IF NOT EXISTS users (
		name VARCHAR(16) PRIMARY KEY,
		token VARCHAR(32) NOT NULL UNIQUE
	)`, `
	CREATE TABLE IF NOT EXISTS chats (
		id VARCHAR(32) PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		is_private BOOLEAN NOT NULL DEFAULT FALSE
	)`, `
	CREATE TABLE IF NOT EXISTS users_chats (
		id VARCHAR(32) PRIMARY KEY,
		"user" VARCHAR(16) NOT NULL,
		chat VARCHAR(32) NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS messages (
		id VARCHAR(32) PRIMARY KEY,
		text VARCHAR(4096) NOT NULL,
		chat VARCHAR(32) NOT NULL,
		created BIGINT NOT NULL,
		author VARCHAR(16) NOT NULL
	)`,
	}

	if driver != DriverMySQL {
		return append(stmts,
			`CREATE INDEX IF NOT EXISTS users_chats_user_chat ON users_chats ("user", chat)`,
			`CREATE INDEX IF NOT EXISTS messages_chat_created ON messages (chat, created)`,
		)
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes are declared with the
	// tables instead.
	stmts[2] = strings.Replace(stmts[2], "chat VARCHAR(32) NOT NULL\n",
		"chat VARCHAR(32) NOT NULL,\n\t\tINDEX users_chats_user_chat (\"user\", chat)\n", 1)
	stmts[3] = strings.Replace(stmts[3], "author VARCHAR(16) NOT NULL\n",
		"author VARCHAR(16) NOT NULL,\n\t\tINDEX messages_chat_created (chat, created)\n", 1)
	for i := range stmts {
		stmts[i] += mysqlTableOptions
	}
	return stmts
}

// Helper to handle placeholders and identifier quoting. Queries are written with
// ? placeholders and double-quoted identifiers.
func (q *queries) rebind(query string) string {
	if q.driver == DriverMySQL {
		query = strings.ReplaceAll(query, `"`, "`")
	}
	return q.ext.Rebind(query)
}

func (q *queries) CreateUser(ctx context.Context, user *models.User) error {
	query := q.rebind("INSERT INTO users (name, token) VALUES (?, ?)")
	_, err := q.ext.ExecContext(ctx, query, user.Name, user.Token)
	return q.translate(err)
}

func (q *queries) UserExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := q.rebind("SELECT EXISTS(SELECT 1 FROM users WHERE name = ?)")
	err := sqlx.GetContext(ctx, q.ext, &exists, query, name)
	return exists, err
}

// GetUserByToken returns nil without an error when no user holds the token.
func (q *queries) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	query := q.rebind("SELECT name, token FROM users WHERE token = ?")
	err := sqlx.GetContext(ctx, q.ext, &user, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (q *queries) CreateChat(ctx context.Context, chat *models.Chat) error {
	query := q.rebind("INSERT INTO chats (id, name, is_private) VALUES (?, ?, ?)")
	_, err := q.ext.ExecContext(ctx, query, chat.ID, chat.Name, chat.IsPrivate)
	return q.translate(err)
}

func (q *queries) ChatExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := q.rebind("SELECT EXISTS(SELECT 1 FROM chats WHERE id = ?)")
	err := sqlx.GetContext(ctx, q.ext, &exists, query, id)
	return exists, err
}

func (q *queries) GetUserChats(ctx context.Context, user string) ([]models.Chat, error) {
	query := q.rebind(`
		SELECT DISTINCT c.id, c.name, c.is_private
		FROM chats c
		JOIN users_chats uc ON c.id = uc.chat
		WHERE uc."user" = ?
		ORDER BY c.name, c.id
	`)
	chats := []models.Chat{}
	if err := sqlx.SelectContext(ctx, q.ext, &chats, query, user); err != nil {
		return nil, err
	}
	return chats, nil
}

// SearchPublicChats matches the name prefix case-sensitively. SUBSTR is used rather
// than LIKE, whose case sensitivity differs between engines; the result is filtered
// once more for collations that compare case-insensitively.
func (q *queries) SearchPublicChats(ctx context.Context, prefix string, limit int) ([]models.Chat, error) {
	query := q.rebind(`
		SELECT id, name, is_private
		FROM chats
		WHERE is_private = ? AND SUBSTR(name, 1, ?) = ?
		ORDER BY name, id
		LIMIT ?
	`)
	chats := []models.Chat{}
	err := sqlx.SelectContext(ctx, q.ext, &chats, query, false, utf8.RuneCountInString(prefix), prefix, limit)
	if err != nil {
		return nil, err
	}
	return lo.Filter(chats, func(c models.Chat, _ int) bool {
		return strings.HasPrefix(c.Name, prefix)
	}), nil
}

func (q *queries) AddMember(ctx context.Context, membership *models.Membership) error {
	query := q.rebind(`INSERT INTO users_chats (id, "user", chat) VALUES (?, ?, ?)`)
	_, err := q.ext.ExecContext(ctx, query, membership.ID, membership.User, membership.Chat)
	return q.translate(err)
}

// RemoveMember deletes every membership row of the pair and reports how many there were.
func (q *queries) RemoveMember(ctx context.Context, user, chat string) (int64, error) {
	query := q.rebind(`DELETE FROM users_chats WHERE "user" = ? AND chat = ?`)
	result, err := q.ext.ExecContext(ctx, query, user, chat)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (q *queries) IsMember(ctx context.Context, user, chat string) (bool, error) {
	var exists bool
	query := q.rebind(`SELECT EXISTS(SELECT 1 FROM users_chats WHERE "user" = ? AND chat = ?)`)
	err := sqlx.GetContext(ctx, q.ext, &exists, query, user, chat)
	return exists, err
}

func (q *queries) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := q.rebind("INSERT INTO messages (id, text, chat, created, author) VALUES (?, ?, ?, ?, ?)")
	_, err := q.ext.ExecContext(ctx, query, msg.ID, msg.Text, msg.Chat, msg.Created, msg.Author)
	return q.translate(err)
}

// GetChatMessages returns messages oldest first. With a positive Last only the newest
// Last messages are returned.
func (q *queries) GetChatMessages(ctx context.Context, chat string, filter store.MessageFilter) ([]models.Message, error) {
	messages := []models.Message{}

	if filter.Last > 0 {
		query := q.rebind(`
			SELECT id, text, chat, author, created
			FROM messages
			WHERE chat = ?
			ORDER BY created DESC, id DESC
			LIMIT ?
		`)
		if err := sqlx.SelectContext(ctx, q.ext, &messages, query, chat, filter.Last); err != nil {
			return nil, err
		}
		return lo.Reverse(messages), nil
	}

	query := "SELECT id, text, chat, author, created FROM messages WHERE chat = ?"
	args := []any{chat}
	if filter.Start != nil {
		query += " AND created >= ?"
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		query += " AND created <= ?"
		args = append(args, *filter.End)
	}
	query += " ORDER BY created ASC, id ASC"

	if err := sqlx.SelectContext(ctx, q.ext, &messages, q.rebind(query), args...); err != nil {
		return nil, err
	}
	return messages, nil
}

// translate maps driver uniqueness violations to store.ErrDuplicate.
func (q *queries) translate(err error) error {
	if err == nil {
		return nil
	}
	if isDupe(err) {
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	}
	return err
}

func isDupe(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *ms.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}
