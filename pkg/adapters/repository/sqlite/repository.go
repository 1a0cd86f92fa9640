package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/domain"
	"github.com/wadjakorntonsri/go-linkpage/pkg/core/orderkey"
	"github.com/wadjakorntonsri/go-linkpage/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driver := driverName(dbURL)
	if driver == "sqlite" {
		dbURL = localDSN(dbURL)
	}
	db, err := sql.Open(driver, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}

	if err := migrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate database")
	}

	return &SQLiteRepository{db: db}, nil
}

// NewSQLiteRepositoryWithDB wraps an already migrated handle
func NewSQLiteRepositoryWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func driverName(dbURL string) string {
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		return "libsql"
	}
	return "sqlite"
}

// localDSN switches a local database to WAL, waits on locks instead of
// failing at once, and starts transactions with the write lock held so a
// read-then-write transaction cannot lose its snapshot to another writer.
func localDSN(dbURL string) string {
	params := []string{}
	if !strings.Contains(dbURL, "journal_mode") {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	if !strings.Contains(dbURL, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dbURL, "_txlock") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return dbURL
	}
	sep := "?"
	if strings.Contains(dbURL, "?") {
		sep = "&"
	}
	return dbURL + sep + strings.Join(params, "&")
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL DEFAULT '',
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		title TEXT,
		tags JSON,
		clicks INTEGER DEFAULT 0,
		order_key TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		deleted_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_links_short_code ON links(short_code);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id INTEGER NOT NULL,
		referer TEXT,
		user_agent TEXT,
		ip_hash TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(link_id) REFERENCES links(id)
	);
	CREATE INDEX IF NOT EXISTS idx_visits_link_id ON visits(link_id);

	CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL UNIQUE,
		title TEXT,
		description TEXT,
		theme TEXT NOT NULL DEFAULT 'default',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(query); err != nil {
		return err
	}

	// Databases created before ownership and ordering existed lack these
	// columns. SQLite has no ADD COLUMN IF NOT EXISTS, so the error is ignored.
	_, _ = db.Exec(`ALTER TABLE links ADD COLUMN clicks INTEGER DEFAULT 0`)
	_, _ = db.Exec(`ALTER TABLE links ADD COLUMN owner TEXT NOT NULL DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE links ADD COLUMN order_key TEXT NOT NULL DEFAULT ''`)

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_links_owner_order ON links(owner, order_key)`); err != nil {
		return err
	}
	return nil
}

const linkColumns = `id, owner, original_url, short_code, title, tags, order_key, clicks, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (domain.Link, error) {
	var l domain.Link
	var title sql.NullString
	var tagsJSON []byte
	var deletedAt sql.NullTime
	var clicks sql.NullInt64

	err := s.Scan(&l.ID, &l.Owner, &l.OriginalURL, &l.ShortCode, &title, &tagsJSON,
		&l.OrderKey, &clicks, &l.CreatedAt, &l.UpdatedAt, &deletedAt)
	if err != nil {
		return l, err
	}

	l.Title = title.String
	l.Clicks = clicks.Int64
	if deletedAt.Valid {
		l.DeletedAt = &deletedAt.Time
	}
	_ = json.Unmarshal(tagsJSON, &l.Tags)
	return l, nil
}

func scanLinks(rows *sql.Rows) ([]domain.Link, error) {
	defer rows.Close()

	var links []domain.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, classify(err, "scan link")
		}
		links = append(links, l)
	}
	return links, classify(rows.Err(), "iterate links")
}

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (owner, original_url, short_code, title, tags, order_key, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, link.Owner, link.OriginalURL, link.ShortCode, link.Title,
		tagsJSON, link.OrderKey, link.CreatedAt, link.UpdatedAt)
	if err != nil {
		return classify(err, "insert link")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return classify(err, "read inserted link id")
	}
	link.ID = id
	return nil
}

func (r *SQLiteRepository) GetByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ? AND deleted_at IS NULL`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get link by short code")
	}
	return &link, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = ? AND deleted_at IS NULL`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get link by id")
	}
	return &link, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, link *domain.Link) error {
	query := `UPDATE links SET original_url = ?, title = ?, tags = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`

	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, link.OriginalURL, link.Title, tagsJSON, link.UpdatedAt, link.ID)
	return classify(err, "update link")
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	query := `UPDATE links SET deleted_at = ?, order_key = '' WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	return classify(err, "delete link")
}

// filterClause builds the WHERE conditions shared by List and Count
func filterClause(filters map[string]interface{}) (string, []interface{}) {
	clause := ""
	args := []interface{}{}

	if owner, ok := filters["owner"].(string); ok && owner != "" {
		clause += " AND owner = ?"
		args = append(args, owner)
	}
	if search, ok := filters["search"].(string); ok && search != "" {
		clause += " AND (title LIKE ? OR original_url LIKE ?)"
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	if tag, ok := filters["tag"].(string); ok && tag != "" {
		clause += " AND EXISTS (SELECT 1 FROM json_each(links.tags) WHERE value = ?)"
		args = append(args, tag)
	}
	return clause, args
}

func (r *SQLiteRepository) List(ctx context.Context, limit, offset int, filters map[string]interface{}) ([]domain.Link, error) {
	where, args := filterClause(filters)
	query := `SELECT ` + linkColumns + ` FROM links WHERE deleted_at IS NULL` + where +
		` ORDER BY order_key = '', order_key, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list links")
	}
	return scanLinks(rows)
}

func (r *SQLiteRepository) Count(ctx context.Context, filters map[string]interface{}) (int64, error) {
	where, args := filterClause(filters)
	query := `SELECT COUNT(*) FROM links WHERE deleted_at IS NULL` + where

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, classify(err, "count links")
	}
	return count, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY owner, order_key = '', order_key, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err, "dump links")
	}
	return scanLinks(rows)
}

func (r *SQLiteRepository) RecordVisit(ctx context.Context, visit *domain.Visit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin visit transaction")
	}
	defer tx.Rollback()

	// 1. Insert Visit Record
	queryVisit := `INSERT INTO visits (link_id, referer, user_agent, ip_hash, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryVisit, visit.LinkID, visit.Referer, visit.UserAgent, visit.IPHash, visit.CreatedAt.Format("2006-01-02 15:04:05"))
	if err != nil {
		return classify(err, "insert visit")
	}

	// 2. Increment Link Clicks Counter (Atomic)
	queryCount := `UPDATE links SET clicks = clicks + 1 WHERE id = ?`
	if _, err = tx.ExecContext(ctx, queryCount, visit.LinkID); err != nil {
		return classify(err, "increment clicks")
	}

	return classify(tx.Commit(), "commit visit")
}

func (r *SQLiteRepository) GetLinkStats(ctx context.Context, linkID int64) (*domain.LinkStats, error) {
	stats := &domain.LinkStats{
		LinkID:      linkID,
		Referrers:   make(map[string]int64),
		DailyClicks: []domain.DailyClick{},
	}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits WHERE link_id = ?`, linkID).Scan(&stats.TotalClicks)
	if err != nil {
		return nil, classify(err, "count visits")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT COALESCE(referer, ''), COUNT(*) as c FROM visits WHERE link_id = ? GROUP BY referer ORDER BY c DESC LIMIT 10`, linkID)
	if err != nil {
		return nil, classify(err, "top referrers")
	}
	for rows.Next() {
		var ref string
		var count int64
		if err := rows.Scan(&ref, &count); err != nil {
			rows.Close()
			return nil, classify(err, "scan referrer")
		}
		if ref == "" {
			ref = "Direct"
		}
		stats.Referrers[ref] += count
	}
	rows.Close()

	// Daily Clicks (Last 30 days)
	rows2, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', created_at) as date, COUNT(*)
		FROM visits
		WHERE link_id = ?
		GROUP BY date
		ORDER BY date DESC
		LIMIT 30`, linkID)
	if err != nil {
		return nil, classify(err, "daily clicks")
	}
	defer rows2.Close()
	for rows2.Next() {
		var dc domain.DailyClick
		if err := rows2.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, classify(err, "scan daily clicks")
		}
		stats.DailyClicks = append(stats.DailyClicks, dc)
	}
	if err := rows2.Err(); err != nil {
		return nil, classify(err, "iterate daily clicks")
	}
	return stats, nil
}

func (r *SQLiteRepository) GetDashboardStats(ctx context.Context, limit int, filters map[string]interface{}) ([]domain.Link, int64, error) {
	owner, _ := filters["owner"].(string)

	// Summing the clicks column avoids scanning visits
	var totalClicks int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(clicks), 0) FROM links WHERE deleted_at IS NULL AND owner = ?`, owner).Scan(&totalClicks)
	if err != nil {
		return nil, 0, classify(err, "sum clicks")
	}

	query := `SELECT ` + linkColumns + ` FROM links WHERE deleted_at IS NULL AND owner = ?`
	args := []interface{}{owner}

	if search, ok := filters["search"].(string); ok && search != "" {
		query += " AND (title LIKE ?)"
		args = append(args, "%"+search+"%")
	}
	if tag, ok := filters["tag"].(string); ok && tag != "" {
		query += " AND EXISTS (SELECT 1 FROM json_each(tags) WHERE value = ?)"
		args = append(args, tag)
	}
	if domainFilter, ok := filters["domain"].(string); ok && domainFilter != "" {
		query += " AND original_url LIKE ?"
		args = append(args, "%"+domainFilter+"%")
	}

	query += " ORDER BY clicks DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify(err, "top links")
	}
	links, err := scanLinks(rows)
	if err != nil {
		return nil, 0, err
	}
	return links, totalClicks, nil
}

// --- Ordering ---

// LastKey returns the greatest order key of owner's live links, "" if none.
// Binary collation sorts "b" before "ba" where padded comparison ties them,
// so the result is never below the padded maximum.
func (r *SQLiteRepository) LastKey(ctx context.Context, owner string) (string, error) {
	var key string
	err := r.db.QueryRowContext(ctx, `SELECT order_key FROM links
		WHERE owner = ? AND deleted_at IS NULL AND order_key <> ''
		ORDER BY order_key DESC LIMIT 1`, owner).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", classify(err, "last order key")
	}
	return key, nil
}

func (r *SQLiteRepository) ListByScope(ctx context.Context, owner string) ([]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, order_key FROM links
		WHERE owner = ? AND deleted_at IS NULL AND order_key <> ''
		ORDER BY id`, owner)
	if err != nil {
		return nil, classify(err, "list positions")
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.LinkID, &p.OrderKey); err != nil {
			return nil, classify(err, "scan position")
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "iterate positions")
	}

	orderkey.SortStable(positions, func(p domain.Position) string { return p.OrderKey })
	return positions, nil
}

// ScopeLinks returns owner's live links in display order. Links without a
// key sort last. Keys that tie under padding keep id order.
func (r *SQLiteRepository) ScopeLinks(ctx context.Context, owner string) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links
		WHERE owner = ? AND deleted_at IS NULL
		ORDER BY order_key = '', id`, owner)
	if err != nil {
		return nil, classify(err, "scope links")
	}
	links, err := scanLinks(rows)
	if err != nil {
		return nil, err
	}

	keyed := 0
	for keyed < len(links) && links[keyed].OrderKey != "" {
		keyed++
	}
	orderkey.SortStable(links[:keyed], func(l domain.Link) string { return l.OrderKey })
	return links, nil
}

func (r *SQLiteRepository) SetOrderKeys(ctx context.Context, positions []domain.Position) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE links SET order_key = ? WHERE id = ? AND deleted_at IS NULL`)
		if err != nil {
			return classify(err, "prepare order key update")
		}
		defer stmt.Close()

		for _, p := range positions {
			if _, err := stmt.ExecContext(ctx, p.OrderKey, p.LinkID); err != nil {
				return classify(err, "set order key")
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(tx ports.OrderTx) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return classify(tx.Commit(), "commit transaction")
}

type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) GetOwner(ctx context.Context, linkID int64) (string, bool, error) {
	var owner string
	err := t.tx.QueryRowContext(ctx, `SELECT owner FROM links WHERE id = ? AND deleted_at IS NULL`, linkID).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err, "get link owner")
	}
	return owner, true, nil
}

func (t *orderTx) WriteKey(ctx context.Context, linkID int64, expected, newKey string) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE links SET order_key = ?, updated_at = ?
		WHERE id = ? AND order_key = ? AND deleted_at IS NULL`, newKey, time.Now(), linkID, expected)
	if err != nil {
		return false, classify(err, "write order key")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify(err, "write order key rows")
	}
	return n == 1, nil
}

// --- Profile Repository Implementation ---

const profileColumns = `id, owner, slug, title, description, theme, created_at, updated_at`

func scanProfile(s scanner) (*domain.Profile, error) {
	var p domain.Profile
	var title, description sql.NullString
	if err := s.Scan(&p.ID, &p.Owner, &p.Slug, &title, &description, &p.Theme, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, classify(err, "scan profile")
	}
	p.Title = title.String
	p.Description = description.String
	return &p, nil
}

func (r *SQLiteRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `INSERT INTO profiles (owner, slug, title, description, theme, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query, profile.Owner, profile.Slug, profile.Title, profile.Description,
		profile.Theme, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return classify(err, "insert profile")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return classify(err, "read inserted profile id")
	}
	profile.ID = id
	return nil
}

func (r *SQLiteRepository) GetProfileByOwner(ctx context.Context, owner string) (*domain.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE owner = ?`, owner))
}

func (r *SQLiteRepository) GetProfileBySlug(ctx context.Context, slug string) (*domain.Profile, error) {
	return scanProfile(r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE slug = ?`, slug))
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `UPDATE profiles SET slug = ?, title = ?, description = ?, theme = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, profile.Slug, profile.Title, profile.Description, profile.Theme, profile.UpdatedAt, profile.ID)
	return classify(err, "update profile")
}

func (r *SQLiteRepository) DeleteProfile(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	return classify(err, "delete profile")
}

// Ensure interface compliance
var (
	_ ports.LinkRepository    = (*SQLiteRepository)(nil)
	_ ports.OrderStore        = (*SQLiteRepository)(nil)
	_ ports.ProfileRepository = (*SQLiteRepository)(nil)
)
