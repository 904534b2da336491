package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	PRIMARY KEY (group_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);

CREATE TABLE IF NOT EXISTS images (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	owner_id INTEGER NOT NULL,
	url TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_images_category ON images(category);

CREATE TABLE IF NOT EXISTS image_shares (
	image_id INTEGER NOT NULL REFERENCES images(id) ON DELETE CASCADE,
	group_id INTEGER NOT NULL,
	PRIMARY KEY (image_id, group_id)
);

CREATE TABLE IF NOT EXISTS rankings (
	id INTEGER PRIMARY KEY,
	owner_id INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_rankings_category ON rankings(category);

CREATE TABLE IF NOT EXISTS ranking_shares (
	ranking_id INTEGER NOT NULL REFERENCES rankings(id) ON DELETE CASCADE,
	group_id INTEGER NOT NULL,
	PRIMARY KEY (ranking_id, group_id)
);

CREATE TABLE IF NOT EXISTS ranking_ratings (
	ranking_id INTEGER NOT NULL REFERENCES rankings(id) ON DELETE CASCADE,
	user_id INTEGER NOT NULL,
	stars INTEGER NOT NULL CHECK (stars BETWEEN 1 AND 5),
	PRIMARY KEY (ranking_id, user_id)
);
`

// visibility predicates; parameters are (admin, viewer, viewer).
const (
	imageVisible = `(? OR i.owner_id = ? OR EXISTS (
		SELECT 1 FROM image_shares s JOIN group_members m ON m.group_id = s.group_id
		WHERE s.image_id = i.id AND m.user_id = ?))`
	rankingVisible = `(? OR r.owner_id = ? OR EXISTS (
		SELECT 1 FROM ranking_shares s JOIN group_members m ON m.group_id = s.group_id
		WHERE s.ranking_id = r.id AND m.user_id = ?))`
)

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: an in-memory database is per connection, and SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("sqlite-store")
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	s.logger.Info(ctx, "sqlite store ready", logger.String("path", path))
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutUser inserts or replaces a user.
func (s *SQLiteStore) PutUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO users (id, display_name, avatar_url) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, avatar_url = excluded.avatar_url`,
		u.ID, u.DisplayName, u.AvatarURL)
	if err != nil {
		return fmt.Errorf("put user %d: %w", u.ID, err)
	}
	return nil
}

// PutImage inserts or replaces an image and its group shares.
func (s *SQLiteStore) PutImage(ctx context.Context, img model.Image, sharedWith ...int64) error {
	img.Category = model.NormalizeCategory(img.Category)
	if img.Category == "" || img.Category == model.ReservedCategory {
		return fmt.Errorf("%w: image %d has category %q", ErrInvalidRecord, img.ID, img.Category)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO images (id, name, category, owner_id, url) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, category = excluded.category,
			owner_id = excluded.owner_id, url = excluded.url`,
			img.ID, img.Name, img.Category, img.OwnerID, img.URL); err != nil {
			return fmt.Errorf("put image %d: %w", img.ID, err)
		}
		return replaceShares(ctx, tx, "image_shares", "image_id", img.ID, sharedWith)
	})
}

// PutRanking inserts or replaces a ranking and its group shares.
func (s *SQLiteStore) PutRanking(ctx context.Context, r model.Ranking) error {
	r.Category = model.NormalizeCategory(r.Category)
	if r.Category == "" || r.Category == model.ReservedCategory {
		return fmt.Errorf("%w: ranking %d has category %q", ErrInvalidRecord, r.ID, r.Category)
	}
	payload := string(r.Payload)
	if payload == "" {
		payload = "{}"
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO rankings (id, owner_id, name, category, payload) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id, name = excluded.name,
			category = excluded.category, payload = excluded.payload`,
			r.ID, r.OwnerID, r.Name, r.Category, payload); err != nil {
			return fmt.Errorf("put ranking %d: %w", r.ID, err)
		}
		return replaceShares(ctx, tx, "ranking_shares", "ranking_id", r.ID, r.Groups)
	})
}

// AddMembership puts a user in a group.
func (s *SQLiteStore) AddMembership(ctx context.Context, userID, groupID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`, groupID, userID)
	if err != nil {
		return fmt.Errorf("add membership %d/%d: %w", userID, groupID, err)
	}
	return nil
}

// Scope returns the category's visible images and rankings ordered by id.
func (s *SQLiteStore) Scope(ctx context.Context, viewer int64, admin bool, category string) ([]model.Image, []model.Ranking, error) {
	category = model.NormalizeCategory(category)

	rows, err := s.db.QueryContext(ctx, `
	SELECT i.id, i.name, i.category, i.owner_id, i.url FROM images i
	WHERE i.category = ? AND `+imageVisible+`
	ORDER BY i.id`, category, admin, viewer, viewer)
	if err != nil {
		return nil, nil, fmt.Errorf("query images: %w", err)
	}
	var images []model.Image
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.Name, &img.Category, &img.OwnerID, &img.URL); err != nil {
			_ = rows.Close()
			return nil, nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := closeRows(rows); err != nil {
		return nil, nil, fmt.Errorf("iterate images: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `
	SELECT r.id, r.owner_id, r.name, r.category, r.payload,
		COALESCE((SELECT GROUP_CONCAT(group_id) FROM ranking_shares WHERE ranking_id = r.id), '')
	FROM rankings r
	WHERE r.category = ? AND `+rankingVisible+`
	ORDER BY r.id`, category, admin, viewer, viewer)
	if err != nil {
		return nil, nil, fmt.Errorf("query rankings: %w", err)
	}
	var rankings []model.Ranking
	for rows.Next() {
		var (
			r       model.Ranking
			payload string
			groups  string
		)
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Category, &payload, &groups); err != nil {
			_ = rows.Close()
			return nil, nil, fmt.Errorf("scan ranking: %w", err)
		}
		r.Payload = []byte(payload)
		r.Groups = parseGroups(groups)
		rankings = append(rankings, r)
	}
	if err := closeRows(rows); err != nil {
		return nil, nil, fmt.Errorf("iterate rankings: %w", err)
	}
	return images, rankings, nil
}

// Ranking returns ranking id when viewer may see it.
func (s *SQLiteStore) Ranking(ctx context.Context, viewer int64, admin bool, id int64) (model.Ranking, error) {
	var (
		r       model.Ranking
		payload string
		groups  string
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT r.id, r.owner_id, r.name, r.category, r.payload,
		COALESCE((SELECT GROUP_CONCAT(group_id) FROM ranking_shares WHERE ranking_id = r.id), '')
	FROM rankings r
	WHERE r.id = ? AND `+rankingVisible, id, admin, viewer, viewer).
		Scan(&r.ID, &r.OwnerID, &r.Name, &r.Category, &payload, &groups)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ranking{}, fmt.Errorf("%w: ranking %d", ErrNotFound, id)
	}
	if err != nil {
		return model.Ranking{}, fmt.Errorf("query ranking %d: %w", id, err)
	}
	r.Payload = []byte(payload)
	r.Groups = parseGroups(groups)
	return r, nil
}

// Categories lists categories with visible images, sorted by name.
func (s *SQLiteStore) Categories(ctx context.Context, viewer int64, admin bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT DISTINCT i.category FROM images i
	WHERE `+imageVisible+`
	ORDER BY i.category`, admin, viewer, viewer)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

// SharesGroup reports whether a and b are in a common group.
func (s *SQLiteStore) SharesGroup(ctx context.Context, a, b int64) (bool, error) {
	var shared bool
	err := s.db.QueryRowContext(ctx, `
	SELECT EXISTS (
		SELECT 1 FROM group_members x JOIN group_members y ON x.group_id = y.group_id
		WHERE x.user_id = ? AND y.user_id = ?)`, a, b).Scan(&shared)
	if err != nil {
		return false, fmt.Errorf("shares group %d/%d: %w", a, b, err)
	}
	return shared, nil
}

// User looks up a user by id.
func (s *SQLiteStore) User(ctx context.Context, id int64) (model.User, error) {
	u := model.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name, avatar_url FROM users WHERE id = ?`, id).Scan(&u.DisplayName, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// RankingRating returns the stars userID gave rankingID.
func (s *SQLiteStore) RankingRating(ctx context.Context, rankingID, userID int64) (int, bool, error) {
	var stars int
	err := s.db.QueryRowContext(ctx,
		`SELECT stars FROM ranking_ratings WHERE ranking_id = ? AND user_id = ?`, rankingID, userID).Scan(&stars)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get ranking rating %d/%d: %w", rankingID, userID, err)
	}
	return stars, true, nil
}

// SetRankingRating records or replaces a rating of a ranking.
func (s *SQLiteStore) SetRankingRating(ctx context.Context, rankingID, userID int64, stars int) error {
	if !validStars(stars) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, stars)
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM rankings WHERE id = ?)`, rankingID).Scan(&exists); err != nil {
		return fmt.Errorf("check ranking %d: %w", rankingID, err)
	}
	if !exists {
		return fmt.Errorf("%w: ranking %d", ErrNotFound, rankingID)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO ranking_ratings (ranking_id, user_id, stars) VALUES (?, ?, ?)
	ON CONFLICT(ranking_id, user_id) DO UPDATE SET stars = excluded.stars`, rankingID, userID, stars)
	if err != nil {
		return fmt.Errorf("set ranking rating %d/%d: %w", rankingID, userID, err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// replaceShares rewrites the share rows of one image or ranking. table and column are constants.
func replaceShares(ctx context.Context, tx *sql.Tx, table, column string, id int64, groups []int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" = ?", id); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for _, g := range groups {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+table+" ("+column+", group_id) VALUES (?, ?)", id, g); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

func parseGroups(csv string) []int64 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if g, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			out = append(out, g)
		}
	}
	return out
}
