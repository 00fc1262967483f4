package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lokalarchiv/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is the canonical timestamp representation in the database:
// ISO-8601 in UTC with second precision. Stored as TEXT so that range
// comparisons on published_at are plain lexicographic comparisons.
const timeLayout = "2006-01-02T15:04:05Z"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dataDir string) (*SQLiteStorage, error) {
	// Ensure data directory exists with secure permissions (0750)
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "articles.db")
	log.Printf("Initializing database at: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	if err := validateSchema(db); err != nil {
		return nil, fmt.Errorf("schema validation failed: %v", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		published_at TEXT,
		source TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);",
		"CREATE INDEX IF NOT EXISTS idx_articles_title ON articles(title);",
	}

	if _, err := db.Exec(articlesTable); err != nil {
		return fmt.Errorf("failed to create articles table: %v", err)
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

// validateSchema checks that the articles table carries all required columns
func validateSchema(db *sql.DB) error {
	requiredColumns := []string{
		"id", "url", "title", "summary", "content",
		"published_at", "source", "created_at", "updated_at",
	}
	for _, column := range requiredColumns {
		var count int
		query := "SELECT COUNT(*) FROM pragma_table_info('articles') WHERE name=?"
		err := db.QueryRow(query, column).Scan(&count)
		if err != nil || count == 0 {
			return fmt.Errorf("missing required column in articles table: %s", column)
		}
	}
	return nil
}

// UpsertArticle inserts or updates the record keyed by the article URL.
// created_at is preserved on conflict; updated_at is always rewritten.
func (s *SQLiteStorage) UpsertArticle(article *models.Article) error {
	if article.URL == "" {
		return fmt.Errorf("article URL must not be empty")
	}

	now := time.Now().UTC().Truncate(time.Second).Format(timeLayout)

	var published sql.NullString
	if article.PublishedAt != nil {
		published = sql.NullString{
			String: article.PublishedAt.UTC().Truncate(time.Second).Format(timeLayout),
			Valid:  true,
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO articles (url, title, summary, content, published_at, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			summary = excluded.summary,
			content = excluded.content,
			published_at = excluded.published_at,
			source = excluded.source,
			updated_at = excluded.updated_at
	`, article.URL, article.Title, article.Summary, article.Content, published, article.Source, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert article %s: %v", article.URL, err)
	}

	return nil
}

// QueryArticles returns a bounded, ordered list of articles matching the
// query. Articles without a published date sort last; among dated articles
// the newest comes first, ties broken by most recent insertion.
func (s *SQLiteStorage) QueryArticles(query *models.ArticleQuery) ([]models.Article, error) {
	sqlQuery, args := buildArticleQuery(query)

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %v", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %v", err)
	}

	return articles, nil
}

func buildArticleQuery(query *models.ArticleQuery) (string, []interface{}) {
	baseQuery := `
		SELECT id, url, title, summary, content, published_at, source, created_at, updated_at
		FROM articles
		WHERE 1=1
	`
	args := []interface{}{}

	// Substring variants are unioned: any variant matching any text field
	// qualifies the article.
	if len(query.Terms) > 0 {
		termConditions := make([]string, len(query.Terms))
		for i, term := range query.Terms {
			termConditions[i] = "(title LIKE ? OR summary LIKE ? OR content LIKE ?)"
			pattern := "%" + term + "%"
			args = append(args, pattern, pattern, pattern)
		}
		baseQuery += " AND (" + strings.Join(termConditions, " OR ") + ")"
	}

	if query.From != nil {
		baseQuery += " AND published_at >= ?"
		args = append(args, query.From.UTC().Format(timeLayout))
	}

	if query.To != nil {
		baseQuery += " AND published_at <= ?"
		args = append(args, query.To.UTC().Format(timeLayout))
	}

	// Title exclusions are conjunctive: one hit disqualifies the article.
	for _, term := range query.ExcludeTitleTerms {
		baseQuery += " AND title NOT LIKE ?"
		args = append(args, "%"+term+"%")
	}

	baseQuery += " ORDER BY published_at IS NULL, published_at DESC, id DESC"

	if query.Limit > 0 {
		baseQuery += " LIMIT ?"
		args = append(args, query.Limit)
	}

	return baseQuery, args
}

func (s *SQLiteStorage) GetArticleByURL(url string) (*models.Article, error) {
	row := s.db.QueryRow(`
		SELECT id, url, title, summary, content, published_at, source, created_at, updated_at
		FROM articles
		WHERE url = ?
	`, url)

	article, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("article not found: %s", url)
	}
	if err != nil {
		return nil, err
	}
	return article, nil
}

func (s *SQLiteStorage) CountArticles() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count articles: %v", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var article models.Article
	var published sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&article.ID,
		&article.URL,
		&article.Title,
		&article.Summary,
		&article.Content,
		&published,
		&article.Source,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %v", err)
	}

	if published.Valid {
		if t, err := time.Parse(timeLayout, published.String); err == nil {
			article.PublishedAt = &t
		} else {
			log.Printf("Warning: failed to parse published_at for article %s: %v", article.URL, err)
		}
	}

	if t, err := time.Parse(timeLayout, createdAt); err == nil {
		article.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, updatedAt); err == nil {
		article.UpdatedAt = t
	}

	return &article, nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// OptimizeDatabase runs VACUUM and ANALYZE to reclaim space and refresh
// query planner statistics
func (s *SQLiteStorage) OptimizeDatabase() error {
	log.Printf("Optimizing database...")

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %v", err)
	}

	if _, err := s.db.Exec("ANALYZE"); err != nil {
		return fmt.Errorf("failed to analyze database: %v", err)
	}

	log.Printf("Database optimization completed")
	return nil
}

// GetDatabaseStats returns basic statistics about the article store
func (s *SQLiteStorage) GetDatabaseStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalArticles int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles").Scan(&totalArticles); err != nil {
		return nil, fmt.Errorf("failed to count articles: %v", err)
	}
	stats["total_articles"] = totalArticles

	var undated int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM articles WHERE published_at IS NULL").Scan(&undated); err != nil {
		return nil, fmt.Errorf("failed to count undated articles: %v", err)
	}
	stats["articles_without_date"] = undated

	// Per-source breakdown
	rows, err := s.db.Query("SELECT source, COUNT(*) FROM articles GROUP BY source ORDER BY COUNT(*) DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query source stats: %v", err)
	}
	defer rows.Close()

	perSource := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source stats: %v", err)
		}
		perSource[source] = count
	}
	stats["articles_per_source"] = perSource

	var oldest, newest sql.NullString
	if err := s.db.QueryRow("SELECT MIN(published_at), MAX(published_at) FROM articles WHERE published_at IS NOT NULL").Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to query date range: %v", err)
	}
	if oldest.Valid {
		stats["oldest_published_at"] = oldest.String
	}
	if newest.Valid {
		stats["newest_published_at"] = newest.String
	}

	return stats, nil
}
