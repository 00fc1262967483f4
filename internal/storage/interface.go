package storage

import (
	"lokalarchiv/internal/models"
)

// Storage defines the interface for the article store backend
type Storage interface {
	// UpsertArticle inserts a new article or updates the mutable fields of
	// the record sharing the same URL. created_at is set only on first
	// insert, updated_at on every write.
	UpsertArticle(article *models.Article) error
	QueryArticles(query *models.ArticleQuery) ([]models.Article, error)
	GetArticleByURL(url string) (*models.Article, error)
	CountArticles() (int, error)
	Close() error

	// Storage maintenance methods
	OptimizeDatabase() error
	GetDatabaseStats() (map[string]interface{}, error)
}
