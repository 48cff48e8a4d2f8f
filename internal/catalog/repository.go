package catalog

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePaper(ctx context.Context, title, matiere string, year int, serie *string, price int64, fileURL string) (*Paper, error) {
	query := `
		INSERT INTO papers (title, matiere, year, serie, price, file_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, title, matiere, year, serie, price, file_url, created_at
	`

	var paper Paper
	err := r.db.GetContext(ctx, &paper, query, title, matiere, year, serie, price, fileURL)
	if err != nil {
		return nil, err
	}

	return &paper, nil
}

func (r *repository) GetPaperByID(ctx context.Context, id int) (*Paper, error) {
	query := `
		SELECT id, title, matiere, year, serie, price, file_url, created_at
		FROM papers
		WHERE id = $1
	`

	var paper Paper
	err := r.db.GetContext(ctx, &paper, query, id)
	if err != nil {
		return nil, err
	}

	return &paper, nil
}

func (r *repository) ListPapers(ctx context.Context, matiere string, year int) ([]Paper, error) {
	query := `
		SELECT id, title, matiere, year, serie, price, file_url, created_at
		FROM papers
		WHERE ($1 = '' OR matiere = $1)
		  AND ($2 = 0 OR year = $2)
		ORDER BY year DESC, matiere, title
	`

	var papers []Paper
	err := r.db.SelectContext(ctx, &papers, query, matiere, year)
	if err != nil {
		return nil, err
	}

	return papers, nil
}

func (r *repository) FindPaper(ctx context.Context, matiere string, year int, serie *string) (*Paper, error) {
	query := `
		SELECT id, title, matiere, year, serie, price, file_url, created_at
		FROM papers
		WHERE matiere = $1
		  AND year = $2
		  AND ($3::text IS NULL OR serie = $3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	var paper Paper
	err := r.db.GetContext(ctx, &paper, query, matiere, year, serie)
	if err != nil {
		return nil, err
	}

	return &paper, nil
}
