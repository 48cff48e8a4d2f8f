package catalog

import "context"

type Repository interface {
	CreatePaper(ctx context.Context, title, matiere string, year int, serie *string, price int64, fileURL string) (*Paper, error)
	GetPaperByID(ctx context.Context, id int) (*Paper, error)
	ListPapers(ctx context.Context, matiere string, year int) ([]Paper, error)
	FindPaper(ctx context.Context, matiere string, year int, serie *string) (*Paper, error)
}
