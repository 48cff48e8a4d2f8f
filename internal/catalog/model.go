package catalog

import "time"

// Paper is a priced past-exam paper students unlock with credits.
type Paper struct {
	ID        int       `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Matiere   string    `db:"matiere" json:"matiere"`
	Year      int       `db:"year" json:"year"`
	Serie     *string   `db:"serie" json:"serie,omitempty"`
	Price     int64     `db:"price" json:"price"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreatePaperRequest struct {
	Title   string  `json:"title" binding:"required"`
	Matiere string  `json:"matiere" binding:"required"`
	Year    int     `json:"year" binding:"required"`
	Serie   *string `json:"serie"`
	Price   int64   `json:"price"`
	FileURL string  `json:"file_url"`
}
