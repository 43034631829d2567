package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type SequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// NextNumber mints the next deviation number for a year, e.g. "2024-001".
// The upsert increments the per-year counter atomically, so concurrent
// creates can never observe the same value. The first call of a year seeds
// the counter at 1.
func (r *SequenceRepository) NextNumber(ctx context.Context, year int) (string, error) {
	var counter int
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO deviation_sequences (year, counter) VALUES (?, 1)
		 ON CONFLICT (year) DO UPDATE SET counter = deviation_sequences.counter + 1
		 RETURNING counter`, year,
	).Scan(&counter).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%03d", year, counter), nil
}
