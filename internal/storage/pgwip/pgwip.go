package pgwip

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const defaultChunkSize = 1000

type Storage struct {
	db        *pgxpool.Pool
	chunkSize int
}

func New(connString string) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{db: db, chunkSize: defaultChunkSize}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// WithChunkSize sets how many snapshot rows go into one COPY.
func (s *Storage) WithChunkSize(n int) *Storage {
	if n > 0 {
		s.chunkSize = n
	}
	return s
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
