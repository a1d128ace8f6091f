package storage

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/skillbook/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveSubmission(s *models.BookingSubmission) error {
	_, err := p.db.Exec(`INSERT INTO booking_submissions(id, session_id, provider_id, skill_id, method, intent_id, state, failure_cause, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.SessionID, s.ProviderID, s.SkillID, s.Method, s.IntentID, s.State, s.FailureCause, s.CreatedAt, s.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateSubmission(s *models.BookingSubmission) error {
	_, err := p.db.Exec(`UPDATE booking_submissions SET method=$1, intent_id=$2, state=$3, failure_cause=$4, updated_at=$5 WHERE id=$6`,
		s.Method, s.IntentID, s.State, s.FailureCause, time.Now(), s.ID)
	return err
}
