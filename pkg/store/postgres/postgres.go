// Package postgres stores jobs, resumes and profiles in PostgreSQL as JSONB documents.
package postgres

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/store"
	"github.com/pkg/errors"
)

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS resumes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	job_id TEXT,
	is_base BOOLEAN NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS resumes_user_idx ON resumes (user_id);
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// Connect opens a pool against dsn, pings it and applies the schema.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (s *Store, err error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	var config *pgxpool.Config
	config, err = pgxpool.ParseConfig(dsn)
	if err != nil {
		err = errors.Wrap(err, "parse pgx config")
		return s, err
	}
	config.MaxConns = 10
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	var pool *pgxpool.Pool
	pool, err = pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		err = errors.Wrap(err, "open pgx pool")
		return s, err
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		err = errors.Wrap(err, "ping postgres")
		return s, err
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		err = errors.Wrap(err, "apply schema")
		return s, err
	}

	s = &Store{pool: pool, logger: logger, now: time.Now}
	return s, err
}

// Close releases the pool.
func (s *Store) Close() (err error) {
	s.pool.Close()
	return err
}

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, job model.Job) (created model.Job, err error) {
	created = store.NewJob(job, s.now())

	var data []byte
	data, err = json.Marshal(created)
	if err != nil {
		err = apierr.Upstream(err, "failed to encode job")
		return created, err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO jobs (id, user_id, data, created_at) VALUES ($1, $2, $3, $4)`,
		created.ID, created.UserID, data, created.CreatedAt)
	if err != nil {
		err = apierr.Upstream(err, "failed to create job")
		return created, err
	}

	s.logger.Debug("job created", "job_id", created.ID, "user_id", created.UserID)
	return created, err
}

// GetJob loads a job owned by userID.
func (s *Store) GetJob(ctx context.Context, userID, id string) (job model.Job, err error) {
	row := s.pool.QueryRow(ctx, `SELECT data FROM jobs WHERE id = $1 AND user_id = $2`, id, userID)
	err = scanJSON(row, &job, "job", id)
	return job, err
}

// GetResumeByID loads a resume owned by userID.
func (s *Store) GetResumeByID(ctx context.Context, userID, id string) (resume model.Resume, err error) {
	row := s.pool.QueryRow(ctx, `SELECT data FROM resumes WHERE id = $1 AND user_id = $2`, id, userID)
	err = scanJSON(row, &resume, "resume", id)
	return resume, err
}

// CreateTailoredResume persists a resume derived from base, optionally linked to a job.
func (s *Store) CreateTailoredResume(ctx context.Context, base model.Resume, jobID, title, company string, content model.ResumeContent) (created model.Resume, err error) {
	created = store.NewTailoredResume(base, jobID, title, company, content, s.now())
	err = s.insertResume(ctx, created)
	return created, err
}

// CreateBaseResume persists a new base resume.
func (s *Store) CreateBaseResume(ctx context.Context, userID, targetRole string, mode model.BaseResumeMode, content model.Resume) (created model.Resume, err error) {
	created = store.NewBaseResume(userID, targetRole, content, s.now())
	err = s.insertResume(ctx, created)
	if err != nil {
		return created, err
	}
	s.logger.Debug("base resume created", "resume_id", created.ID, "mode", string(mode))
	return created, err
}

func (s *Store) insertResume(ctx context.Context, r model.Resume) (err error) {
	var data []byte
	data, err = json.Marshal(r)
	if err != nil {
		err = apierr.Upstream(err, "failed to encode resume")
		return err
	}

	var jobID *string
	if r.JobID != "" {
		jobID = &r.JobID
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO resumes (id, user_id, job_id, is_base, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.UserID, jobID, r.IsBaseResume, data, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		err = apierr.Upstream(err, "failed to create resume")
		return err
	}

	s.logger.Debug("resume created", "resume_id", r.ID, "job_id", r.JobID, "base", r.IsBaseResume)
	return err
}

// UpdateResume replaces a resume's editable fields.
func (s *Store) UpdateResume(ctx context.Context, resume model.Resume) (err error) {
	var current model.Resume
	current, err = s.GetResumeByID(ctx, resume.UserID, resume.ID)
	if err != nil {
		return err
	}

	next := store.Updatable(current, resume, s.now())

	var data []byte
	data, err = json.Marshal(next)
	if err != nil {
		err = apierr.Upstream(err, "failed to encode resume")
		return err
	}

	_, err = s.pool.Exec(ctx, `UPDATE resumes SET data = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		data, next.UpdatedAt, next.ID, next.UserID)
	if err != nil {
		err = apierr.Upstream(err, "failed to update resume")
		return err
	}

	return err
}

// DeleteResume removes a resume.
func (s *Store) DeleteResume(ctx context.Context, userID, id string) (err error) {
	tag, execErr := s.pool.Exec(ctx, `DELETE FROM resumes WHERE id = $1 AND user_id = $2`, id, userID)
	if execErr != nil {
		err = apierr.Upstream(execErr, "failed to delete resume")
		return err
	}

	if tag.RowsAffected() == 0 {
		err = apierr.NotFound("resume", id)
		return err
	}

	return err
}

// ListResumes returns the user's resumes, base resumes first, newest first within each group.
func (s *Store) ListResumes(ctx context.Context, userID string) (resumes []model.Resume, err error) {
	resumes = []model.Resume{}

	var rows pgx.Rows
	rows, err = s.pool.Query(ctx, `SELECT data FROM resumes WHERE user_id = $1 ORDER BY is_base DESC, created_at DESC`, userID)
	if err != nil {
		err = apierr.Upstream(err, "failed to list resumes")
		return resumes, err
	}
	defer rows.Close()

	for rows.Next() {
		var data []byte
		err = rows.Scan(&data)
		if err != nil {
			err = apierr.Upstream(err, "failed to read resume")
			return resumes, err
		}

		var r model.Resume
		err = json.Unmarshal(data, &r)
		if err != nil {
			err = apierr.Upstream(err, "failed to decode resume")
			return resumes, err
		}
		resumes = append(resumes, r)
	}

	err = rows.Err()
	if err != nil {
		err = apierr.Upstream(err, "failed to list resumes")
	}

	return resumes, err
}

// GetProfile loads the user's profile, or an empty one.
func (s *Store) GetProfile(ctx context.Context, userID string) (profile model.Profile, err error) {
	row := s.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id = $1`, userID)
	err = scanJSON(row, &profile, "profile", userID)
	if apierr.Classify(err) == apierr.KindNotFound {
		profile = model.EmptyProfile(model.Profile{UserID: userID})
		err = nil
	}
	return profile, err
}

// UpdateProfile replaces the stored profile.
func (s *Store) UpdateProfile(ctx context.Context, profile model.Profile) (err error) {
	now := s.now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	var data []byte
	data, err = json.Marshal(profile)
	if err != nil {
		err = apierr.Upstream(err, "failed to encode profile")
		return err
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO profiles (user_id, data, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		profile.UserID, data, now)
	if err != nil {
		err = apierr.Upstream(err, "failed to update profile")
		return err
	}

	return err
}

// ImportResume merges a partial profile into the stored profile in one transaction.
func (s *Store) ImportResume(ctx context.Context, userID string, partial model.Profile) (merged model.Profile, err error) {
	var tx pgx.Tx
	tx, err = s.pool.Begin(ctx)
	if err != nil {
		err = apierr.Upstream(err, "failed to begin import")
		return merged, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing := model.EmptyProfile(model.Profile{UserID: userID})
	row := tx.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id = $1 FOR UPDATE`, userID)
	err = scanJSON(row, &existing, "profile", userID)
	if err != nil && apierr.Classify(err) != apierr.KindNotFound {
		return merged, err
	}

	now := s.now().UTC()
	merged = store.MergeImport(existing, partial, now)
	merged.UserID = userID
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}

	var data []byte
	data, err = json.Marshal(merged)
	if err != nil {
		err = apierr.Upstream(err, "failed to encode profile")
		return merged, err
	}

	_, err = tx.Exec(ctx, `INSERT INTO profiles (user_id, data, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, data, now)
	if err != nil {
		err = apierr.Upstream(err, "failed to save imported profile")
		return merged, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		err = apierr.Upstream(err, "failed to commit import")
		return merged, err
	}

	return merged, err
}

func scanJSON(row pgx.Row, v interface{}, entity, id string) (err error) {
	var data []byte
	err = row.Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apierr.NotFound(entity, id)
			return err
		}
		err = apierr.Upstream(err, "failed to read "+entity)
		return err
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		err = apierr.Upstream(err, "failed to decode "+entity)
		return err
	}

	return err
}
