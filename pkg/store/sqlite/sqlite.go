// Package sqlite stores jobs, resumes and profiles in a SQLite database as JSON documents.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/store"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // driver
)

var _ store.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS resumes (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	job_id TEXT,
	is_base INTEGER NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS resumes_user_idx ON resumes (user_id);
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store is a SQLite-backed store.Store.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (creating if needed) the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (s *Store, err error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	var conn *sql.DB
	conn, err = sql.Open("sqlite", dsn)
	if err != nil {
		err = errors.Wrap(err, "failed to open db")
		return s, err
	}

	// one writer at a time
	conn.SetMaxOpenConns(1)

	err = conn.PingContext(ctx)
	if err != nil {
		_ = conn.Close()
		err = errors.Wrap(err, "failed to ping db")
		return s, err
	}

	_, err = conn.ExecContext(ctx, schema)
	if err != nil {
		_ = conn.Close()
		err = errors.Wrap(err, "failed to apply schema")
		return s, err
	}

	s = &Store{conn: conn, logger: logger, now: time.Now}
	return s, err
}

// Close closes the database.
func (s *Store) Close() (err error) {
	err = s.conn.Close()
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

	_, err = s.conn.ExecContext(ctx, `INSERT INTO jobs (id, user_id, data, created_at) VALUES (?, ?, ?, ?)`,
		created.ID, created.UserID, string(data), created.CreatedAt.UnixMilli())
	if err != nil {
		err = apierr.Upstream(err, "failed to create job")
		return created, err
	}

	s.logger.Debug("job created", "job_id", created.ID, "user_id", created.UserID)
	return created, err
}

// GetJob loads a job owned by userID.
func (s *Store) GetJob(ctx context.Context, userID, id string) (job model.Job, err error) {
	row := s.conn.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	err = scanJSON(row, &job, "job", id)
	return job, err
}

// GetResumeByID loads a resume owned by userID.
func (s *Store) GetResumeByID(ctx context.Context, userID, id string) (resume model.Resume, err error) {
	row := s.conn.QueryRowContext(ctx, `SELECT data FROM resumes WHERE id = ? AND user_id = ?`, id, userID)
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

	_, err = s.conn.ExecContext(ctx, `INSERT INTO resumes (id, user_id, job_id, is_base, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, nullable(r.JobID), boolInt(r.IsBaseResume), string(data), r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli())
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

	_, err = s.conn.ExecContext(ctx, `UPDATE resumes SET data = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(data), next.UpdatedAt.UnixMilli(), next.ID, next.UserID)
	if err != nil {
		err = apierr.Upstream(err, "failed to update resume")
		return err
	}

	return err
}

// DeleteResume removes a resume.
func (s *Store) DeleteResume(ctx context.Context, userID, id string) (err error) {
	var res sql.Result
	res, err = s.conn.ExecContext(ctx, `DELETE FROM resumes WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		err = apierr.Upstream(err, "failed to delete resume")
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		err = apierr.NotFound("resume", id)
		return err
	}

	return err
}

// ListResumes returns the user's resumes, base resumes first, newest first within each group.
func (s *Store) ListResumes(ctx context.Context, userID string) (resumes []model.Resume, err error) {
	resumes = []model.Resume{}

	var rows *sql.Rows
	rows, err = s.conn.QueryContext(ctx, `SELECT data FROM resumes WHERE user_id = ? ORDER BY is_base DESC, created_at DESC`, userID)
	if err != nil {
		err = apierr.Upstream(err, "failed to list resumes")
		return resumes, err
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		err = rows.Scan(&data)
		if err != nil {
			err = apierr.Upstream(err, "failed to read resume")
			return resumes, err
		}

		var r model.Resume
		err = json.Unmarshal([]byte(data), &r)
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
	row := s.conn.QueryRowContext(ctx, `SELECT data FROM profiles WHERE user_id = ?`, userID)
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

	_, err = s.conn.ExecContext(ctx, `INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		profile.UserID, string(data), now.UnixMilli())
	if err != nil {
		err = apierr.Upstream(err, "failed to update profile")
		return err
	}

	return err
}

// ImportResume merges a partial profile into the stored profile and saves it.
func (s *Store) ImportResume(ctx context.Context, userID string, partial model.Profile) (merged model.Profile, err error) {
	var existing model.Profile
	existing, err = s.GetProfile(ctx, userID)
	if err != nil {
		return merged, err
	}

	merged = store.MergeImport(existing, partial, s.now())
	merged.UserID = userID

	err = s.UpdateProfile(ctx, merged)
	return merged, err
}

func scanJSON(row *sql.Row, v interface{}, entity, id string) (err error) {
	var data string
	err = row.Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = apierr.NotFound(entity, id)
			return err
		}
		err = apierr.Upstream(err, "failed to read "+entity)
		return err
	}

	err = json.Unmarshal([]byte(data), v)
	if err != nil {
		err = apierr.Upstream(err, "failed to decode "+entity)
		return err
	}

	return err
}

func nullable(s string) (v interface{}) {
	if s != "" {
		v = s
	}
	return v
}

func boolInt(b bool) (i int) {
	if b {
		i = 1
	}
	return i
}
