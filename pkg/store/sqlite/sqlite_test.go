package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
	"github.com/nikogura/resumelm/pkg/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (s *sqlite.Store) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "resumelm.db")
	s, err := sqlite.Open(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestJobs(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created, err := s.CreateJob(ctx, model.Job{UserID: "u1", PositionTitle: "Senior Backend Engineer", CompanyName: "Acme Corp"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotNil(t, created.Keywords)

	got, err := s.GetJob(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.CompanyName)

	_, err = s.GetJob(ctx, "someone-else", created.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.Classify(err))
}

func TestResumeLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	content := model.EmptyResume("Software Engineer")
	content.FirstName = "Ada"
	content.WorkExperience = []model.WorkExperience{{Company: "Acme", Position: "Engineer", Description: []string{"a"}, Technologies: []string{}}}

	base, err := s.CreateBaseResume(ctx, "u1", "Software Engineer", model.BaseModeFresh, content)
	require.NoError(t, err)
	assert.True(t, base.IsBaseResume)
	assert.Empty(t, base.JobID)
	assert.Equal(t, "Ada", base.FirstName)

	tailoredContent := base.Content()
	tailoredContent.WorkExperience[0].Description = []string{"b"}

	tailored, err := s.CreateTailoredResume(ctx, base, "job_1", "Senior Backend Engineer", "Acme Corp", tailoredContent)
	require.NoError(t, err)
	assert.False(t, tailored.IsBaseResume)
	assert.Equal(t, "job_1", tailored.JobID)
	assert.Equal(t, "Senior Backend Engineer at Acme Corp", tailored.Name)
	assert.Equal(t, "u1", tailored.UserID)

	copied, err := s.CreateTailoredResume(ctx, base, "", "", "", base.Content())
	require.NoError(t, err)
	assert.Equal(t, model.CopiedResumeTitle, copied.Name)

	list, err := s.ListResumes(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].IsBaseResume)

	// the job link is immutable
	tailored.JobID = "job_2"
	tailored.Name = "Renamed"
	require.NoError(t, s.UpdateResume(ctx, tailored))

	got, err := s.GetResumeByID(ctx, "u1", tailored.ID)
	require.NoError(t, err)
	assert.Equal(t, "job_1", got.JobID)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, []string{"b"}, got.WorkExperience[0].Description)

	require.NoError(t, s.DeleteResume(ctx, "u1", tailored.ID))
	_, err = s.GetResumeByID(ctx, "u1", tailored.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.Classify(err))

	err = s.DeleteResume(ctx, "u1", tailored.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.Classify(err))
}

func TestProfile(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	empty, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", empty.UserID)
	assert.NotNil(t, empty.WorkExperience)

	empty.Email = "a@b.com"
	empty.WorkExperience = []model.WorkExperience{{Company: "A"}}
	require.NoError(t, s.UpdateProfile(ctx, empty))

	partial := model.Profile{Contact: model.Contact{Email: reconcile.Sentinel, FirstName: "Ada"}, Sections: model.EmptySections()}
	partial.WorkExperience = []model.WorkExperience{{Company: "B"}}

	merged, err := s.ImportResume(ctx, "u1", partial)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", merged.Email)
	assert.Equal(t, "Ada", merged.FirstName)

	stored, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored.WorkExperience, 2)
	assert.Equal(t, "B", stored.WorkExperience[0].Company)
	assert.Equal(t, "A", stored.WorkExperience[1].Company)
	assert.False(t, stored.CreatedAt.IsZero())
}
