package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/store/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T) (s *postgres.Store) {
	t.Helper()
	dsn := os.Getenv("RESUMELM_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("RESUMELM_TEST_POSTGRES_URL not set")
	}

	s, err := postgres.Connect(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresTailoredResume(t *testing.T) {
	s := connect(t)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()

	job, err := s.CreateJob(ctx, model.Job{UserID: userID, PositionTitle: "SRE", CompanyName: "Acme"})
	require.NoError(t, err)

	base, err := s.CreateBaseResume(ctx, userID, "SRE", model.BaseModeFresh, model.EmptyResume("SRE"))
	require.NoError(t, err)

	tailored, err := s.CreateTailoredResume(ctx, base, job.ID, job.PositionTitle, job.CompanyName, base.Content())
	require.NoError(t, err)
	assert.Equal(t, "SRE at Acme", tailored.Name)

	got, err := s.GetResumeByID(ctx, userID, tailored.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.JobID)
	assert.False(t, got.IsBaseResume)

	list, err := s.ListResumes(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteResume(ctx, userID, tailored.ID))
	_, err = s.GetResumeByID(ctx, userID, tailored.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.Classify(err))
	require.NoError(t, s.DeleteResume(ctx, userID, base.ID))
}

func TestPostgresImportResume(t *testing.T) {
	s := connect(t)
	ctx := context.Background()
	userID := "test-" + uuid.NewString()

	partial := model.Profile{Contact: model.Contact{FirstName: "Ada"}, Sections: model.EmptySections()}
	partial.Projects = []model.Project{{Name: "first"}}

	_, err := s.ImportResume(ctx, userID, partial)
	require.NoError(t, err)

	partial.Projects = []model.Project{{Name: "second"}}
	merged, err := s.ImportResume(ctx, userID, partial)
	require.NoError(t, err)

	require.Len(t, merged.Projects, 2)
	assert.Equal(t, "second", merged.Projects[0].Name)
	assert.Equal(t, "Ada", merged.FirstName)
}
