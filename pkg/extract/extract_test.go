package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply     string
	fragments []string
	err       error
	requests  []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (text string, err error) {
	f.requests = append(f.requests, req)
	text, err = f.reply, f.err
	return text, err
}

func (f *fakeCompleter) Stream(_ context.Context, req llm.Request, onDelta llm.DeltaFunc) (err error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		err = f.err
		return err
	}
	for _, frag := range f.fragments {
		err = onDelta(frag)
		if err != nil {
			return err
		}
	}
	return err
}

type fakeSource struct {
	completer *fakeCompleter
	err       error
	resolved  []credentials.Resolution
}

func (f *fakeSource) For(res credentials.Resolution) (completer llm.Completer, err error) {
	f.resolved = append(f.resolved, res)
	if f.err != nil {
		err = f.err
		return completer, err
	}
	completer = f.completer
	return completer, err
}

func newTestService(t *testing.T, reply string) (svc *Service, fc *fakeCompleter, src *fakeSource) {
	t.Helper()
	fc = &fakeCompleter{reply: reply}
	src = &fakeSource{completer: fc}
	svc, err := NewService(src)
	require.NoError(t, err)
	return svc, fc, src
}

func TestSchemasCompile(t *testing.T) {
	schemas, err := compileSchemas()
	require.NoError(t, err)
	for _, kind := range []Kind{KindProfile, KindJobListing, KindResumeSection, KindFullResume, KindPoints, KindWorkExperienceItem, KindEducationItem, KindSkillItem, KindProjectItem} {
		assert.Contains(t, schemas, kind)
	}
}

func TestFormatJobListing(t *testing.T) {
	reply := "```json\n" + `{"position_title":"Senior Backend Engineer","company_name":"Acme Corp","keywords":["Go"],"requirements":null}` + "\n```"
	svc, fc, src := newTestService(t, reply)

	cfg := credentials.ClientConfig{Model: "gpt-4o", APIKeys: []credentials.Credential{{Service: "OpenAI", Key: "sk-x"}}}
	job, err := svc.FormatJobListing(context.Background(), "Senior Backend Engineer at Acme Corp...", cfg)
	require.NoError(t, err)

	assert.Equal(t, "Senior Backend Engineer", job.PositionTitle)
	assert.Equal(t, "Acme Corp", job.CompanyName)
	assert.Equal(t, []string{"Go"}, job.Keywords)
	assert.NotNil(t, job.Requirements)
	assert.Empty(t, job.Requirements)
	assert.NotNil(t, job.Qualifications)

	require.Len(t, fc.requests, 1)
	assert.True(t, fc.requests[0].JSON)
	assert.Contains(t, fc.requests[0].Prompt, "Acme Corp")
	require.Len(t, src.resolved, 1)
	assert.Equal(t, credentials.ProviderOpenAI, src.resolved[0].Provider)
}

func TestFormatJobListingEmptyText(t *testing.T) {
	svc, fc, _ := newTestService(t, "{}")
	_, err := svc.FormatJobListing(context.Background(), "   ", credentials.ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err))
	assert.Empty(t, fc.requests)
}

func TestExtractSchemaViolationIsUpstream(t *testing.T) {
	svc, _, _ := newTestService(t, `{"company_name":"Acme"}`)
	_, err := svc.FormatJobListing(context.Background(), "some job", credentials.ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, apierr.KindUpstream, apierr.Classify(err))
}

func TestExtractMalformedJSONIsUpstream(t *testing.T) {
	svc, _, _ := newTestService(t, "I could not parse that job")
	_, err := svc.Extract(context.Background(), KindJobListing, "job", Context{}, credentials.ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, apierr.KindUpstream, apierr.Classify(err))
}

func TestExtractPropagatesClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apierr.Kind
	}{
		{name: "rate limited", err: apierr.RateLimited(), want: apierr.KindRateLimited},
		{name: "rejected key", err: apierr.MissingCredential("invalid x-api-key"), want: apierr.KindMissingCredential},
		{name: "upstream", err: apierr.Upstream(assert.AnError, "boom"), want: apierr.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, fc, _ := newTestService(t, "")
			fc.err = tt.err
			_, err := svc.Extract(context.Background(), KindProfile, "text", Context{}, credentials.ClientConfig{})
			require.Error(t, err)
			assert.Equal(t, tt.want, apierr.Classify(err))
			assert.Len(t, fc.requests, 1, "no retries")
		})
	}
}

func TestExtractMissingCredential(t *testing.T) {
	svc, fc, src := newTestService(t, "{}")
	src.err = apierr.MissingCredential("add your anthropic API key")
	_, err := svc.Extract(context.Background(), KindProfile, "text", Context{}, credentials.ClientConfig{})
	require.Error(t, err)
	assert.Equal(t, apierr.KindMissingCredential, apierr.Classify(err))
	assert.Empty(t, fc.requests)
}

func TestFormatProfileCoercion(t *testing.T) {
	reply := `{
  "first_name": "Ada",
  "email": "<UNKNOWN>",
  "work_experience": [
    {"company": "Acme", "position": "Engineer", "date": "2020 - Present", "description": "Built the billing system"}
  ],
  "education": [
    {"school": "State", "degree": "BS", "field": "CS", "gpa": "3.95"},
    {"school": "Night School", "gpa": true}
  ],
  "skills": [
    {"category": "Languages", "skills": ["Go", "SQL"]}
  ]
}`
	svc, _, _ := newTestService(t, reply)

	profile, err := svc.FormatProfileWithAI(context.Background(), "my career", nil, credentials.ClientConfig{})
	require.NoError(t, err)

	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, Sentinel, profile.Email, "sanitizing is left to reconciliation")

	require.Len(t, profile.WorkExperience, 1)
	assert.Equal(t, []string{"Built the billing system"}, profile.WorkExperience[0].Description)
	assert.NotNil(t, profile.WorkExperience[0].Technologies)

	require.Len(t, profile.Education, 2)
	require.NotNil(t, profile.Education[0].GPA)
	assert.InDelta(t, 3.95, *profile.Education[0].GPA, 0.0001)
	assert.Nil(t, profile.Education[1].GPA)
	assert.NotNil(t, profile.Education[1].Achievements)

	require.Len(t, profile.Skills, 1)
	assert.Equal(t, []string{"Go", "SQL"}, profile.Skills[0].Items)

	assert.NotNil(t, profile.Projects)
	assert.Empty(t, profile.Projects)
}

func TestTailorResumeToJob(t *testing.T) {
	reply := `{"target_role":"Senior Backend Engineer","work_experience":[{"company":"Acme","position":"Engineer","date":"2020","description":["Scaled Go services"],"technologies":["Go"]}],"education":[],"skills":[],"projects":[]}`
	svc, fc, _ := newTestService(t, reply)

	base := model.EmptyResume("Software Engineer")
	base.WorkExperience = []model.WorkExperience{{Company: "Acme", Position: "Engineer", Description: []string{"Wrote code"}}}
	job := model.Job{PositionTitle: "Senior Backend Engineer", CompanyName: "Acme Corp"}

	content, err := svc.TailorResumeToJob(context.Background(), base, job, credentials.ClientConfig{})
	require.NoError(t, err)

	assert.Equal(t, "Senior Backend Engineer", content.TargetRole)
	require.Len(t, content.WorkExperience, 1)
	assert.Equal(t, []string{"Scaled Go services"}, content.WorkExperience[0].Description)

	require.Len(t, fc.requests, 1)
	assert.Contains(t, fc.requests[0].Prompt, "Wrote code")
	assert.Contains(t, fc.requests[0].Prompt, "Acme Corp")
}

func TestConvertTextToResume(t *testing.T) {
	reply := `{"first_name":"Ada","last_name":"","work_experience":[],"education":[],"skills":[{"category":"Tools","items":["Docker"]}],"projects":[]}`
	svc, _, _ := newTestService(t, reply)

	skeleton := model.EmptyResume("Platform Engineer")
	skeleton.LastName = "Lovelace"

	resume, err := svc.ConvertTextToResume(context.Background(), "Ada ... Docker", skeleton, "Platform Engineer", credentials.ClientConfig{})
	require.NoError(t, err)

	assert.Equal(t, "Ada", resume.FirstName)
	assert.Equal(t, "Lovelace", resume.LastName)
	assert.Equal(t, "Platform Engineer", resume.TargetRole)
	assert.True(t, resume.IsBaseResume)
	require.Len(t, resume.Skills, 1)
}

func TestConvertTextToResumeUnknownContact(t *testing.T) {
	reply := `{"first_name":"<UNKNOWN>","last_name":"<UNKNOWN>","email":" <UNKNOWN>","phone_number":"555-0100","work_experience":[],"education":[],"skills":[],"projects":[]}`
	svc, _, _ := newTestService(t, reply)

	skeleton := model.EmptyResume("Platform Engineer")
	skeleton.FirstName = "Ada"
	skeleton.LastName = "Lovelace"
	skeleton.Email = "a@b.com"

	resume, err := svc.ConvertTextToResume(context.Background(), "a resume", skeleton, "Platform Engineer", credentials.ClientConfig{})
	require.NoError(t, err)

	assert.Equal(t, "Ada", resume.FirstName)
	assert.Equal(t, "Lovelace", resume.LastName)
	assert.Equal(t, "a@b.com", resume.Email)
	assert.Equal(t, "555-0100", resume.PhoneNumber)
}

func TestGeneratePoints(t *testing.T) {
	t.Run("object reply", func(t *testing.T) {
		svc, fc, _ := newTestService(t, `{"points":["Led migration","Cut costs 30%"]}`)
		points, err := svc.GenerateWorkExperiencePoints(context.Background(), model.WorkExperience{Company: "Acme", Position: "SRE"}, "SRE", 0, "be brief", credentials.ClientConfig{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Led migration", "Cut costs 30%"}, points)
		assert.Contains(t, fc.requests[0].Prompt, "Write 3 resume bullet points")
		assert.Contains(t, fc.requests[0].Prompt, "be brief")
	})

	t.Run("bare array reply", func(t *testing.T) {
		svc, _, _ := newTestService(t, `["Shipped v2"]`)
		points, err := svc.GenerateProjectPoints(context.Background(), model.Project{Name: "resumelm"}, "", 1, "", credentials.ClientConfig{})
		require.NoError(t, err)
		assert.Equal(t, []string{"Shipped v2"}, points)
	})
}

func TestImprove(t *testing.T) {
	svc, _, _ := newTestService(t, "  \"Led a team of five engineers\"\n")
	improved, err := svc.ImproveWorkExperience(context.Background(), "managed some people", "", credentials.ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Led a team of five engineers", improved)

	_, err = svc.ImproveProject(context.Background(), "", "", credentials.ClientConfig{})
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err))
}

func TestGenerateCoverLetter(t *testing.T) {
	svc, fc, _ := newTestService(t, "")
	fc.fragments = []string{"Dear ", "Hiring ", "Manager"}

	resume := model.EmptyResume("Engineer")
	resume.FirstName = "Ada"
	resume.Email = "ada@example.com"
	job := &model.Job{PositionTitle: "Engineer", CompanyName: "Acme"}

	var sb strings.Builder
	err := svc.GenerateCoverLetter(context.Background(), CoverLetterInput{
		Resume:       resume,
		Job:          job,
		CustomPrompt: "mention Go",
		Date:         time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC),
	}, credentials.ClientConfig{}, func(fragment string) (err error) {
		sb.WriteString(fragment)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear Hiring Manager", sb.String())

	prompt := fc.requests[0].Prompt
	assert.Contains(t, prompt, "March 4, 2025")
	assert.Contains(t, prompt, "ada@example.com")
	assert.Contains(t, prompt, "mention Go")

	err = svc.GenerateCoverLetter(context.Background(), CoverLetterInput{Resume: resume}, credentials.ClientConfig{}, func(string) error { return nil })
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err))
}

func TestNormalizeRejectsNonObject(t *testing.T) {
	_, err := normalize(KindProfile, `["a"]`)
	require.Error(t, err)
	assert.Equal(t, apierr.KindUpstream, apierr.Classify(err))
}
