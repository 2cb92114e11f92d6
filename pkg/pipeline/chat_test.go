package pipeline

import (
	"context"
	"testing"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	s := newMemStore()
	tailored := seedTailored(t, s)
	ex := &fakeExtractor{fragments: []string{"Quantify ", "the first bullet."}}
	rec := &recorder{}
	r := NewRunner(ex, s)
	r.Observer = rec.observe

	prior := []extract.ChatMessage{{Role: extract.RoleUser, Content: "hi"}, {Role: extract.RoleAssistant, Content: "hello"}}

	var streamed []string
	result, err := r.Chat(context.Background(), ChatInput{
		UserID:   userID,
		ResumeID: tailored.ID,
		History:  prior,
		Message:  "What should I fix?",
		OnDelta: func(fragment string) (err error) {
			streamed = append(streamed, fragment)
			return err
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Quantify ", "the first bullet."}, streamed)
	assert.Equal(t, "Quantify the first bullet.", result.Reply)
	require.Len(t, result.History, 4)
	assert.Equal(t, extract.ChatMessage{Role: extract.RoleUser, Content: "What should I fix?"}, result.History[2])
	assert.Equal(t, extract.ChatMessage{Role: extract.RoleAssistant, Content: "Quantify the first bullet."}, result.History[3])
	assert.Len(t, prior, 2)

	require.Len(t, ex.chats, 1)
	require.NotNil(t, ex.chats[0].Job, "a tailored resume is discussed with its job")
	assert.Equal(t, "Acme", ex.chats[0].Job.CompanyName)
	assert.Equal(t, prior, ex.chats[0].History)

	assert.Equal(t, []Stage{StageGenerating, StageDone}, rec.stages)
	assert.Zero(t, s.writeCount())
}

func TestChatStopKeepsPartialReply(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)
	ex := &fakeExtractor{fragments: []string{"Start ", "with ", "impact."}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := NewRunner(ex, s).Chat(ctx, ChatInput{
		UserID:   userID,
		ResumeID: base.ID,
		Message:  "Help",
		OnDelta: func(fragment string) (err error) {
			if fragment == "with " {
				cancel()
				err = context.Canceled
			}
			return err
		},
	})
	require.Error(t, err)

	assert.Equal(t, "Start with ", result.Reply)
	assert.Empty(t, result.History)
	assert.Equal(t, StageGenerating, result.State.FailedAt)
	assert.Nil(t, ex.chats[0].Job)
	assert.Zero(t, s.writeCount())
}

func TestChatValidation(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)
	ex := &fakeExtractor{}

	_, err := NewRunner(ex, s).Chat(context.Background(), ChatInput{UserID: userID, ResumeID: base.ID, Message: " "})
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err))

	_, err = NewRunner(ex, s).Chat(context.Background(), ChatInput{UserID: userID, ResumeID: "missing", Message: "hi"})
	assert.Equal(t, apierr.KindNotFound, apierr.Classify(err))
	assert.Empty(t, ex.calls)
}

func TestSuggestDoesNotPersist(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)

	improved := model.WorkExperience{Company: "A", Position: "Engineer", Description: []string{"Shipped the " + reconcile.Sentinel + " service"}, Technologies: []string{"Go"}}
	ex := &fakeExtractor{suggested: model.Suggestion{Section: model.SectionWorkExperience, Index: 0, WorkExperience: &improved}}

	result, err := NewRunner(ex, s).Suggest(context.Background(), SuggestionInput{
		UserID:   userID,
		ResumeID: base.ID,
		Section:  model.SectionWorkExperience,
		Index:    0,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"SuggestImprovement"}, ex.calls)
	assert.Equal(t, []string{"Shipped the service"}, result.Preview.WorkExperience[0].Description)
	assert.Equal(t, StageDone, result.State.Stage)
	assert.Zero(t, s.writeCount())

	stored, err := s.GetResumeByID(context.Background(), userID, base.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"wrote code"}, stored.WorkExperience[0].Description)
}

func TestSuggestValidation(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)
	ex := &fakeExtractor{}
	r := NewRunner(ex, s)

	_, err := r.Suggest(context.Background(), SuggestionInput{UserID: userID, ResumeID: base.ID, Section: model.SectionProjects, Index: 0})
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err), "the base resume has no projects")

	_, err = r.Suggest(context.Background(), SuggestionInput{UserID: userID, ResumeID: base.ID, Section: "hobbies"})
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err))

	_, err = r.Suggest(context.Background(), SuggestionInput{UserID: userID, ResumeID: base.ID, Section: model.SectionWholeResume})
	assert.Equal(t, apierr.KindValidation, apierr.Classify(err))

	assert.Empty(t, ex.calls)
}

func TestSuggestUnusableReplyFails(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)
	ex := &fakeExtractor{suggested: model.Suggestion{Section: model.SectionWorkExperience, Index: 0}}

	result, err := NewRunner(ex, s).Suggest(context.Background(), SuggestionInput{UserID: userID, ResumeID: base.ID, Section: model.SectionWorkExperience})
	require.Error(t, err)
	assert.Equal(t, apierr.KindUpstream, apierr.Classify(err))
	assert.Equal(t, StageGenerating, result.State.FailedAt)
}

func TestReviseAndApply(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)

	revised := model.ResumeContent{TargetRole: "Staff Engineer", Sections: model.EmptySections()}
	revised.WorkExperience = []model.WorkExperience{{Company: "A", Position: "Staff Engineer", Description: []string{"Led the platform team"}, Technologies: []string{}}}
	ex := &fakeExtractor{suggested: model.Suggestion{
		Section: model.SectionWholeResume,
		Content: &revised,
		Contact: &model.Contact{FirstName: reconcile.Sentinel, Location: "Berlin"},
	}}
	r := NewRunner(ex, s)

	result, err := r.Suggest(context.Background(), SuggestionInput{UserID: userID, ResumeID: base.ID, Section: model.SectionWholeResume, Instruction: "aim higher"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ReviseResume"}, ex.calls)
	assert.Zero(t, s.writeCount())

	updated, err := r.ApplySuggestion(context.Background(), userID, base.ID, result.Suggestion)
	require.NoError(t, err)
	assert.Equal(t, 1, s.writeCount())

	assert.Equal(t, "Staff Engineer", updated.TargetRole)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Berlin", updated.Location)
	assert.Equal(t, []string{"Led the platform team"}, updated.WorkExperience[0].Description)
	assert.True(t, updated.IsBaseResume)

	stored, err := s.GetResumeByID(context.Background(), userID, base.ID)
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", stored.WorkExperience[0].Position)
}

func TestApplySuggestionStoreFailure(t *testing.T) {
	s := newMemStore()
	base := seedBase(t, s)
	s.failOn = "UpdateResume"

	item := model.WorkExperience{Company: "A", Position: "Lead", Description: []string{}, Technologies: []string{}}
	_, err := NewRunner(&fakeExtractor{}, s).ApplySuggestion(context.Background(), userID, base.ID, model.Suggestion{
		Section:        model.SectionWorkExperience,
		WorkExperience: &item,
	})
	require.Error(t, err)

	stored, err := s.GetResumeByID(context.Background(), userID, base.ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineer", stored.WorkExperience[0].Position)
}
