package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/renderer"
	"github.com/nikogura/resumelm/pkg/scorer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	tailorCopy       bool
	importPDFs       []string
	importFiles      []string
	baseMode         string
	baseSelect       []string
	coverLetterFile  string
	coverLetterExtra string
	deleteYes        bool
	exportFormat     string
	exportOut        string
	exportTemplate   string
	exportClass      string
	matchJobID       string
)

//nolint:gochecknoglobals // Cobra boilerplate
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Create, tailor and manage resumes",
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeTailorCmd = &cobra.Command{
	Use:   "tailor <base-resume-id> [jd-file-or-url]",
	Short: "Tailor a base resume to a job description",
	Long: `Create a tailored resume from a base resume and a job description.

The job is formatted and saved, the base resume is rewritten against it, and the
result is saved as a new resume linked to the job. With --copy the base resume is
copied verbatim; the job description is then optional.

Example:
  resumelm resume tailor 5b1e... jd.txt
  resumelm resume tailor 5b1e... https://example.com/jobs/123
  resumelm resume tailor 5b1e... --copy`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResumeTailor,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeImportCmd = &cobra.Command{
	Use:   "import <resume-id>",
	Short: "Merge text or PDF content into a resume",
	Long: `Extract resume sections from text and append them to an existing resume.

Existing entries are never removed or rewritten. Text comes from --pdf files, --file
text files, or stdin.

Example:
  resumelm resume import 5b1e... --pdf old-resume.pdf
  resumelm resume import 5b1e... --file projects.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeImport,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeCreateBaseCmd = &cobra.Command{
	Use:   "create-base <target-role>",
	Short: "Create a base resume for a target role",
	Long: `Create a base resume. Modes:
  fresh           contact details from your profile, empty sections (default)
  import-profile  contact details plus profile items (all, or those picked with --select)
  import-resume   convert resume text (--pdf, --file or stdin) into a new resume

Item ids for --select are shown by 'resumelm profile show --ids'.

Example:
  resumelm resume create-base "Platform Engineer"
  resumelm resume create-base "SRE" --mode import-profile --select work_experience=Acme-SRE-2020-0
  resumelm resume create-base "Backend Engineer" --mode import-resume --pdf resume.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeCreateBase,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List base and tailored resumes",
	Args:  cobra.NoArgs,
	RunE:  runResumeList,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeShowCmd = &cobra.Command{
	Use:   "show <resume-id>",
	Short: "Print a resume",
	Args:  cobra.ExactArgs(1),
	RunE:  runResumeShow,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeDeleteCmd = &cobra.Command{
	Use:   "delete <resume-id>",
	Short: "Delete a resume",
	Args:  cobra.ExactArgs(1),
	RunE:  runResumeDelete,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeCoverLetterCmd = &cobra.Command{
	Use:   "cover-letter <tailored-resume-id>",
	Short: "Write a cover letter for a tailored resume",
	Long: `Stream a cover letter for a tailored resume and its job. The letter is printed as it is
written and saved on the resume when complete. Use --out to also write it to a file.

Example:
  resumelm resume cover-letter 9c4f...
  resumelm resume cover-letter 9c4f... --context "Referred by Jane Doe" --out ./letters/`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeCoverLetter,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeExportCmd = &cobra.Command{
	Use:   "export <resume-id>",
	Short: "Write a resume (and its cover letter) as Markdown, PDF or DOCX",
	Long: `Render a resume to Markdown. PDF and DOCX go through pandoc, which must be on PATH;
--template and --class pass a pandoc template and a LaTeX class file.

A tailored resume with a cover letter also gets <name>-cover-letter.<format>.

Example:
  resumelm resume export 9c4f... --out ./out/
  resumelm resume export 9c4f... --format pdf --out resume.pdf --template resume.latex`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeExport,
}

//nolint:gochecknoglobals // Cobra boilerplate
var resumeMatchCmd = &cobra.Command{
	Use:   "match <resume-id>",
	Short: "Score how well a resume covers a job's keywords and requirements",
	Long: `Score a resume against a job. A tailored resume is scored against its own job;
use --job to score any resume against a saved job.`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeMatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(resumeCmd)
	resumeCmd.AddCommand(resumeTailorCmd, resumeImportCmd, resumeCreateBaseCmd, resumeListCmd, resumeShowCmd, resumeDeleteCmd, resumeCoverLetterCmd, resumeExportCmd, resumeMatchCmd)

	resumeTailorCmd.Flags().BoolVar(&tailorCopy, "copy", false, "Copy the base resume verbatim instead of tailoring with AI")

	for _, c := range []*cobra.Command{resumeImportCmd, resumeCreateBaseCmd} {
		c.Flags().StringSliceVar(&importPDFs, "pdf", nil, "PDF files to extract text from (repeatable)")
		c.Flags().StringSliceVar(&importFiles, "file", nil, "Text files to import (repeatable)")
	}

	resumeCreateBaseCmd.Flags().StringVar(&baseMode, "mode", string(model.BaseModeFresh), "fresh, import-profile or import-resume")
	resumeCreateBaseCmd.Flags().StringSliceVar(&baseSelect, "select", nil, "section=item-id pairs to import from the profile (repeatable)")

	resumeCoverLetterCmd.Flags().StringVar(&coverLetterExtra, "context", "", "Additional instructions for the cover letter")
	resumeCoverLetterCmd.Flags().StringVar(&coverLetterFile, "out", "", "Directory or file to write the cover letter to")

	resumeDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Delete without confirmation")

	resumeExportCmd.Flags().StringVar(&exportFormat, "format", "", "md, pdf or docx (default from --out extension, else md)")
	resumeExportCmd.Flags().StringVar(&exportOut, "out", ".", "Output directory or file")
	resumeExportCmd.Flags().StringVar(&exportTemplate, "template", "", "pandoc template")
	resumeExportCmd.Flags().StringVar(&exportClass, "class", "", "LaTeX class file for the template")

	resumeMatchCmd.Flags().StringVar(&matchJobID, "job", "", "Job id to score against (default: the resume's job)")
}

func runResumeTailor(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	mode := pipeline.ModeAI
	if tailorCopy {
		mode = pipeline.ModeDirectCopy
	}

	var jobDescription string
	if len(args) > 1 || mode == pipeline.ModeAI {
		var input string
		if len(args) > 1 {
			input = args[1]
		}
		jobDescription, err = loadJobDescription(input)
		if err != nil {
			return err
		}
	}

	reporter := &stageReporter{}
	a.runner.Observer = reporter.observe

	var result pipeline.TailorResult
	result, err = a.runner.Tailor(ctx, pipeline.TailorInput{
		UserID:         a.cfg.UserID,
		BaseResumeID:   args[0],
		JobDescription: jobDescription,
		Mode:           mode,
		Config:         a.cfg.Client,
	})
	reporter.finish()

	if err != nil {
		reportFailure(failedStage(result.State), err)
		if result.Job != nil {
			fmt.Fprintf(os.Stderr, "The job was saved as %s.\n", result.Job.ID)
		}
		return err
	}

	fmt.Printf("✓ Created %q (%s)\n", result.Resume.Name, result.Resume.ID)
	if result.Job != nil {
		fmt.Printf("  Job: %s at %s (%s)\n", result.Job.PositionTitle, result.Job.CompanyName, result.Job.ID)
		report := scorer.NewScorer().Score(result.Resume, *result.Job)
		fmt.Printf("  Keyword coverage: %d%% (overall match %d/100)\n", report.Keywords.Score, report.Overall)
	}
	return err
}

func runResumeImport(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var text string
	text, err = loadImportText(importPDFs, importFiles)
	if err != nil {
		return err
	}

	reporter := &stageReporter{}
	a.runner.Observer = reporter.observe

	var result pipeline.ResumeImportResult
	result, err = a.runner.ImportIntoResume(ctx, a.cfg.UserID, args[0], text, a.cfg.Client)
	reporter.finish()

	if err != nil {
		reportFailure(failedStage(result.State), err)
		return err
	}

	r := result.Resume
	fmt.Printf("✓ Updated %q: %d positions, %d education, %d skill categories, %d projects\n",
		r.Name, len(r.WorkExperience), len(r.Education), len(r.Skills), len(r.Projects))
	return err
}

// parseSelection turns section=item-id pairs into a selection. No pairs selects everything.
func parseSelection(pairs []string) (sel model.Selection, err error) {
	if len(pairs) == 0 {
		return sel, err
	}

	valid := map[string]bool{
		model.SectionWorkExperience: true,
		model.SectionEducation:      true,
		model.SectionSkills:         true,
		model.SectionProjects:       true,
	}

	sel = model.Selection{}
	for _, pair := range pairs {
		section, id, ok := strings.Cut(pair, "=")
		if !ok || !valid[section] || id == "" {
			err = errors.Errorf("invalid selection %q: expected section=item-id with section one of work_experience, education, skills, projects", pair)
			return sel, err
		}
		sel[section] = append(sel[section], id)
	}
	return sel, err
}

func runResumeCreateBase(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	mode := model.BaseResumeMode(baseMode)
	if !mode.Valid() {
		err = errors.Errorf("invalid mode %q: must be fresh, import-profile or import-resume", baseMode)
		return err
	}

	var sel model.Selection
	sel, err = parseSelection(baseSelect)
	if err != nil {
		return err
	}

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var text string
	if mode == model.BaseModeImportResume {
		text, err = loadImportText(importPDFs, importFiles)
		if err != nil {
			return err
		}
	}

	reporter := &stageReporter{}
	a.runner.Observer = reporter.observe

	var result pipeline.BaseResumeResult
	result, err = a.runner.CreateBaseResume(ctx, pipeline.BaseResumeInput{
		UserID:     a.cfg.UserID,
		TargetRole: args[0],
		Mode:       mode,
		Selection:  sel,
		ResumeText: text,
		Config:     a.cfg.Client,
	})
	reporter.finish()

	if err != nil {
		reportFailure(failedStage(result.State), err)
		return err
	}

	fmt.Printf("✓ Created base resume %q (%s)\n", result.Resume.Name, result.Resume.ID)
	return err
}

func runResumeList(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var resumes []model.Resume
	resumes, err = a.store.ListResumes(ctx, a.cfg.UserID)
	if err != nil {
		return err
	}

	if len(resumes) == 0 {
		fmt.Println("No resumes yet. Create one with 'resumelm resume create-base <target-role>'.")
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tTARGET ROLE\tUPDATED")
	for _, r := range resumes {
		kind := "tailored"
		if r.IsBaseResume {
			kind = "base"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, kind, r.Name, r.TargetRole, r.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	err = w.Flush()
	return err
}

func runResumeShow(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var resume model.Resume
	resume, err = a.store.GetResumeByID(ctx, a.cfg.UserID, args[0])
	if err != nil {
		return err
	}

	err = printValue(resume, outputFormat)
	return err
}

func runResumeDelete(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var resume model.Resume
	resume, err = a.store.GetResumeByID(ctx, a.cfg.UserID, args[0])
	if err != nil {
		return err
	}

	if !deleteYes {
		if !confirm(fmt.Sprintf("Delete %q? (yes/no)", resume.Name), "yes", "y") {
			fmt.Println("Aborted.")
			return err
		}
	}

	err = a.store.DeleteResume(ctx, a.cfg.UserID, resume.ID)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Deleted %q\n", resume.Name)
	return err
}

func runResumeCoverLetter(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var result pipeline.CoverLetterResult
	result, err = a.runner.GenerateCoverLetter(ctx, pipeline.CoverLetterInput{
		UserID:       a.cfg.UserID,
		ResumeID:     args[0],
		CustomPrompt: coverLetterExtra,
		Config:       a.cfg.Client,
		OnDelta: func(fragment string) (err error) {
			_, err = fmt.Print(fragment)
			return err
		},
	})
	fmt.Println()

	if err != nil {
		reportFailure(failedStage(result.State), err)
		return err
	}

	if coverLetterFile == "" || result.Resume.CoverLetter == nil {
		return err
	}

	var path string
	path, err = coverLetterPath(coverLetterFile, result.Resume)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, []byte(result.Resume.CoverLetter.Content+"\n"), 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write cover letter: %s", path)
		return err
	}

	fmt.Printf("✓ Cover letter written to %s\n", path)
	return err
}

// coverLetterPath resolves --out. A directory gets a file named after the resume.
func coverLetterPath(out string, resume model.Resume) (path string, err error) {
	path = out
	info, statErr := os.Stat(out)
	if statErr == nil && info.IsDir() || strings.HasSuffix(out, string(os.PathSeparator)) {
		err = os.MkdirAll(out, 0750)
		if err != nil {
			err = errors.Wrapf(err, "failed to create output directory: %s", out)
			return path, err
		}
		name := sanitizeFilename(resume.Name)
		if name == "" {
			name = "resume"
		}
		path = filepath.Join(out, name+"-cover-letter.md")
	}
	return path, err
}

func runResumeExport(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var resume model.Resume
	resume, err = a.store.GetResumeByID(ctx, a.cfg.UserID, args[0])
	if err != nil {
		return err
	}

	var resumePath, letterPath string
	var format renderer.Format
	resumePath, letterPath, format, err = exportPaths(exportOut, exportFormat, resume)
	if err != nil {
		return err
	}

	opts := renderer.Options{Template: exportTemplate, ClassPath: exportClass}

	err = renderer.Write(ctx, renderer.Markdown(resume), resumePath, format, opts)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Resume written to %s\n", resumePath)

	letter := renderer.CoverLetterMarkdown(resume)
	if letter == "" {
		return err
	}

	err = renderer.Write(ctx, letter, letterPath, format, opts)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Cover letter written to %s\n", letterPath)
	return err
}

// exportPaths resolves --out and --format into the resume and cover letter paths.
func exportPaths(out, formatFlag string, resume model.Resume) (resumePath, letterPath string, format renderer.Format, err error) {
	ext := filepath.Ext(out)
	info, statErr := os.Stat(out)
	isDir := statErr == nil && info.IsDir() || strings.HasSuffix(out, string(os.PathSeparator)) || ext == ""

	switch {
	case formatFlag != "":
		format, err = renderer.ParseFormat(formatFlag)
	case !isDir:
		format, err = renderer.ParseFormat(ext)
	default:
		format = renderer.FormatMarkdown
	}
	if err != nil {
		return resumePath, letterPath, format, err
	}

	if isDir {
		name := sanitizeFilename(resume.Name)
		if name == "" {
			name = "resume"
		}
		resumePath = filepath.Join(out, name+"."+string(format))
		letterPath = filepath.Join(out, name+"-cover-letter."+string(format))
		return resumePath, letterPath, format, err
	}

	resumePath = out
	letterPath = strings.TrimSuffix(out, ext) + "-cover-letter" + ext
	return resumePath, letterPath, format, err
}

func runResumeMatch(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var resume model.Resume
	resume, err = a.store.GetResumeByID(ctx, a.cfg.UserID, args[0])
	if err != nil {
		return err
	}

	jobID := matchJobID
	if jobID == "" {
		jobID = resume.JobID
	}
	if jobID == "" {
		err = errors.Errorf("resume %s has no job; pass --job", resume.ID)
		return err
	}

	var job model.Job
	job, err = a.store.GetJob(ctx, a.cfg.UserID, jobID)
	if err != nil {
		return err
	}

	report := scorer.NewScorer().Score(resume, job)

	if cmd.Flags().Changed("output") {
		err = printValue(report, outputFormat)
		return err
	}

	fmt.Printf("Match: %d/100 for %s at %s\n", report.Overall, job.PositionTitle, job.CompanyName)
	fmt.Printf("  Keywords:     %d%% (%d of %d)\n", report.Keywords.Score, len(report.Keywords.Matched), len(report.Keywords.Matched)+len(report.Keywords.Missing))
	fmt.Printf("  Requirements: %d%% (%d of %d)\n", report.Requirements.Score, len(report.Requirements.Matched), len(report.Requirements.Matched)+len(report.Requirements.Missing))
	for _, lesson := range report.Lessons {
		fmt.Printf("  - %s\n", lesson)
	}
	return err
}
