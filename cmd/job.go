package cmd

import (
	"context"
	"time"

	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var outputFormat string

//nolint:gochecknoglobals // Cobra boilerplate
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Work with job descriptions",
}

//nolint:gochecknoglobals // Cobra boilerplate
var jobFormatCmd = &cobra.Command{
	Use:   "format [jd-file-or-url]",
	Short: "Structure a job description without saving it",
	Long: `Structure a job description into title, company, keywords, requirements and qualifications.

The job description can be provided as:
- A file path (e.g., jd.txt or posting.html)
- A URL (e.g., https://example.com/jobs/123)
- Nothing or "-", to paste it on stdin

Example:
  resumelm job format jd.txt
  resumelm job format https://example.com/jobs/123 --output yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobFormat,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(jobCmd)
	jobCmd.AddCommand(jobFormatCmd)
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "Output format: json or yaml")
}

func runJobFormat(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var input string
	if len(args) > 0 {
		input = args[0]
	}

	var jobDescription string
	jobDescription, err = loadJobDescription(input)
	if err != nil {
		return err
	}

	var s *spinner
	if !getVerbose() {
		s = newSpinner("Formatting job description...")
		s.start()
	}

	var job model.Job
	job, err = a.service.FormatJobListing(ctx, jobDescription, a.cfg.Client)

	if s != nil {
		s.stopSpinner()
	}

	if err != nil {
		reportFailure(pipeline.StageFormattingJob, err)
		return err
	}

	err = printValue(job, outputFormat)
	return err
}
