package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	profileIDs      bool
	profileResetYes bool
)

//nolint:gochecknoglobals // Cobra boilerplate
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your master profile",
}

//nolint:gochecknoglobals // Cobra boilerplate
var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print your profile",
	Long: `Print your profile. With --ids, list the item ids used by
'resumelm resume create-base --mode import-profile --select'.`,
	Args: cobra.NoArgs,
	RunE: runProfileShow,
}

//nolint:gochecknoglobals // Cobra boilerplate
var profileImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Merge resume text or PDFs into your profile",
	Long: `Extract contact details and sections from resume text and merge them into your profile.

Contact fields are filled only where empty. Work experience, education and projects are
appended; skills are merged by category.

Example:
  resumelm profile import --pdf resume.pdf --pdf linkedin.pdf
  resumelm profile import --file notes.txt`,
	Args: cobra.NoArgs,
	RunE: runProfileImport,
}

//nolint:gochecknoglobals // Cobra boilerplate
var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear every section and contact field of your profile",
	Args:  cobra.NoArgs,
	RunE:  runProfileReset,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd, profileImportCmd, profileResetCmd)

	profileShowCmd.Flags().BoolVar(&profileIDs, "ids", false, "List item ids instead of the full profile")
	profileImportCmd.Flags().StringSliceVar(&importPDFs, "pdf", nil, "PDF files to extract text from (repeatable)")
	profileImportCmd.Flags().StringSliceVar(&importFiles, "file", nil, "Text files to import (repeatable)")
	profileResetCmd.Flags().BoolVarP(&profileResetYes, "yes", "y", false, "Reset without confirmation")
}

func runProfileShow(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var profile model.Profile
	profile, err = a.store.GetProfile(ctx, a.cfg.UserID)
	if err != nil {
		return err
	}

	if !profileIDs {
		err = printValue(profile, outputFormat)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\tID")
	for i, item := range profile.WorkExperience {
		fmt.Fprintf(w, "%s\t%s\n", model.SectionWorkExperience, model.ItemID(model.SectionWorkExperience, item, i))
	}
	for i, item := range profile.Education {
		fmt.Fprintf(w, "%s\t%s\n", model.SectionEducation, model.ItemID(model.SectionEducation, item, i))
	}
	for i, item := range profile.Skills {
		fmt.Fprintf(w, "%s\t%s\n", model.SectionSkills, model.ItemID(model.SectionSkills, item, i))
	}
	for i, item := range profile.Projects {
		fmt.Fprintf(w, "%s\t%s\n", model.SectionProjects, model.ItemID(model.SectionProjects, item, i))
	}
	err = w.Flush()
	return err
}

func runProfileImport(cmd *cobra.Command, args []string) (err error) {
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

	var result pipeline.ProfileImportResult
	result, err = a.runner.ImportProfile(ctx, a.cfg.UserID, text, a.cfg.Client)
	reporter.finish()

	if err != nil {
		reportFailure(failedStage(result.State), err)
		return err
	}

	p := result.Profile
	fmt.Printf("✓ Profile updated: %d positions, %d education, %d skill categories, %d projects\n",
		len(p.WorkExperience), len(p.Education), len(p.Skills), len(p.Projects))
	return err
}

func runProfileReset(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()

	if !profileResetYes {
		if !confirm("This clears your entire profile. Type 'reset' to confirm", "reset") {
			fmt.Println("Aborted.")
			return err
		}
	}

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = a.runner.ResetProfile(ctx, a.cfg.UserID)
	if err != nil {
		return err
	}

	fmt.Println("✓ Profile reset")
	return err
}
