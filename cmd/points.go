package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	pointsCompany  string
	pointsPosition string
	pointsProject  string
	pointsTech     []string
	pointsRole     string
	pointsCount    int
	pointsPrompt   string
	pointsSection  string
)

//nolint:gochecknoglobals // Cobra boilerplate
var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Generate and improve resume bullet points",
}

//nolint:gochecknoglobals // Cobra boilerplate
var pointsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Suggest new bullet points for a position or project",
	Long: `Suggest bullet points for a work experience entry, or for a project with --project.

Example:
  resumelm points generate --company Acme --position "Senior SRE" --role "Platform Engineer"
  resumelm points generate --project resumelm --tech Go,SQLite --count 5`,
	Args: cobra.NoArgs,
	RunE: runPointsGenerate,
}

//nolint:gochecknoglobals // Cobra boilerplate
var pointsImproveCmd = &cobra.Command{
	Use:   "improve <point>",
	Short: "Rewrite one bullet point",
	Long: `Rewrite a single bullet point to be more specific and results oriented.

Example:
  resumelm points improve "Worked on the deployment pipeline"
  resumelm points improve "Built a CLI" --section projects`,
	Args: cobra.ExactArgs(1),
	RunE: runPointsImprove,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(pointsCmd)
	pointsCmd.AddCommand(pointsGenerateCmd, pointsImproveCmd)

	pointsGenerateCmd.Flags().StringVar(&pointsCompany, "company", "", "Company of the position")
	pointsGenerateCmd.Flags().StringVar(&pointsPosition, "position", "", "Position title")
	pointsGenerateCmd.Flags().StringVar(&pointsProject, "project", "", "Project name (generates project points)")
	pointsGenerateCmd.Flags().StringSliceVar(&pointsTech, "tech", nil, "Technologies used")
	pointsGenerateCmd.Flags().StringVar(&pointsRole, "role", "", "Target role the points should support")
	pointsGenerateCmd.Flags().IntVar(&pointsCount, "count", 0, "Number of points (default 3)")

	for _, c := range []*cobra.Command{pointsGenerateCmd, pointsImproveCmd} {
		c.Flags().StringVar(&pointsPrompt, "prompt", "", "Additional instructions")
	}

	pointsImproveCmd.Flags().StringVar(&pointsSection, "section", model.SectionWorkExperience, "work_experience or projects")
}

func runPointsGenerate(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if pointsProject == "" {
		if pointsCompany == "" {
			pointsCompany = promptForInput("Company name")
		}
		if pointsPosition == "" {
			pointsPosition = promptForInput("Position title")
		}
	}

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var s *spinner
	if !getVerbose() {
		s = newSpinner("Writing bullet points...")
		s.start()
	}

	var points []string
	if pointsProject != "" {
		points, err = a.service.GenerateProjectPoints(ctx, model.Project{
			Name:         pointsProject,
			Technologies: pointsTech,
		}, pointsRole, pointsCount, pointsPrompt, a.cfg.Client)
	} else {
		points, err = a.service.GenerateWorkExperiencePoints(ctx, model.WorkExperience{
			Company:      pointsCompany,
			Position:     pointsPosition,
			Technologies: pointsTech,
		}, pointsRole, pointsCount, pointsPrompt, a.cfg.Client)
	}

	if s != nil {
		s.stopSpinner()
	}

	if err != nil {
		reportFailure(pipeline.StageGenerating, err)
		return err
	}

	for _, p := range points {
		fmt.Printf("• %s\n", p)
	}
	return err
}

func runPointsImprove(cmd *cobra.Command, args []string) (err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if pointsSection != model.SectionWorkExperience && pointsSection != model.SectionProjects {
		err = apierr.Newf(apierr.KindValidation, "unknown section %q: must be work_experience or projects", pointsSection)
		return err
	}

	var a *app
	a, err = setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var improved string
	if pointsSection == model.SectionProjects {
		improved, err = a.service.ImproveProject(ctx, args[0], pointsPrompt, a.cfg.Client)
	} else {
		improved, err = a.service.ImproveWorkExperience(ctx, args[0], pointsPrompt, a.cfg.Client)
	}

	if err != nil {
		reportFailure(pipeline.StageGenerating, err)
		return err
	}

	fmt.Println(improved)
	return err
}
