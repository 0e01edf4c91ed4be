package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leaprun/internal/cli/output"
	"github.com/leapstack-labs/leaprun/internal/dag"
	"github.com/leapstack-labs/leaprun/pkg/adapter"
	"github.com/leapstack-labs/leaprun/pkg/core"
)

// Check statuses.
const (
	checkPass  = "pass"
	checkWarn  = "warn"
	checkError = "error"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a project health check",
		Long: `Check that a leaprun project is ready to run.

The doctor command loads the project, builds the dependency graph, connects
to the target and the run history store, and reports:
- Project summary (models, macros, seeds, DAG structure)
- Health checks grouped by category
- Health score (0-100)
- Actionable recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  leaprun doctor

  # Output as JSON
  leaprun doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, markdown, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Models    int `json:"models"`
	Macros    int `json:"macros"`
	Seeds     int `json:"seeds"`
	DAGDepth  int `json:"dag_depth"`
	RootCount int `json:"root_count"`
	LeafCount int `json:"leaf_count"`
	EdgeCount int `json:"edge_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func newCheck(id, name, group string) *HealthCheck {
	return &HealthCheck{ID: id, Name: name, Group: group, Status: checkPass}
}

func (c *HealthCheck) warn(detail string) {
	if c.Status == checkPass {
		c.Status = checkWarn
	}
	c.IssueCount++
	c.Details = append(c.Details, detail)
}

func (c *HealthCheck) fail(detail string) {
	c.Status = checkError
	c.IssueCount++
	c.Details = append(c.Details, detail)
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ParseMode(opts.Format))
	}

	out := diagnose(cmd.Context(), cc)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

// diagnose runs every health check. Failures are reported, never returned.
func diagnose(ctx context.Context, cc *CommandContext) *DoctorOutput {
	var checks []*HealthCheck
	var summary ProjectSummary

	cfgCheck := newCheck("CF01", "Configuration file", "configuration")
	if cc.File == "" {
		cfgCheck.warn("no leaprun.yaml found; using defaults and environment")
	}
	checks = append(checks, cfgCheck)

	loadCheck := newCheck("PR01", "Models load", "project")
	diagCheck := newCheck("PR02", "Template diagnostics", "project")
	graphCheck := newCheck("PR03", "Dependency graph", "project")
	checks = append(checks, loadCheck, diagCheck, graphCheck)

	project, err := cc.LoadProject()
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				loadCheck.fail(line)
			}
		}
	} else {
		summary.Models = len(project.Models)
		if project.Macros != nil {
			summary.Macros = len(project.Macros.Namespaces())
		}
		if len(project.Models) == 0 {
			loadCheck.warn("no models found in " + cc.Cfg.ModelsDir)
		}
		for _, d := range project.Diagnostics {
			diagCheck.warn(d.String())
		}
		if d, err := dag.Build(project.Models); err != nil {
			graphCheck.fail(err.Error())
		} else {
			summarizeGraph(&summary, d)
		}
	}
	summary.Seeds = countSeeds(cc.Cfg.SeedsDir)

	targetCheck := newCheck("CN01", "Target reachable", "connectivity")
	sourceCheck := newCheck("CN02", "Sources present", "connectivity")
	stateCheck := newCheck("CN03", "Run history store", "connectivity")
	checks = append(checks, targetCheck, sourceCheck, stateCheck)

	if db, err := cc.OpenAdapter(ctx); err != nil {
		targetCheck.fail(err.Error())
	} else {
		if err := pingTarget(ctx, db); err != nil {
			targetCheck.fail(err.Error())
		} else if project != nil {
			checkSources(ctx, db, project.Sources, sourceCheck)
		}
		_ = db.Close()
	}

	if store, err := cc.OpenStore(ctx); err != nil {
		stateCheck.fail(err.Error())
	} else {
		_ = store.Close()
	}

	assetCheck := newCheck("AS01", "Local assets", "assets")
	if project != nil {
		checkLocalAssets(cc.Cfg.ProjectRoot, project.Assets, assetCheck)
	}
	checks = append(checks, assetCheck)

	return buildDoctorOutput(summary, checks)
}

func buildDoctorOutput(summary ProjectSummary, checks []*HealthCheck) *DoctorOutput {
	healthChecks := make([]HealthCheck, 0, len(checks))
	issues := 0
	for _, c := range checks {
		healthChecks = append(healthChecks, *c)
		issues += c.IssueCount
	}

	// Sort health checks by group then by ID
	sort.SliceStable(healthChecks, func(i, j int) bool {
		if healthChecks[i].Group != healthChecks[j].Group {
			return healthChecks[i].Group < healthChecks[j].Group
		}
		return healthChecks[i].ID < healthChecks[j].ID
	})

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    healthChecks,
		Score:           calculateHealthScore(healthChecks, summary.Models),
		Recommendations: generateRecommendations(healthChecks),
		IssueCount:      issues,
	}
}

func summarizeGraph(summary *ProjectSummary, d *dag.DAG) {
	levels := d.Levels()
	summary.DAGDepth = len(levels)
	summary.RootCount = len(d.Roots())
	summary.LeafCount = len(d.Leaves())
	summary.EdgeCount = edgeCount(d)
}

func countSeeds(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			n++
		}
	}
	return n
}

func pingTarget(ctx context.Context, db adapter.Adapter) error {
	rows, err := db.Query(ctx, "SELECT 1")
	if err != nil {
		return fmt.Errorf("target query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("target returned no rows for SELECT 1")
	}
	return nil
}

func checkSources(ctx context.Context, db adapter.Adapter, sources core.SourceRegistry, check *HealthCheck) {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tables := make([]string, 0, len(sources[name].Tables))
		for table := range sources[name].Tables {
			tables = append(tables, table)
		}
		sort.Strings(tables)

		for _, table := range tables {
			schema, physical, _ := sources.Lookup(name, table)
			kind, err := db.RelationKind(ctx, schema, physical)
			switch {
			case err != nil:
				check.fail(fmt.Sprintf("%s.%s: %v", name, table, err))
			case kind == adapter.RelationNone:
				check.warn(fmt.Sprintf("%s.%s: relation %s.%s does not exist", name, table, schema, physical))
			}
		}
	}
}

func checkLocalAssets(root string, list []core.Asset, check *HealthCheck) {
	for _, a := range list {
		if strings.HasPrefix(a.Location, "s3://") {
			continue
		}
		path := a.Location
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		if _, err := os.Stat(path); err != nil {
			check.warn(fmt.Sprintf("%s: %s not found", a.Name, a.Location))
		}
	}
}

// calculateHealthScore computes a health score from 0-100.
// Errors weigh double; larger projects dilute each issue.
func calculateHealthScore(checks []HealthCheck, modelCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if modelCount > 10 {
		basePenalty = 3.0
	}
	if modelCount > 50 {
		basePenalty = 2.0
	}
	if modelCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case checkError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case checkWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	// Clamp to 0-100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(id string) string {
	switch id {
	case "CF01":
		return "Run 'leaprun init' or add a leaprun.yaml at the project root"
	case "PR01":
		return "Fix the model files that fail to load"
	case "PR02":
		return "Make config() calls use constant arguments so they can be read without rendering"
	case "PR03":
		return "Break dependency cycles and remove references to unknown models"
	case "CN01":
		return "Check the target settings and credentials"
	case "CN02":
		return "Load the raw tables declared in sources.yaml, or run 'leaprun seed'"
	case "CN03":
		return "Make the state_path directory writable"
	case "AS01":
		return "Fix asset locations in assets.yaml"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("leaprun Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Project Summary
	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Models: %d | Macros: %d | Seeds: %d\n", out.Summary.Models, out.Summary.Macros, out.Summary.Seeds)
	r.Printf("   DAG Depth: %d levels | Roots: %d | Leaves: %d\n", out.Summary.DAGDepth, out.Summary.RootCount, out.Summary.LeafCount)
	r.Println("")

	// Health Checks grouped by category
	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case checkWarn:
			icon = styles.Warning.Render("!")
		case checkError:
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.ID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# leaprun Project Health Report")
	r.Println("")

	// Project Summary
	r.Println("## Project Summary")
	r.Println("")
	r.Println(output.FormatKeyValue("Models", fmt.Sprint(out.Summary.Models)))
	r.Println(output.FormatKeyValue("Macros", fmt.Sprint(out.Summary.Macros)))
	r.Println(output.FormatKeyValue("Seeds", fmt.Sprint(out.Summary.Seeds)))
	r.Println(output.FormatKeyValue("DAG Depth", fmt.Sprintf("%d levels", out.Summary.DAGDepth)))
	r.Println(output.FormatKeyValue("Root Models", fmt.Sprint(out.Summary.RootCount)))
	r.Println(output.FormatKeyValue("Leaf Models", fmt.Sprint(out.Summary.LeafCount)))
	r.Println("")

	// Health Checks
	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		line := fmt.Sprintf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.ID, check.Name)
		if check.IssueCount > 0 {
			line += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println(line)

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	// Health Score
	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
