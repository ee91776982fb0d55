package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phetools-curation-server/internal/app"
	"github.com/phetools-curation-server/internal/domain"
	"github.com/phetools-curation-server/internal/schema"
	"github.com/phetools-curation-server/internal/service"
	"github.com/phetools-curation-server/internal/setup"
	"github.com/phetools-curation-server/internal/store"
)

type validationReport struct {
	Valid   bool                  `json:"valid" yaml:"valid"`
	Errors  []string              `json:"errors,omitempty" yaml:"errors,omitempty"`
	Summary *domain.CohortSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

type sanitizeReport struct {
	Corrections int                  `json:"corrections" yaml:"corrections"`
	Summary     domain.CohortSummary `json:"summary" yaml:"summary"`
}

type qcReport struct {
	Valid         bool                   `json:"valid" yaml:"valid"`
	Errors        []string               `json:"errors,omitempty" yaml:"errors,omitempty"`
	Conflicts     []service.RowConflict  `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	HeaderChanges []service.HeaderChange `json:"headerChanges,omitempty" yaml:"header_changes,omitempty"`
}

type transferReport struct {
	Imported int `json:"imported" yaml:"imported"`
	Skipped  int `json:"skipped" yaml:"skipped"`
}

// errInvalid marks a failure whose details are already in the printed report.
var errInvalid = errors.New("cohort is invalid")

func validateCmd(g *globals) *cobra.Command {
	var (
		output   string
		variants bool
	)
	cmd := &cobra.Command{
		Use:   "validate <template.tsv|cohort.json>",
		Short: "Validate a curation template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []app.Option{app.WithoutStore()}
			if !variants {
				opts = append(opts, app.WithoutVariantValidator())
			}
			a, err := g.open(cmd.Context(), opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			cohort, err := loadCohort(cmd.Context(), a, args[0])
			if err != nil {
				return g.reportInvalid(cmd, err)
			}
			if variants {
				if err := a.Curation.ValidateVariants(cmd.Context(), cohort); err != nil {
					return g.reportInvalid(cmd, err)
				}
			}
			if output != "" {
				if err := writeCohort(output, cohort); err != nil {
					return err
				}
			}
			summary := cohort.Summary()
			return g.print(cmd.OutOrStdout(), validationReport{Valid: true, Summary: &summary})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the arranged cohort (.tsv or .json)")
	cmd.Flags().BoolVar(&variants, "variants", false, "Validate HGVS alleles with VariantValidator")
	return cmd
}

func sanitizeCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sanitize <template.tsv|cohort.json>",
		Short: "Remove redundant and contradictory annotations",
		Long: `Remove redundant and contradictory annotations from every row.
Without --output only the report is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), app.WithoutStore(), app.WithoutVariantValidator())
			if err != nil {
				return err
			}
			defer a.Close()

			cohort, err := loadCohort(cmd.Context(), a, args[0])
			if err != nil {
				return g.reportInvalid(cmd, err)
			}
			n, err := a.Curation.Sanitizer().SanitizeCohort(cmd.Context(), cohort)
			if err != nil {
				return err
			}
			if output != "" {
				if err := writeCohort(output, cohort); err != nil {
					return err
				}
			}
			return g.print(cmd.OutOrStdout(), sanitizeReport{Corrections: n, Summary: cohort.Summary()})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the sanitized cohort (.tsv or .json)")
	return cmd
}

func mergeCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "merge <a> <b>",
		Short: "Merge two cohorts over the union of their term columns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), app.WithoutStore(), app.WithoutVariantValidator())
			if err != nil {
				return err
			}
			defer a.Close()

			left, err := loadCohort(cmd.Context(), a, args[0])
			if err != nil {
				return g.reportInvalid(cmd, fmt.Errorf("%s: %w", args[0], err))
			}
			right, err := loadCohort(cmd.Context(), a, args[1])
			if err != nil {
				return g.reportInvalid(cmd, fmt.Errorf("%s: %w", args[1], err))
			}
			merged, err := a.Curation.Merger().Merge(cmd.Context(), left, right)
			if err != nil {
				return err
			}
			if output != "" {
				if err := writeCohort(output, merged); err != nil {
					return err
				}
			}
			summary := merged.Summary()
			return g.print(cmd.OutOrStdout(), validationReport{Valid: true, Summary: &summary})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the merged cohort (.tsv or .json)")
	return cmd
}

func arrangeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "arrange <HP:id>...",
		Short: "Print HPO terms in curation order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), app.WithoutStore(), app.WithoutVariantValidator())
			if err != nil {
				return err
			}
			defer a.Close()

			return g.print(cmd.OutOrStdout(), a.Curation.Arranger().Arrange(termIDs(args)))
		},
	}
}

func templateCmd(g *globals) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "template <HP:id>...",
		Short: "Write an empty curation template for the given terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), app.WithoutStore(), app.WithoutVariantValidator())
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				refs []domain.TermRef
				errs domain.ValidationErrors
			)
			for _, id := range termIDs(args) {
				label, ok := a.Graph.LabelOf(id)
				if !ok {
					errs.Add(&domain.TermLookupError{ID: id, Message: "not found in the ontology"})
					continue
				}
				refs = append(refs, domain.TermRef{ID: id, Label: label})
			}
			if err := errs.Err(); err != nil {
				return g.reportInvalid(cmd, err)
			}
			if err := schema.CheckTerms(refs, a.Graph); err != nil {
				return g.reportInvalid(cmd, err)
			}
			ordered, _ := a.Curation.Arranger().ArrangeRefs(refs)
			matrix := schema.NewTemplateMatrix(ordered)

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return schema.WriteTSV(w, matrix)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Template path (default stdout)")
	return cmd
}

func qcCmd(g *globals) *cobra.Command {
	var (
		output     string
		fixHeaders bool
		moi        []string
	)
	cmd := &cobra.Command{
		Use:   "qc <template.tsv|cohort.json>",
		Short: "Run quality control on a cohort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), app.WithoutStore(), app.WithoutVariantValidator())
			if err != nil {
				return err
			}
			defer a.Close()

			cohort, err := loadCohort(cmd.Context(), a, args[0])
			if err != nil {
				return g.reportInvalid(cmd, err)
			}

			if err := applyInheritance(a, cohort, moi); err != nil {
				return g.reportInvalid(cmd, err)
			}

			report := qcReport{Valid: true}
			if fixHeaders {
				changes, err := a.Curation.QC().SanitizeHeaders(cohort)
				if err != nil {
					return g.reportInvalid(cmd, err)
				}
				report.HeaderChanges = changes
			}
			if err := a.Curation.QC().Check(cohort); err != nil {
				report.Valid = false
				report.Errors = messagesOf(err)
			}
			if cohort.CheckWidth() == nil {
				report.Conflicts = a.Curation.QC().Conflicts(cohort)
			}
			if output != "" {
				if err := writeCohort(output, cohort); err != nil {
					return err
				}
			}
			if err := g.print(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return errInvalid
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fixHeaders, "fix-headers", false, "Replace alternate and obsolete term ids before checking")
	cmd.Flags().StringSliceVar(&moi, "moi", nil, "Mode of inheritance (HPO id) for diseases that list none")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the checked cohort (.tsv or .json)")
	return cmd
}

func exportCmd(g *globals) *cobra.Command {
	var (
		output      string
		databaseURL string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored cohorts as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), storeOptions(databaseURL)...)
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return store.ExportJSON(cmd.Context(), a.Store, w)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Export path (default stdout)")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (overrides the configured store)")
	return cmd
}

func importCmd(g *globals) *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "import <export.json>",
		Short: "Import cohorts exported with phetools export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), storeOptions(databaseURL)...)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), a.Store, f)
			if err != nil {
				return err
			}
			return g.print(cmd.OutOrStdout(), transferReport{Imported: imported, Skipped: skipped})
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "Postgres URL (overrides the configured store)")
	return cmd
}

func setupCmd(g *globals) *cobra.Command {
	var opts setup.Options
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the curation MCP server with a desktop MCP client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigFile = g.configPath
			if opts.OBOPath == "" {
				opts.OBOPath = g.hpoPath
			}
			path, err := setup.Configure(opts)
			if err != nil {
				return err
			}
			status, err := setup.GetStatus(setup.Options{ClientConfigPath: path})
			if err != nil {
				return err
			}
			return g.print(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to the mcp-server binary")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the registration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := setup.GetStatus(opts)
			if err != nil {
				return err
			}
			return g.print(cmd.OutOrStdout(), s)
		},
	}
	cmd.AddCommand(status)
	cmd.PersistentFlags().StringVar(&opts.ClientConfigPath, "client-config", "", "MCP client config file (default: Claude Desktop)")
	return cmd
}

func storeOptions(databaseURL string) []app.Option {
	opts := []app.Option{app.WithoutVariantValidator()}
	if databaseURL != "" {
		opts = append(opts, app.WithDatabaseURL(databaseURL))
	}
	return opts
}

// reportInvalid prints err as a failed validation report.
func (g *globals) reportInvalid(cmd *cobra.Command, err error) error {
	switch domain.ErrorCode(err) {
	case domain.ErrInternalServer, domain.ErrDatabaseError:
		return err
	}
	if perr := g.print(cmd.OutOrStdout(), validationReport{Valid: false, Errors: messagesOf(err)}); perr != nil {
		return perr
	}
	return errInvalid
}

func messagesOf(err error) []string {
	var errs *domain.ValidationErrors
	if errors.As(err, &errs) {
		return errs.Messages()
	}
	return []string{err.Error()}
}

func termIDs(args []string) []domain.TermID {
	ids := make([]domain.TermID, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				ids = append(ids, domain.TermID(part))
			}
		}
	}
	return ids
}

// loadCohort reads a saved cohort (.json) or imports a template (anything
// else).
// applyInheritance gives every disease without a mode of inheritance the
// given modes. Templates carry no inheritance column.
func applyInheritance(a *app.App, c *domain.Cohort, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	modes := make([]domain.ModeOfInheritance, 0, len(ids))
	for _, raw := range ids {
		id := domain.TermID(strings.TrimSpace(raw))
		label, ok := a.Graph.LabelOf(id)
		if !ok {
			return domain.NewMCPError(domain.ErrTermLookup, "Unknown mode of inheritance", string(id), "")
		}
		modes = append(modes, domain.ModeOfInheritance{HPOID: id, HPOLabel: label})
	}
	for i := range c.DiseaseList {
		if len(c.DiseaseList[i].ModeOfInheritanceList) == 0 {
			c.DiseaseList[i].ModeOfInheritanceList = append([]domain.ModeOfInheritance(nil), modes...)
		}
	}
	return nil
}

func loadCohort(ctx context.Context, a *app.App, path string) (*domain.Cohort, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var c domain.Cohort
		if err := json.NewDecoder(f).Decode(&c); err != nil {
			return nil, domain.NewMCPError(domain.ErrInvalidInput, "Invalid cohort JSON", err.Error(), "")
		}
		if err := c.CheckWidth(); err != nil {
			return nil, err
		}
		return &c, nil
	}

	matrix, err := schema.ReadTSV(f)
	if err != nil {
		return nil, domain.NewMCPError(domain.ErrInvalidInput, "Invalid TSV", err.Error(), "")
	}
	return a.Curation.ImportTable(ctx, matrix)
}

// writeCohort writes a template for .tsv paths and cohort JSON otherwise.
func writeCohort(path string, c *domain.Cohort) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		matrix, err := schema.Matrix(c)
		if err != nil {
			return err
		}
		return schema.WriteTSV(f, matrix)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
