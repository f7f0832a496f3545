// -- cmd/apply.go --
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Badis-tech/autoapply/api/schemas"
	"github.com/Badis-tech/autoapply/internal/observability"
	"github.com/Badis-tech/autoapply/internal/profiling"
)

// newApplyCmd creates and configures the `apply` command: detect, map, fill,
// and submit in one run.
func newApplyCmd() *cobra.Command {
	var (
		candidateFile string
		overrides     []string
		showProfile   bool
	)

	applyCmd := &cobra.Command{
		Use:   "apply <url>",
		Short: "Runs a full application against the form at the given URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			candidate, err := loadCandidate(candidateFile)
			if err != nil {
				return err
			}
			mappingOverrides, err := parseOverrides(overrides)
			if err != nil {
				return err
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Shutdown(ctx)

			url := normalizeURL(args[0])
			schema, detectData, err := components.Engine.Detect(ctx, url)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", url, err)
			}

			mapping, err := components.Engine.ConfirmMapping(ctx, schema.ID, candidate, mappingOverrides)
			if err != nil {
				return err
			}

			rec, fillData, err := components.Engine.Fill(ctx, candidate, schema, mapping)
			if rec != nil {
				printJSON(cmd, rec)
			}
			if showProfile {
				for _, data := range []*schemas.ProfilingData{detectData, fillData} {
					if data != nil {
						fmt.Fprintln(cmd.OutOrStdout(), profiling.FormatReport(data))
					}
				}
			}
			if err != nil {
				logger.Warn("Application did not succeed",
					zap.String("application_id", rec.ID),
					zap.String("status", string(rec.Status)),
					zap.Error(err),
				)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nApplication %s: %s\n", rec.ID, rec.Status)
			return nil
		},
	}

	applyCmd.Flags().StringVar(&candidateFile, "candidate", "", "path to a candidate profile JSON file (required)")
	applyCmd.Flags().StringArrayVar(&overrides, "map", nil, "mapping override field=attribute, e.g. --map about=candidate.motivation")
	applyCmd.Flags().BoolVar(&showProfile, "profile", false, "print the phase-level profiling reports")
	_ = applyCmd.MarkFlagRequired("candidate")
	return applyCmd
}

// loadCandidate reads the applicant profile and fills in identity defaults.
func loadCandidate(path string) (schemas.Candidate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return schemas.Candidate{}, fmt.Errorf("failed to read candidate file: %w", err)
	}
	var candidate schemas.Candidate
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return schemas.Candidate{}, fmt.Errorf("invalid candidate file %s: %w", path, err)
	}
	if candidate.Email == "" {
		return schemas.Candidate{}, fmt.Errorf("candidate file %s has no email", path)
	}
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = time.Now().UTC()
	}
	return candidate, nil
}

// knownAttributes guards override parsing against typos.
var knownAttributes = map[schemas.CandidateAttribute]bool{
	schemas.AttrName:       true,
	schemas.AttrFirstName:  true,
	schemas.AttrLastName:   true,
	schemas.AttrEmail:      true,
	schemas.AttrPhone:      true,
	schemas.AttrCVFile:     true,
	schemas.AttrMotivation: true,
}

// parseOverrides turns repeated field=attribute flags into a FieldMapping.
func parseOverrides(pairs []string) (schemas.FieldMapping, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	mapping := make(schemas.FieldMapping, len(pairs))
	for _, pair := range pairs {
		field, attr, ok := strings.Cut(pair, "=")
		if !ok || field == "" || attr == "" {
			return nil, fmt.Errorf("invalid mapping override %q, expected field=attribute", pair)
		}
		a := schemas.CandidateAttribute(attr)
		if !knownAttributes[a] {
			return nil, fmt.Errorf("unknown candidate attribute %q in override %q", attr, pair)
		}
		mapping[field] = a
	}
	return mapping, nil
}
