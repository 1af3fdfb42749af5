package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobfit-research/internal/model"
)

var (
	runJobID       string
	runCompany     string
	runRole        string
	runDescription string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the research pipeline for one job",
	Long:  "Runs the research pipeline synchronously for an existing job (--job-id) or a new job created from --company and --role, then prints the report as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runJobID == "" && (runCompany == "" || runRole == "") {
			return eris.New("either --job-id or both --company and --role are required")
		}

		ctx := cmd.Context()
		env, err := initResearch(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		jobID := runJobID
		if jobID == "" {
			job, err := env.Store.CreateJob(ctx, model.NewJobInput{
				CompanyName:    runCompany,
				Position:       runRole,
				JobDescription: runDescription,
			})
			if err != nil {
				return eris.Wrap(err, "create job")
			}
			jobID = job.ID
			zap.L().Info("created job", zap.String("job_id", jobID))
		}

		report, err := env.Pipeline.Run(ctx, jobID)
		if err != nil {
			return eris.Wrapf(err, "run job %s", jobID)
		}

		out := struct {
			JobID string `json:"job_id"`
			*model.AggregatedReport
		}{JobID: jobID, AggregatedReport: report}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	runCmd.Flags().StringVar(&runJobID, "job-id", "", "existing job id")
	runCmd.Flags().StringVar(&runCompany, "company", "", "company name for a new job")
	runCmd.Flags().StringVar(&runRole, "role", "", "position for a new job")
	runCmd.Flags().StringVar(&runDescription, "description", "", "optional job description for a new job")
	rootCmd.AddCommand(runCmd)
}
