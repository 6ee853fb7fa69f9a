package main

import (
	"fmt"
	"time"

	"mlstudio/internal/engine"
	"mlstudio/internal/ml"

	"github.com/spf13/cobra"
)

func newDatasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List registered datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := apiClient(cmd).Datasets(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing datasets: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
}

func newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <dataset-id>",
		Short: "Make a dataset active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := apiClient(cmd).SelectDataset(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("selecting dataset: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), ds.Summary())
		},
	}
}

func newFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Show the active dataset's features by importance",
		RunE: func(cmd *cobra.Command, args []string) error {
			top, _ := cmd.Flags().GetInt("top")
			features, err := apiClient(cmd).Features(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching features: %w", err)
			}
			if top > 0 && top < len(features) {
				features = features[:top]
			}
			return printJSON(cmd.OutOrStdout(), features)
		},
	}
	cmd.Flags().Int("top", 0, "Only show the N most important features")
	return cmd
}

func newHistogramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "histogram <feature>",
		Short: "Show the value distribution of a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := apiClient(cmd).Histogram(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching histogram: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), h)
		},
	}
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Start a training run on the active dataset",
		Long: `Submits a training run. Without --wait the command returns once the
server accepts the run; with --wait it polls until the run finishes and
prints the epoch history.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			algorithm, _ := cmd.Flags().GetString("algorithm")
			split, _ := cmd.Flags().GetInt("split")
			seed, _ := cmd.Flags().GetInt64("seed")
			wait, _ := cmd.Flags().GetBool("wait")

			c := apiClient(cmd)
			cfg := ml.TrainingConfig{
				ModelName:          name,
				Description:        description,
				Algorithm:          algorithm,
				TrainingPercentage: split,
				Seed:               seed,
			}
			if err := c.StartTraining(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("starting training: %w", err)
			}
			if !wait {
				fmt.Fprintln(cmd.OutOrStdout(), "training started")
				return nil
			}

			status, err := c.WaitForTraining(cmd.Context(), 250*time.Millisecond)
			if err != nil {
				return fmt.Errorf("waiting for training: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), status.History)
		},
	}
	cmd.Flags().String("name", "", "Model name")
	cmd.Flags().String("description", "", "Model description")
	cmd.Flags().String("algorithm", "", "Algorithm label")
	cmd.Flags().Int("split", 0, "Training percentage (50-90)")
	cmd.Flags().Int64("seed", 0, "Run seed (0 derives one from the server seed)")
	cmd.Flags().Bool("wait", false, "Wait for the run to finish")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show training status and epoch history",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := apiClient(cmd).TrainingStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching training status: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered models",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := apiClient(cmd).Models(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), models)
		},
	}
}

func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <model-id>",
		Short: "Make a model active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := apiClient(cmd).ActivateModel(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("activating model: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <model-id>",
		Short: "Archive a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient(cmd).ArchiveModel(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("archiving model: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", args[0])
			return nil
		},
	}
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Reactivate the model registered before the active one",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := apiClient(cmd).Rollback(cmd.Context())
			if err != nil {
				return fmt.Errorf("rolling back: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), m)
		},
	}
}

func newEvaluationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluation",
		Short: "Show the active model's evaluation report",
		RunE: func(cmd *cobra.Command, args []string) error {
			eval, err := apiClient(cmd).Evaluation(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching evaluation: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), eval)
		},
	}
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a loan application with the active model",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var in ml.PredictionInput
			in.Age, _ = f.GetFloat64("age")
			in.Income, _ = f.GetFloat64("income")
			in.CreditScore, _ = f.GetFloat64("credit-score")
			in.LoanAmount, _ = f.GetFloat64("loan-amount")
			in.LoanTerm, _ = f.GetFloat64("loan-term")
			in.EmploymentLength, _ = f.GetFloat64("employment-length")
			in.HomeOwnership, _ = f.GetString("home-ownership")
			in.LoanPurpose, _ = f.GetString("loan-purpose")
			in.DebtToIncome, _ = f.GetFloat64("debt-to-income")
			in.HasDefault, _ = f.GetString("has-default")

			result, err := apiClient(cmd).Predict(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("predicting: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Float64("age", 35, "Applicant age")
	cmd.Flags().Float64("income", 65000, "Annual income")
	cmd.Flags().Float64("credit-score", 680, "Credit score")
	cmd.Flags().Float64("loan-amount", 150000, "Requested amount")
	cmd.Flags().Float64("loan-term", 30, "Term in years")
	cmd.Flags().Float64("employment-length", 5, "Years employed")
	cmd.Flags().String("home-ownership", "rent", "own, mortgage or rent")
	cmd.Flags().String("loan-purpose", "home", "Purpose of the loan")
	cmd.Flags().Float64("debt-to-income", 0.3, "Debt to income ratio")
	cmd.Flags().String("has-default", "no", "Prior default (yes or no)")
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived training runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			datasetID, _ := cmd.Flags().GetString("dataset")
			window, err := windowFlags(cmd)
			if err != nil {
				return err
			}
			runs, err := apiClient(cmd).Runs(cmd.Context(), datasetID, window)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().String("dataset", "", "Only runs trained on this dataset")
	addWindowFlags(cmd)
	return cmd
}

func newPredictionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predictions <model-id>",
		Short: "List archived predictions of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := windowFlags(cmd)
			if err != nil {
				return err
			}
			records, err := apiClient(cmd).Predictions(cmd.Context(), args[0], window)
			if err != nil {
				return fmt.Errorf("listing predictions: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	addWindowFlags(cmd)
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dataset and model counts and pipeline progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := apiClient(cmd).Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching summary: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "Start of the window (RFC 3339)")
	cmd.Flags().String("to", "", "End of the window (RFC 3339)")
}

func windowFlags(cmd *cobra.Command) (engine.Window, error) {
	var window engine.Window
	for name, dst := range map[string]*time.Time{"from": &window.From, "to": &window.To} {
		v, _ := cmd.Flags().GetString(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return engine.Window{}, fmt.Errorf("--%s: %w", name, err)
		}
		*dst = t
	}
	return window, nil
}
