package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ltreme/biasbench/internal/config"
	"github.com/ltreme/biasbench/internal/store"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Create a benchmark run and enqueue it as a task",
	Long: `submit validates the given run options, creates a benchmark_runs row,
and enqueues a task that a running "benchctl serve" worker will pick up.

Example:
  benchctl submit --dataset 1 --model gpt-4o-mini --scale-mode dual --dual-fraction 0.3`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	f := submitCmd.Flags()
	f.Int64("dataset", 0, "dataset id to run against (required)")
	f.String("model", "", "model name (required)")
	f.Int("batch-size", 16, "items per pipeline batch")
	f.Int("max-attempts", 3, "max attempts per item before giving up")
	f.Bool("include-rationale", false, "ask the model for a rationale alongside the rating")
	f.String("system-prompt", "", "override system prompt (empty = template default)")
	f.String("scale-mode", "in", "scale order strategy: in, rev, or dual")
	f.Float64("dual-fraction", 0, "fraction of extra reversed-scale items when scale-mode=dual")
	f.Int("max-new-tokens", 128, "generation token budget per item")
	f.Int64("attrgen-run", 0, "attribute-generation run id to source persona attributes from (0 = none)")
	f.Int64("depends-on", 0, "task id this task must wait on (0 = none)")
	f.String("label", "", "human-readable label for the queued task")

	_ = submitCmd.MarkFlagRequired("dataset")
	_ = submitCmd.MarkFlagRequired("model")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := cmd.Flags()

	datasetID, _ := f.GetInt64("dataset")
	model, _ := f.GetString("model")
	batchSize, _ := f.GetInt("batch-size")
	maxAttempts, _ := f.GetInt("max-attempts")
	includeRationale, _ := f.GetBool("include-rationale")
	systemPrompt, _ := f.GetString("system-prompt")
	scaleMode, _ := f.GetString("scale-mode")
	dualFraction, _ := f.GetFloat64("dual-fraction")
	maxNewTokens, _ := f.GetInt("max-new-tokens")
	attrGenRun, _ := f.GetInt64("attrgen-run")
	dependsOn, _ := f.GetInt64("depends-on")
	label, _ := f.GetString("label")

	opts := config.RunOptions{
		DatasetID:        datasetID,
		ModelName:        model,
		BatchSize:        batchSize,
		MaxAttempts:      maxAttempts,
		IncludeRationale: includeRationale,
		SystemPrompt:     systemPrompt,
		ScaleMode:        scaleMode,
		DualFraction:     dualFraction,
		MaxNewTokens:     maxNewTokens,
		LLMBackend:       "vllm",
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	var systemPromptPtr *string
	if systemPrompt != "" {
		systemPromptPtr = &systemPrompt
	}
	var attrGenPtr *int64
	if attrGenRun > 0 {
		attrGenPtr = &attrGenRun
	}

	run, err := db.CreateBenchmarkRun(ctx, store.NewBenchmarkRun{
		DatasetID:         datasetID,
		ModelID:           model,
		BatchSize:         batchSize,
		MaxAttempts:       maxAttempts,
		IncludeRationale:  includeRationale,
		SystemPrompt:      systemPromptPtr,
		ScaleMode:         store.ScaleMode(scaleMode),
		DualFraction:      dualFraction,
		MaxNewTokens:      maxNewTokens,
		AttrGenerationRun: attrGenPtr,
	})
	if err != nil {
		return fmt.Errorf("create benchmark run: %w", err)
	}

	taskCfg, err := json.Marshal(taskConfig{RunID: run.ID})
	if err != nil {
		return fmt.Errorf("encode task config: %w", err)
	}
	if label == "" {
		label = fmt.Sprintf("benchmark run %d (%s)", run.ID, model)
	}

	var dependsOnPtr *int64
	if dependsOn > 0 {
		dependsOnPtr = &dependsOn
	}

	task, err := db.SubmitTask(ctx, store.NewTask{
		TaskType:  store.TaskTypeBenchmark,
		Label:     label,
		Config:    string(taskCfg),
		DependsOn: dependsOnPtr,
	})
	if err != nil {
		return fmt.Errorf("submit task: %w", err)
	}

	fmt.Printf("submitted task %d (run %d) for dataset %d, model %q\n", task.ID, run.ID, datasetID, model)
	return nil
}
