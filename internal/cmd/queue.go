package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ltreme/biasbench/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or cancel queued tasks",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every task, oldest first",
	RunE:  runQueueList,
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a queued or running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueCancel,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd, queueCancelCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	tasks, err := db.ListTasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}

	fmt.Printf("%-6s %-14s %-10s %-10s %s\n", "ID", "TYPE", "STATUS", "DEPENDS", "LABEL")
	for _, t := range tasks {
		depends := "-"
		if t.DependsOn != nil {
			depends = strconv.FormatInt(*t.DependsOn, 10)
		}
		fmt.Printf("%-6d %-14s %-10s %-10s %s\n", t.ID, t.TaskType, t.Status, depends, t.Label)
		if t.Status == store.TaskStatusFailed && t.Error != nil {
			fmt.Printf("       error: %s\n", *t.Error)
		}
	}
	return nil
}

func runQueueCancel(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q: %w", args[0], err)
	}
	if err := db.CancelTask(cmd.Context(), id); err != nil {
		return fmt.Errorf("cancel task %d: %w", id, err)
	}
	fmt.Printf("cancelled task %d\n", id)
	return nil
}
