package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "learnloop",
		Short: "Autonomous daily AI learning pipeline with adaptive difficulty",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(topicsCmd())
	root.AddCommand(gradeCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	var slot string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion slot (fetch, score, summarize, select)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(slot)
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "", "slot to run: morning, midday, evening, end_of_day (default: by current time)")
	return cmd
}

func topicsCmd() *cobra.Command {
	var (
		jsonOutput bool
		status     string
		category   string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List learning topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopics(jsonOutput, status, category, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, reteaching, completed)")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&limit, "limit", 50, "max topics to show")
	return cmd
}

func gradeCmd() *cobra.Command {
	var answerFile string

	cmd := &cobra.Command{
		Use:   "grade <topic-id>",
		Short: "Submit an answer for grading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrade(args[0], answerFile)
		},
	}

	cmd.Flags().StringVar(&answerFile, "answer-file", "", "read the answer from a file (default: stdin)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show learning mode, streak, and API usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with slot scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
