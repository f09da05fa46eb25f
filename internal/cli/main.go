package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "brollweave",
		Short:        "Splice or overlay B-roll into a video at an LLM-chosen moment",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("addr", ":5000", "HTTP listen address")
	root.Flags().String("workdir", "temp", "Working area for job artifacts")
	root.Flags().Int("max-jobs", 4, "Maximum concurrently running jobs")
	root.Flags().Duration("stage-timeout", 5*time.Minute, "Deadline per external engine/service call")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
