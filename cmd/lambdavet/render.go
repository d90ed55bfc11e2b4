package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/pipeline"
)

func renderCmd() *cobra.Command {
	var (
		sourceDir  string
		entrypoint bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the generated Dockerfile or entrypoint script",
		Long:  "Resolves the pipeline definition for a source tree and prints the Dockerfile (or, with --entrypoint, the entry script) that a run would generate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(sourceDir)
			if err != nil {
				return fmt.Errorf("resolve source dir: %w", err)
			}
			def, err := pipeline.Load(abs)
			if err != nil {
				return err
			}
			spec := def.Image.WithDefaults()
			if err := spec.Validate(); err != nil {
				return err
			}
			if entrypoint {
				fmt.Fprint(cmd.OutOrStdout(), spec.RenderEntrypoint())
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), spec.RenderDockerfile())
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", ".", "source tree holding the pipeline definition")
	cmd.Flags().BoolVar(&entrypoint, "entrypoint", false, "print the entrypoint script instead of the Dockerfile")
	return cmd
}
