package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/parlance"
	"github.com/aretw0/parlance/internal/validator"
	"github.com/aretw0/parlance/pkg/grammar"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow...]",
	Short: "Check flows for consistency",
	Long: `Compiles each flow (a YAML file or a built-in name) and crawls it from the
initial state, reporting dead links and unreachable states.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{""}
		}
		var failed error
		for _, arg := range args {
			fc := flowConfig(arg)
			name := fc.Name
			if fc.File != "" {
				name = fc.File
			}
			if err := validateFlow(arg); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Flow %s is invalid: %v\n", name, err)
				failed = errors.New("validation failed")
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flow %s is valid! ✅\n", name)
		}
		return failed
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateFlow(arg string) error {
	def, err := loadDefinition(flowConfig(arg), grammar.New())
	if err != nil {
		return err
	}
	if err := validator.ValidateGraph(def); err != nil {
		return err
	}
	_, err = parlance.New(def)
	return err
}
