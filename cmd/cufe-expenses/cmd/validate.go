package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/store"
)

var validateCheckDuplicates bool

var validateCmd = &cobra.Command{
	Use:   "validate <cufe...>",
	Short: "Validate CUFE codes",
	Long: `Validate one or more CUFE codes.

Checks performed:
  - Normalization (whitespace removed, lower case)
  - Format (96 hexadecimal characters)
  - Duplicates for the current user (--check-duplicates, uses DATABASE_URL)

Exit status is non-zero when any code is invalid.

Examples:
  cufe-expenses validate <cufe>
  cufe-expenses validate <cufe> --check-duplicates --user maria`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDuplicates, "check-duplicates", false, "Reject codes already registered for the user")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var checker cufe.ExistsChecker
	if validateCheckDuplicates {
		repo, closeRepo, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer closeRepo()
		checker = store.Checker(repo, cfg.DefaultUserID)
	}

	results := make([]cufe.ValidationResult, 0, len(args))
	allValid := true
	for _, code := range args {
		res := cufe.Validate(ctx, code, checker)
		results = append(results, res)
		if !res.IsValid {
			allValid = false
		}
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		for i, r := range results {
			if r.IsValid {
				fmt.Printf("✓ %s: VALID\n", r.Code)
			} else {
				fmt.Printf("✗ %s: INVALID\n", args[i])
				fmt.Printf("  - %s\n", r.Error)
			}
		}
	}

	if !allValid {
		return errors.New("one or more codes are invalid")
	}
	return nil
}
