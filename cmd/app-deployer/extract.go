// cmd/app-deployer/extract.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	ga "app-deployer/internal/workers/generation/generate-artifact"

	"github.com/spf13/cobra"
)

var extractFallback bool

// extractCmd runs document extraction over a saved backend response.
var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract the HTML document from a saved generator response",
	Long: `Reads a raw generator response from file (or stdin when omitted) and prints
the HTML document that would be published. Exits non-zero when no document
marker is found, unless --fallback is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		doc, err := ga.ExtractDocument(string(raw))
		if errors.Is(err, ga.ErrExtractionAmbiguous) && extractFallback {
			doc = ga.FallbackDocument
		} else if err != nil {
			return err
		}

		if !ga.IsWellFormed(doc) {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: extracted document is not well formed")
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
		return err
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractFallback, "fallback", false, "print the fallback document instead of failing")
}
