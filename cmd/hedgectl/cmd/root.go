// Package cmd implements hedgectl, an offline companion to the exposure
// engine that runs the engine over JSON book snapshots.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hedgedesk/exposure-engine/internal/model"
)

// RootConfig holds flags shared by every subcommand.
type RootConfig struct {
	BookPath string
	Compact  bool
}

// New builds the hedgectl command tree.
func New() *cobra.Command {
	rc := &RootConfig{}

	root := &cobra.Command{
		Use:          "hedgectl",
		Short:        "Run the exposure engine over JSON book snapshots",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&rc.BookPath, "book", "b", "book.json", "path to the book snapshot (JSON)")
	root.PersistentFlags().BoolVar(&rc.Compact, "compact", false, "print compact JSON")

	root.AddCommand(
		newNetExposureCmd(rc),
		newPendingCmd(rc),
		newRankCmd(rc),
		newMTMCmd(rc),
		newSettlementsCmd(rc),
		newValidateLegsCmd(rc),
		newMigrateCmd(),
	)
	return root
}

// loadBook reads the book snapshot named by --book.
func (rc *RootConfig) loadBook() (model.Book, error) {
	var book model.Book
	if err := readJSON(rc.BookPath, &book); err != nil {
		return model.Book{}, fmt.Errorf("load book: %w", err)
	}
	return book, nil
}

// print writes v as JSON to the command's output.
func (rc *RootConfig) print(cmd *cobra.Command, v any) error {
	return writeJSON(cmd.OutOrStdout(), v, !rc.Compact)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
