package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samwillis/solidtype-core/internal/doc"
	"github.com/samwillis/solidtype-core/internal/export"
)

func newExportCmd(flags *rootFlags) *cobra.Command {
	var (
		format string
		out    string
		ascii  bool
	)

	cmd := &cobra.Command{
		Use:   "export <document.json>",
		Short: "Rebuild a document and export the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			var data []byte
			switch format {
			case "json":
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				d, err := doc.ImportJSON("cli", raw)
				if err != nil {
					return err
				}
				data, err = d.ExportJSON()
				if err != nil {
					return err
				}

			case "stl", "step":
				result, err := rebuildFile(args[0], cfg, logger)
				if err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					return fmt.Errorf("document has %d rebuild error(s)", len(result.Errors))
				}
				enc := export.New()
				if format == "stl" {
					data, err = enc.STL(result.Registry.List(), !ascii)
				} else {
					data, err = enc.STEP(result.Registry.List(), "")
				}
				if err != nil {
					return err
				}

			default:
				return fmt.Errorf("unknown format %q (want stl, step or json)", format)
			}

			if out == "" || out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "stl", "export format: stl, step or json")
	cmd.Flags().StringVar(&out, "out", "-", "output file (- for stdout)")
	cmd.Flags().BoolVar(&ascii, "ascii", false, "ASCII STL instead of binary")
	return cmd
}
