package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dan-solli/airesponse/pkg/airesponse"
	"github.com/dan-solli/airesponse/pkg/config"
	"github.com/dan-solli/airesponse/pkg/extract"
)

func newExtractCmd(flags *rootFlags) *cobra.Command {
	var (
		schemaPath string
		modeName   string
	)

	cmd := &cobra.Command{
		Use:   "extract [FILE|-]",
		Short: "Print the structured object found in model output as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode airesponse.Mode
			if modeName != "" {
				m, err := airesponse.ParseMode(modeName)
				if err != nil {
					return err
				}
				mode = m
			}

			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			var schema *extract.Schema
			if schemaPath != "" {
				if schema, err = extract.LoadSchema(schemaPath); err != nil {
					return err
				}
			}

			c, err := flags.open(func(cfg *config.Config) {
				// extraction never touches the cache
				cfg.Cache.Enabled = false
			})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			res, err := c.Extract(cmd.Context(), raw, schema, mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Mode == airesponse.ModeAll {
				data, err := json.Marshal(res.Values)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			_, err = fmt.Fprintln(out, res.Values[0].String())
			return err
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (YAML or JSON)")
	cmd.Flags().StringVar(&modeName, "mode", "", "root, first or all (default from config extract.mode)")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
