package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dan-solli/airesponse/pkg/config"
	"github.com/dan-solli/airesponse/pkg/llm"
	"github.com/dan-solli/airesponse/pkg/query"
)

func newQueryCmd(flags *rootFlags) *cobra.Command {
	var (
		system  string
		prompts []string
		images  []string
		model   string
		backend string
		noCache bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Send prompts to the model, answering from the cache when possible",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(images) > len(prompts) {
				return fmt.Errorf("got %d --image flags for %d prompts", len(images), len(prompts))
			}

			req := query.Request{
				SystemPrompt: system,
				UserPrompts:  query.Prompts(prompts...),
				Model:        model,
				Backend:      llm.Backend(backend),
			}
			for i, img := range images {
				req.UserPrompts[i].Image = img
			}

			c, err := flags.open(func(cfg *config.Config) {
				if noCache {
					cfg.Cache.Enabled = false
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			res, err := c.Query(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"responses": res.Responses,
					"cached":    res.Cached,
					"key":       res.Key,
				})
			}
			for i, r := range res.Responses {
				if len(res.Responses) > 1 {
					fmt.Fprintf(out, "--- response %d ---\n", i+1)
				}
				fmt.Fprintln(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&system, "system", "s", "", "system prompt")
	cmd.Flags().StringArrayVarP(&prompts, "prompt", "p", nil, "user prompt (repeatable, order is preserved)")
	cmd.Flags().StringArrayVar(&images, "image", nil, "image for the prompt at the same position: file, http(s) or data: URL")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model or Azure deployment (default from config)")
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "openai or azure (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print responses as JSON")
	_ = cmd.MarkFlagRequired("system")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}
