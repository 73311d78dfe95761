package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/config"
	"github.com/vibely/vibely/internal/daemon"
	"github.com/vibely/vibely/pkg/assistant"
)

var (
	askProvider string
	askAPIKey   string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt...]",
	Short: "Ask a model a question",
	Long: `Send a prompt to Anthropic (default) or OpenAI and print the answer.
The prompt is read from stdin when no arguments are given.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askProvider, "provider", "p", assistant.ProviderAnthropic, "provider (anthropic, openai)")
	askCmd.Flags().StringVar(&askAPIKey, "api-key", "", "API key for this invocation, overriding the configured one")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read prompt: %w", err)
		}
		prompt = string(data)
	}

	mutate := func(cfg *config.Config) {
		if askAPIKey == "" {
			return
		}
		switch strings.ToLower(askProvider) {
		case assistant.ProviderOpenAI, "gpt":
			cfg.AI.OpenAIKey = askAPIKey
		default:
			cfg.AI.AnthropicKey = askAPIKey
		}
	}

	return withDaemon(cmd, mutate, func(ctx context.Context, d *daemon.Daemon) error {
		answer := d.Ask(ctx, askProvider, prompt)

		if askJSON {
			if err := printJSON(cmd, answer); err != nil {
				return err
			}
		} else if answer.Success {
			fmt.Fprintln(cmd.OutOrStdout(), answer.Text)
		}

		if !answer.Success {
			return failed(answer.Message)
		}
		return nil
	})
}
