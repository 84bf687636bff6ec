package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/calai-go/internal/agent"
	"github.com/54b3r/calai-go/internal/calendar"
	"github.com/54b3r/calai-go/internal/logging"
)

// NewChatCmd constructs the `calai chat` command: the freeform mode where the
// model drives tool selection itself. Unlike `ask`, chat answers are not run
// through the evaluator — the trade for free conversation is no verdict.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the calendar assistant",
		Long: `Chat with the assistant in freeform mode.

The model decides which calendar tools to call and streams its answer as it
is generated. With a message argument, a single exchange is run; with no
arguments, an interactive session starts (Ctrl-D to exit).

Examples:
  calai chat "move my Friday 1:1 earlier if the morning is free"
  calai chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			p, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer p.close()

			chatAgent, err := agent.NewChatAgent(ctx, &agent.ChatConfig{
				ChatModel: p.chatModel,
				Gateway:   calendar.NewGateway(p.calendar),
				Retriever: p.retriever,
				TopK:      getEnvInt("RETRIEVAL_TOP_K", 0),
				MinScore:  getEnvFloat32("RETRIEVAL_MIN_SCORE", 0),
			})
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			if len(args) > 0 {
				msg := strings.Join(args, " ")
				if _, err := chatAgent.Chat(ctx, msg, os.Stdout); err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				fmt.Println()
				return nil
			}

			// Interactive session: one exchange per line until EOF.
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if _, err := chatAgent.Chat(ctx, line, os.Stdout); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Println()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("chat: reading input: %w", err)
			}
			fmt.Println()
			return nil
		},
	}

	return cmd
}
