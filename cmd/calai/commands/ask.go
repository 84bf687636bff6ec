package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/calai-go/internal/eval"
	"github.com/54b3r/calai-go/internal/logging"
)

// NewAskCmd constructs the `calai ask` command, which runs a single natural
// language question through the full pipeline and prints the answer together
// with the evaluator's verdict.
func NewAskCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the calendar assistant a question",
		Long: `Ask the assistant a natural language question about your calendar or
the ingested knowledge base.

Every answer is checked before it is printed: cited chunk IDs must exist in
the retrieved evidence, cited tool calls must exist in the call log, and the
answer text must be supported by what was cited.

Examples:
  calai ask "what events do I have this week?"
  calai ask "create a meeting called Design Review tomorrow at 3pm"
  calai ask "according to the booking policy, how far ahead must I reserve a room?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			p, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer p.close()

			res, err := p.ctrl.Process(ctx, args[0])
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			verdict, err := eval.Evaluate(res)
			if err != nil {
				return fmt.Errorf("ask: evaluation failed: %w", err)
			}

			if asJSON {
				out := struct {
					Answer   string        `json:"answer"`
					Status   string        `json:"status"`
					Verdict  *eval.Verdict `json:"verdict"`
					ChunkIDs []string      `json:"cited_chunk_ids"`
					Calls    []int         `json:"cited_tool_calls"`
				}{
					Answer:   res.Answer.Text,
					Status:   string(res.Answer.Status),
					Verdict:  verdict,
					ChunkIDs: res.Answer.CitedChunkIDs,
					Calls:    res.Answer.CitedToolCalls,
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out) //nolint:wrapcheck // CLI output path
			}

			fmt.Println(res.Answer.Text)
			fmt.Println()
			fmt.Printf("verdict: %s (confidence %.1f)\n", verdict.Result, verdict.Confidence)
			if verdict.Result == eval.Fail {
				fmt.Printf("reason:  %s\n", verdict.Explanation)
			}
			for _, ref := range verdict.References {
				fmt.Printf("source:  %s %s\n", ref.SourceType, ref.Identifier)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")

	return cmd
}
