package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"llmfit/internal/events"
	"llmfit/internal/llm"
	"llmfit/internal/sequencer"
	"llmfit/internal/snapshot"
	"llmfit/internal/stages"
	"llmfit/internal/state"
)

var (
	evalProfileFile string
	evalProblem     string
	evalContext     string
	evalModel       string
	evalFake        bool
	evalVerbose     bool
	evalTimeout     time.Duration
)

// evalProfile is the YAML input file: the problem plus answers supplied up
// front, keyed by question id, so follow-up questions never stall the run.
type evalProfile struct {
	Problem string            `yaml:"problem"`
	Context string            `yaml:"context"`
	Answers map[string]string `yaml:"answers"`
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a problem description and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile()
		if err != nil {
			return err
		}

		client, err := buildClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		seq := sequencer.New(stages.NewAnalyzer(client), snapshot.NewMemoryStore(), sequencer.Config{
			StageTimeout: evalTimeout,
		})
		st := state.NewRunState("eval-cli", state.RunInput{
			Problem: profile.Problem,
			Context: profile.Context,
		})

		sink := func(ev events.Event) {
			if evalVerbose {
				data, _ := json.Marshal(ev)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ev.EventType(), data)
				return
			}
			if stage, ok := ev.(events.PipelineStage); ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "stage %d/%d: %s\n", stage.Index+1, stage.Total, stage.Stage)
			}
		}

		for {
			outcome := seq.Run(cmd.Context(), st, sink)
			switch outcome.Status {
			case state.StatusCompleted:
				data, err := json.MarshalIndent(outcome.Result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			case state.StatusSuspended:
				merged := false
				for _, q := range outcome.Pending {
					if ans, ok := profile.Answers[q.ID]; ok {
						st.MergeAnswer(state.Answer{
							QuestionID:  q.ID,
							AnswerText:  ans,
							SourceStage: q.OriginStage,
						})
						merged = true
					}
				}
				if merged {
					continue
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "The run needs answers before it can continue:")
				for _, q := range outcome.Pending {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", q.ID, q.Question)
				}
				return fmt.Errorf("run suspended on %d unanswered blocking question(s); add them under answers: in the profile", len(outcome.Pending))
			default:
				if outcome.Err != nil {
					return fmt.Errorf("run %s: %w", outcome.Status, outcome.Err)
				}
				return fmt.Errorf("run ended with status %s", outcome.Status)
			}
		}
	},
}

func loadProfile() (*evalProfile, error) {
	profile := &evalProfile{Answers: map[string]string{}}
	if evalProfileFile != "" {
		data, err := os.ReadFile(evalProfileFile)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, profile); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", evalProfileFile, err)
		}
		if profile.Answers == nil {
			profile.Answers = map[string]string{}
		}
	}
	if evalProblem != "" {
		profile.Problem = evalProblem
	}
	if evalContext != "" {
		profile.Context = evalContext
	}
	if strings.TrimSpace(profile.Problem) == "" {
		return nil, fmt.Errorf("a problem description is required (--problem or a profile file)")
	}
	return profile, nil
}

func buildClient(ctx context.Context) (llm.Client, error) {
	if evalFake {
		return llm.NewFakeClient(stages.FakeScript()), nil
	}
	return llm.NewGeminiClient(ctx, evalModel)
}

func init() {
	evaluateCmd.Flags().StringVarP(&evalProfileFile, "file", "f", "", "path to a YAML profile (problem, context, answers)")
	evaluateCmd.Flags().StringVar(&evalProblem, "problem", "", "problem description (overrides the profile)")
	evaluateCmd.Flags().StringVar(&evalContext, "context", "", "additional context (overrides the profile)")
	evaluateCmd.Flags().StringVar(&evalModel, "model", "", "model name for the Gemini backend")
	evaluateCmd.Flags().BoolVar(&evalFake, "fake", false, "use the offline scripted client instead of a model endpoint")
	evaluateCmd.Flags().BoolVarP(&evalVerbose, "verbose", "v", false, "print every pipeline event")
	evaluateCmd.Flags().DurationVar(&evalTimeout, "timeout", 2*time.Minute, "per-stage attempt timeout")
}
