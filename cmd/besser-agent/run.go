package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/core"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/examples"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform/telegram"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/platform/websocket"
)

var (
	runPlatforms   []string
	runLLMProvider string
	runSpeech      bool
)

var runCmd = &cobra.Command{
	Use:   "run <agent>",
	Short: "Train an example agent and serve it",
	Long: `Train one of the example agents (greetings, weather, llm) and serve it
until interrupted.

Examples:
  besser-agent run greetings
  besser-agent run weather --platform websocket --platform telegram
  besser-agent run llm --llm-provider openai --speech2text`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		a, err := buildAgent(args[0])
		if err != nil {
			return err
		}
		logger.Info("agent running, press Ctrl+C to stop")
		return a.Run(ctx, core.RunOptions{Train: true, Block: true})
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runPlatforms, "platform", "p", []string{websocket.Name}, "platforms to serve on (websocket, telegram)")
	runCmd.Flags().StringVar(&runLLMProvider, "llm-provider", llm.ProviderOllama, "LLM provider of the llm agent (openai, anthropic, ollama)")
	runCmd.Flags().BoolVar(&runSpeech, "speech2text", false, "transcribe voice messages with the OpenAI transcription API")
	rootCmd.AddCommand(runCmd)
}

// buildAgent declares the example agent name and its platforms.
func buildAgent(name string) (*core.Agent, error) {
	build, err := examples.Lookup(name, runLLMProvider)
	if err != nil {
		return nil, err
	}
	props, err := loadProperties()
	if err != nil {
		return nil, err
	}
	a := core.New(name+"_agent", core.WithProperties(props), core.WithLogger(logger))
	if err := build(a); err != nil {
		return nil, fmt.Errorf("failed to build %s agent: %w", name, err)
	}
	for _, p := range runPlatforms {
		switch p {
		case websocket.Name:
			websocket.Use(a)
		case telegram.Name:
			telegram.Use(a)
		default:
			return nil, fmt.Errorf("unknown platform %q", p)
		}
	}
	if runSpeech {
		a.SetSpeechToText(llm.SpeechToTextFromProperties(props, logger))
	}
	return a, nil
}
