package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ooda/pkg/runner"
	"ooda/pkg/tokens"
)

var (
	stepStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	toolStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	correctiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	answerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var showSteps bool

	cmd := &cobra.Command{
		Use:   "run <question>",
		Short: "Answer one question and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := newProvider(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to model provider: %w", err)
			}
			defer provider.Close()

			sb := newSandbox(cfg)
			if sb != nil {
				defer sb.Close()
			}

			taskID := uuid.New().String()
			registry, err := registryFactory(cfg, sb)(taskID)
			if err != nil {
				return err
			}
			if sb != nil {
				defer sb.Stop(context.Background(), taskID)
			}

			var opts []runner.Option
			if showSteps {
				opts = append(opts, runner.WithListener(runner.ListenerFunc(printEvent)))
			}

			loop, err := runner.New(args[0], provider, registry, tokens.NewCounter(), runnerConfig(cfg), opts...)
			if err != nil {
				return err
			}

			outcome, err := loop.Run(ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, failStyle.Render("task failed: ")+err.Error())
				return err
			}
			if !outcome.Concluded() {
				fmt.Fprintln(os.Stderr, failStyle.Render(
					fmt.Sprintf("no conclusion after %d steps", outcome.Steps)))
				os.Exit(2)
			}

			for _, rec := range outcome.Terminations {
				fmt.Println(answerStyle.Render(rec.Conclusion))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSteps, "steps", false, "print intermediate steps while the task runs")
	return cmd
}

func printEvent(e runner.Event) {
	switch e.Kind {
	case runner.EventAssistant:
		fmt.Printf("%s\n%s\n", stepStyle.Render(fmt.Sprintf("── step %d ──", e.Step)), e.Text)
	case runner.EventToolResult:
		fmt.Printf("%s\n%s\n", toolStyle.Render(fmt.Sprintf("[%s]", e.Tool)), e.Text)
	case runner.EventCorrective:
		fmt.Println(correctiveStyle.Render(e.Text))
	case runner.EventTerminated:
		fmt.Println(stepStyle.Render("── concluded ──"))
	}
}
