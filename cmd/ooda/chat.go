package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ooda/pkg/jobs"
	"ooda/pkg/tokens"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	youStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	ottoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			provider, err := newProvider(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connecting to model provider: %w", err)
			}
			defer provider.Close()

			sb := newSandbox(cfg)
			if sb != nil {
				defer sb.Close()
			}

			var opts []jobs.ServiceOption
			if sb != nil {
				opts = append(opts, jobs.WithCleanup(func(jobID string) {
					_ = sb.Stop(context.Background(), jobID)
				}))
			}
			service := jobs.NewService(provider, tokens.NewCounter(),
				registryFactory(cfg, sb), runnerConfig(cfg), cfg.TraceDir, opts...)

			p := tea.NewProgram(newChatModel(service), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type jobUpdateMsg jobs.Update
type jobDoneMsg struct{}
type jobErrMsg struct{ err error }

type chatModel struct {
	service  *jobs.Service
	textarea textarea.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	transcript []string
	updates    <-chan jobs.Update
	running    bool
	width      int
	height     int
}

func newChatModel(service *jobs.Service) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask a question..."
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	vp := viewport.New(80, 20)

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return chatModel{
		service:  service,
		textarea: ta,
		viewport: vp,
		renderer: r,
	}
}

func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func waitForUpdate(ch <-chan jobs.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return jobDoneMsg{}
		}
		return jobUpdateMsg(u)
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 2
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.textarea.SetWidth(msg.Width)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-4, 20)),
		)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.running {
				break
			}
			question := strings.TrimSpace(m.textarea.Value())
			if question == "" {
				break
			}
			m.textarea.Reset()
			m.append(youStyle.Render("You: ") + question)

			_, updates, err := m.service.Submit(context.Background(), question)
			if err != nil {
				return m, func() tea.Msg { return jobErrMsg{err} }
			}
			m.updates = updates
			m.running = true
			return m, tea.Batch(taCmd, vpCmd, waitForUpdate(updates))
		}

	case jobUpdateMsg:
		m.append(m.renderUpdate(jobs.Update(msg)))
		return m, tea.Batch(taCmd, vpCmd, waitForUpdate(m.updates))

	case jobDoneMsg:
		m.running = false
		m.updates = nil

	case jobErrMsg:
		m.running = false
		m.append(failStyle.Render("error: ") + msg.err.Error())
	}

	return m, tea.Batch(taCmd, vpCmd)
}

func (m *chatModel) renderUpdate(u jobs.Update) string {
	switch u.Kind {
	case jobs.UpdateAssistant:
		out, err := m.renderer.Render(u.Text)
		if err != nil {
			out = u.Text
		}
		return ottoStyle.Render("Otto:") + "\n" + out
	case jobs.UpdateToolResult:
		return dimStyle.Render(fmt.Sprintf("[%s]\n%s", u.Tool, u.Text))
	case jobs.UpdateCorrective:
		return dimStyle.Render(u.Text)
	case jobs.UpdateTerminated:
		return ottoStyle.Render("Answer: ") + u.Text
	case jobs.UpdateIncomplete:
		return failStyle.Render(u.Text)
	case jobs.UpdateFailed:
		return failStyle.Render("task failed: " + u.Text)
	}
	return u.Text
}

func (m *chatModel) append(line string) {
	m.transcript = append(m.transcript, line)
	m.refresh()
}

func (m *chatModel) refresh() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

func (m chatModel) View() string {
	status := ""
	if m.running {
		status = dimStyle.Render(" working...")
	}
	return fmt.Sprintf("%s%s\n%s\n%s",
		titleStyle.Render("ooda chat"),
		status,
		m.viewport.View(),
		m.textarea.View(),
	)
}
