package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/lingua-lens/lens/internal/client"
	"github.com/lingua-lens/lens/internal/errors"
	"github.com/lingua-lens/lens/pkg/protocol"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "init [MODEL]",
		Short: "Load a model in the running host and follow its progress",
		Long: "Load a model in the running host. Without MODEL the host picks the\n" +
			"model recommended for this machine, or the selected model setting.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modelID := ""
			if len(args) == 1 {
				modelID = strings.TrimSpace(args[0])
			}
			c := ctx.client()
			if err := c.Health(cmd.Context()); err != nil {
				return err
			}

			events, stop := followProgress(c)
			defer stop()

			results := make(chan initOutcome, 1)
			go func() {
				reply, err := c.Do(cmd.Context(), protocol.InitEngine{ModelID: modelID})
				results <- initOutcome{reply: reply, err: err}
			}()

			var outcome initOutcome
			if !plain && isTerminal(cmd.OutOrStdout()) {
				var err error
				outcome, err = runInitTUI(cmd.Context(), cmd.OutOrStdout(), events, results)
				if err != nil {
					return err
				}
			} else {
				outcome = runInitPlain(cmd.OutOrStdout(), events, results)
			}
			return reportInit(cmd.OutOrStdout(), outcome)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of a progress bar")
	return cmd
}

type initOutcome struct {
	reply protocol.Reply
	err   error
}

// followProgress streams progress events from the host until stop is
// called. A host without the progress stream yields a closed channel.
func followProgress(c *client.Client) (<-chan protocol.InitProgress, func()) {
	events := make(chan protocol.InitProgress, 16)
	sub, err := c.SubscribeProgress()
	if err != nil {
		close(events)
		return events, func() {}
	}
	done := make(chan struct{})
	go func() {
		defer close(events)
		for {
			ev, err := sub.Next()
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()
	return events, func() {
		close(done)
		_ = sub.Close()
	}
}

func reportInit(w io.Writer, o initOutcome) error {
	if o.err != nil {
		return o.err
	}
	switch r := o.reply.(type) {
	case protocol.InitResult:
		switch {
		case !r.Success:
			return errors.User(errors.CodeEngineLoadFailed, r.Error)
		case r.AlreadyLoaded:
			fmt.Fprintln(w, "Model already loaded")
		case r.Initializing:
			fmt.Fprintln(w, "Model is already loading; run `lens status` to check when it is ready")
		default:
			fmt.Fprintln(w, "Model ready")
		}
		return nil
	case protocol.Error:
		return errors.User(errors.CodeEngineLoadFailed, r.Error)
	default:
		return fmt.Errorf("unexpected reply %T", o.reply)
	}
}

func runInitPlain(w io.Writer, events <-chan protocol.InitProgress, results <-chan initOutcome) initOutcome {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			fmt.Fprintf(w, "%3d%%  %s\n", ev.Progress, ev.Status)
		case o := <-results:
			return o
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type progressMsg protocol.InitProgress

type progressClosedMsg struct{}

type resultMsg initOutcome

type initModel struct {
	bar     progress.Model
	percent int
	status  string
	events  <-chan protocol.InitProgress
	results <-chan initOutcome
	outcome *initOutcome
}

func newInitModel(events <-chan protocol.InitProgress, results <-chan initOutcome) initModel {
	return initModel{
		bar:     progress.New(progress.WithDefaultGradient()),
		status:  "Waiting for host...",
		events:  events,
		results: results,
	}
}

func waitForProgress(events <-chan protocol.InitProgress) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return progressClosedMsg{}
		}
		return progressMsg(ev)
	}
}

func waitForResult(results <-chan initOutcome) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-results)
	}
}

func (m initModel) Init() tea.Cmd {
	return tea.Batch(waitForProgress(m.events), waitForResult(m.results))
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		if msg.Progress > m.percent {
			m.percent = msg.Progress
		}
		m.status = msg.Status
		return m, waitForProgress(m.events)
	case progressClosedMsg:
		return m, nil
	case resultMsg:
		o := initOutcome(msg)
		m.outcome = &o
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Loading model"))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	return b.String()
}

func runInitTUI(ctx context.Context, w io.Writer, events <-chan protocol.InitProgress, results <-chan initOutcome) (initOutcome, error) {
	final, err := tea.NewProgram(newInitModel(events, results),
		tea.WithOutput(w),
		tea.WithContext(ctx),
	).Run()
	if err != nil {
		return initOutcome{}, err
	}
	m, ok := final.(initModel)
	if !ok || m.outcome == nil {
		return initOutcome{}, context.Canceled
	}
	return *m.outcome, nil
}
