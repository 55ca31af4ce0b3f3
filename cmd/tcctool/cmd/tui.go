package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roffe/gotcc"
)

func init() {
	rootCmd.AddCommand(tuiCmd)
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Live telemetry dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := resolveSettings(cmd)
		if err != nil {
			return err
		}

		// Adapter chatter goes into the dashboard's event log instead of
		// stderr, which the alternate screen owns while the tui runs.
		events := make(chan busEvent, 64)
		post := func(e busEvent) {
			e.t = time.Now()
			select {
			case events <- e:
			default:
			}
		}
		dev, err := buildAdapterWith(set, &gotcc.AdapterConfig{
			OnMessage: func(msg string) {
				post(busEvent{msg: msg})
			},
			OnError: func(err error) {
				post(busEvent{msg: err.Error(), isErr: true})
			},
		})
		if err != nil {
			return err
		}

		cl := gotcc.New(gotcc.WithLogger(zerolog.Nop()))
		if err := cl.Open(cmd.Context(), dev); err != nil {
			return err
		}
		defer cl.Close()

		p := tea.NewProgram(newDashboard(cl, dev.Name(), events),
			tea.WithContext(cmd.Context()),
			tea.WithAltScreen(),
		)
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return err
		}
		return nil
	},
}

type busEvent struct {
	t     time.Time
	msg   string
	isErr bool
}

type dashTickMsg time.Time

type dashEventMsg busEvent

const maxDashEvents = 8

type dashboard struct {
	cl      *gotcc.Client
	adapter string
	events  <-chan busEvent

	table    table.Model
	log      []busEvent
	width    int
	quitting bool
}

func newDashboard(cl *gotcc.Client, adapterName string, events <-chan busEvent) dashboard {
	columns := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Parameter", Width: 18},
		{Title: "Value", Width: 14},
		{Title: "Age", Width: 10},
		{Title: "", Width: 5},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(len(cl.Readings())),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return dashboard{
		cl:      cl,
		adapter: adapterName,
		events:  events,
		table:   t,
		width:   80,
	}
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(dashTick(), waitEvent(m.events))
}

func dashTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func waitEvent(ch <-chan busEvent) tea.Cmd {
	return func() tea.Msg {
		return dashEventMsg(<-ch)
	}
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case dashTickMsg:
		m.refresh()
		return m, dashTick()

	case dashEventMsg:
		m.log = append(m.log, busEvent(msg))
		if len(m.log) > maxDashEvents {
			m.log = m.log[len(m.log)-maxDashEvents:]
		}
		return m, waitEvent(m.events)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *dashboard) refresh() {
	readings := m.cl.Readings()
	rows := make([]table.Row, 0, len(readings))
	for _, r := range readings {
		age := "never"
		if r.Value.Kind() != gotcc.KindNone {
			age = r.Age.Round(time.Millisecond).String()
		}
		state := "ok"
		if r.Stale {
			state = "STALE"
		}
		rows = append(rows, table.Row{
			strconv.FormatUint(uint64(r.Param), 10),
			r.Param.String(),
			r.Value.String(),
			age,
			state,
		})
	}
	m.table.SetRows(rows)
}

var (
	dashTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	dashHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	dashTableStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	dashErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

func (m dashboard) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s []string
	s = append(s, dashTitleStyle.Render("TCC TELEMETRY"))
	s = append(s, dashHeaderStyle.Render(
		fmt.Sprintf("Adapter: %s | %s | Press 'q' to quit", m.adapter, m.cl.Stats())))
	s = append(s, dashTableStyle.Render(m.table.View()))

	for _, e := range m.log {
		line := fmt.Sprintf("%s %s", e.t.Format("15:04:05.000"), e.msg)
		if e.isErr {
			line = dashErrStyle.Render(line)
		} else {
			line = dashHeaderStyle.Render(line)
		}
		s = append(s, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, s...) + "\n"
}
