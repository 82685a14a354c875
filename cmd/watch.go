// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 CV610 Systems

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/cv610/airbridge/pkg/air8000"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live telemetry dashboard",
	Long: `Watch the Air8000 in an interactive terminal UI.

Polls the sensors, power rails, and motor states at a fixed interval and
logs every unsolicited notification the device sends. Press 'q' to quit.

Supports both serial and WebSocket connections.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Telemetry poll interval")
	rootCmd.AddCommand(watchCmd)
}

// Event log entry
type watchLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// Messages
type watchTickMsg time.Time
type watchNotifyMsg struct{ frame *air8000.Frame }
type watchPollMsg struct {
	sensors *air8000.SensorData
	power   *air8000.PowerADC
	motors  []air8000.MotorState
	err     error
}

type watchModel struct {
	dev      *air8000.Device
	connInfo string

	sensors *air8000.SensorData
	power   *air8000.PowerADC
	motors  []air8000.MotorState

	notifyCount uint64
	pollErrors  uint64
	eventLog    []watchLogEntry

	width    int
	height   int
	quitting bool
}

const watchMaxLogEntries = 100

func runWatch(cmd *cobra.Command, args []string) error {
	dev, connInfo, err := openDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	m := watchModel{
		dev:      dev,
		connInfo: connInfo,
		width:    80,
		height:   24,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Unsolicited traffic flows straight into the TUI.
	dev.SetNotifyHandler(func(f *air8000.Frame) {
		p.Send(watchNotifyMsg{frame: f})
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), watchTickCmd())
}

func watchTickCmd() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// pollCmd reads one round of telemetry off the device
func (m watchModel) pollCmd() tea.Cmd {
	dev := m.dev
	return func() tea.Msg {
		var msg watchPollMsg
		var err error

		if msg.sensors, err = dev.SensorReadAll(cmdTimeout); err != nil {
			msg.err = err
		}
		if msg.power, err = dev.QueryPower(cmdTimeout); err != nil {
			msg.err = err
		}
		if msg.motors, err = dev.MotorGetAll(cmdTimeout); err != nil {
			msg.err = err
		}
		return msg
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watchTickMsg:
		return m, tea.Batch(m.pollCmd(), watchTickCmd())

	case watchPollMsg:
		if msg.sensors != nil {
			m.sensors = msg.sensors
		}
		if msg.power != nil {
			m.power = msg.power
		}
		if msg.motors != nil {
			m.motors = msg.motors
		}
		if msg.err != nil {
			m.pollErrors++
			m.addLogEntry(fmt.Sprintf("POLL ERROR: %v", msg.err), true)
		}

	case watchNotifyMsg:
		m.notifyCount++
		m.addLogEntry(fmt.Sprintf("NOTIFY cmd=0x%04X len=%d",
			uint16(msg.frame.Cmd), len(msg.frame.Data)), false)
	}

	return m, nil
}

func (m *watchModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, watchLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > watchMaxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-watchMaxLogEntries:]
	}
}

func (m watchModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("AIRBRIDGE - LIVE TELEMETRY"))
	s.WriteString("\n")
	connState := valueStyle.Render("connected")
	if !m.dev.Connected() {
		connState = errorStyle.Render("reconnecting")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | ", m.connInfo)))
	s.WriteString(connState)
	s.WriteString(headerStyle.Render(" | Press 'q' to quit"))
	s.WriteString("\n\n")

	// Telemetry
	telemetry := strings.Builder{}
	if m.sensors != nil {
		telemetry.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Temp:"), valueStyle.Render(fmt.Sprintf("%.1f C", m.sensors.Temperature)),
			labelStyle.Render("Humidity:"), valueStyle.Render(fmt.Sprintf("%d%%", m.sensors.Humidity)),
			labelStyle.Render("Battery:"), valueStyle.Render(fmt.Sprintf("%d%%", m.sensors.Battery)),
		))
	}
	if m.power != nil {
		telemetry.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("12V rail:"), valueStyle.Render(fmt.Sprintf("%d mV", m.power.V12mV)),
			labelStyle.Render("VBat:"), valueStyle.Render(fmt.Sprintf("%d mV", m.power.VBatmV)),
		))
	}
	for _, mo := range m.motors {
		telemetry.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render(fmt.Sprintf("Motor 0x%02X:", mo.ID)),
			valueStyle.Render(fmt.Sprintf("action %d, speed %d", mo.Action, mo.Speed)),
		))
	}
	telemetry.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Notifies:"), valueStyle.Render(fmt.Sprintf("%d", m.notifyCount)),
		labelStyle.Render("Poll errors:"), func() string {
			if m.pollErrors > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", m.pollErrors))
			}
			return valueStyle.Render("0")
		}(),
	))
	if m.sensors == nil && m.power == nil && len(m.motors) == 0 {
		telemetry.WriteString("\n" + warningStyle.Render("waiting for first poll..."))
	}
	s.WriteString(boxStyle.Render(telemetry.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 14 // Reserve space for header and telemetry
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
