package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/history"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Pipeline *analysis.Pipeline
	Chatter  chat.Chatter
	// History is optional; completed analyses are appended to it.
	History     *history.Store
	ChatOptions []chat.Option
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	return newModel(config)
}

func newModel(config Config) *model {
	description := textinput.New()
	description.Placeholder = "e.g. 10-story residential tower with two basements"
	description.CharLimit = 600
	description.Width = 70
	description.Focus()

	location := textinput.New()
	location.Placeholder = "City or region (optional)"
	location.CharLimit = 120
	location.Width = 70

	chatInput := textinput.New()
	chatInput.Placeholder = "Ask about this project…"
	chatInput.CharLimit = 400
	chatInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:      config,
		stage:       stageInput,
		description: description,
		location:    location,
		chatInput:   chatInput,
		spinner:     spin,
		viewport:    vp,
		width:       80,
		infoMessage: "Describe the project and press Enter.",
	}
}

type model struct {
	config Config
	stage  stage
	field  inputField

	description textinput.Model
	location    textinput.Model
	chatInput   textinput.Model
	spinner     spinner.Model
	viewport    viewport.Model
	width       int
	height      int

	input   analysis.Input
	status  analysis.Status
	result  analysis.Result
	entryID string
	session *chat.Session
	waiting bool

	infoMessage string
	errMessage  string
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, m.handleKey(msg)
	case spinner.TickMsg:
		if m.stage != stageRunning && !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressMsg:
		m.status = msg.progress.Status
		m.result = msg.progress.Result
		if msg.progress.Step != "" {
			m.infoMessage = fmt.Sprintf("Finished %s (%d/%d)", stepTitle(msg.progress.Step), msg.progress.Completed, msg.progress.Total)
		}
		return m, waitFor(msg.next)
	case pipelineDoneMsg:
		return m, m.finishPipeline(msg)
	case chatResultMsg:
		m.waiting = false
		if msg.err != nil {
			m.errMessage = msg.err.Error()
		}
		m.refreshChat()
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch m.stage {
	case stageInput:
		return m.handleInputKey(msg)
	case stageResult:
		return m.handleResultKey(msg)
	case stageChat:
		return m.handleChatKey(msg)
	}
	return nil
}

func (m *model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		m.toggleField()
		return nil
	case tea.KeyEnter:
		return m.startPipeline()
	case tea.KeyEsc:
		return tea.Quit
	}
	var cmd tea.Cmd
	if m.field == fieldDescription {
		m.description, cmd = m.description.Update(msg)
	} else {
		m.location, cmd = m.location.Update(msg)
	}
	return cmd
}

func (m *model) toggleField() {
	if m.field == fieldDescription {
		m.field = fieldLocation
		m.description.Blur()
		m.location.Focus()
		return
	}
	m.field = fieldDescription
	m.location.Blur()
	m.description.Focus()
}

func (m *model) startPipeline() tea.Cmd {
	in := analysis.Input{
		ProjectDescription: strings.TrimSpace(m.description.Value()),
		ProjectLocation:    strings.TrimSpace(m.location.Value()),
	}
	state, err := analysis.Start(in)
	if err != nil {
		m.errMessage = "A project description is required."
		return nil
	}
	m.input = in
	m.status = state.Status
	m.result = state.Result
	m.errMessage = ""
	m.infoMessage = "Analysing…"
	m.stage = stageRunning
	return tea.Batch(m.spinner.Tick, runPipelineCmd(m.config.Pipeline, m.config.History, in))
}

func (m *model) finishPipeline(msg pipelineDoneMsg) tea.Cmd {
	m.status = msg.state.Status
	m.result = msg.state.Result
	m.entryID = msg.entry.ID
	if msg.err != nil {
		m.stage = stageInput
		m.errMessage = describeError(msg.err)
		m.infoMessage = "Press Enter to try again."
		return nil
	}
	m.stage = stageResult
	m.infoMessage = "c: chat about this project · n: new project · q: quit"
	m.viewport.SetContent(renderResult(m.input, m.result, m.contentWidth()))
	m.viewport.GotoTop()
	return nil
}

func describeError(err error) string {
	switch {
	case errors.Is(err, analysis.ErrStepFailed):
		return "The analysis stopped: " + err.Error()
	case errors.Is(err, analysis.ErrEmptyDescription):
		return "A project description is required."
	}
	return err.Error()
}

func (m *model) handleResultKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc":
		return tea.Quit
	case "n":
		m.reset()
		return nil
	case "c":
		m.openChat()
		return textinput.Blink
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

func (m *model) reset() {
	m.stage = stageInput
	m.session = nil
	m.entryID = ""
	m.description.SetValue("")
	m.location.SetValue("")
	m.field = fieldLocation
	m.toggleField()
	m.infoMessage = "Describe the project and press Enter."
	m.errMessage = ""
}

func (m *model) openChat() {
	if m.session == nil {
		pc := chat.ContextFromAnalysis(m.input.ProjectDescription, m.result)
		m.session = chat.NewSession(m.config.Chatter, pc, m.config.ChatOptions...)
	}
	m.stage = stageChat
	m.chatInput.Focus()
	m.infoMessage = "Enter: send · Esc: back to the analysis"
	m.refreshChat()
}

func (m *model) handleChatKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.stage = stageResult
		m.chatInput.Blur()
		m.infoMessage = "c: chat about this project · n: new project · q: quit"
		m.viewport.SetContent(renderResult(m.input, m.result, m.contentWidth()))
		return nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.chatInput.Value())
		if text == "" || m.waiting {
			return nil
		}
		m.chatInput.SetValue("")
		m.waiting = true
		m.errMessage = ""
		return tea.Batch(m.spinner.Tick, sendChatCmd(m.session, text))
	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return cmd
}

func (m *model) refreshChat() {
	if m.session == nil {
		return
	}
	m.viewport.SetContent(renderTranscript(m.session.Transcript(), m.contentWidth()))
	m.viewport.GotoBottom()
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	w := width - viewportHorizontalPadding
	if w < minViewportWidth {
		w = minViewportWidth
	}
	m.viewport.Width = w
	if h := height - 8; h > 3 {
		m.viewport.Height = h
	}
	m.description.Width = w - 4
	m.location.Width = w - 4
	m.chatInput.Width = w - 4
	switch m.stage {
	case stageResult:
		m.viewport.SetContent(renderResult(m.input, m.result, m.contentWidth()))
	case stageChat:
		m.refreshChat()
	}
}

func (m *model) contentWidth() int {
	if m.viewport.Width < minViewportWidth {
		return minViewportWidth
	}
	return m.viewport.Width
}
