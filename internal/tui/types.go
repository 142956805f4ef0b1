package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/history"
)

type stage int

const (
	stageInput stage = iota
	stageRunning
	stageResult
	stageChat
)

const heroTagline = "Preliminary structural consulting from a project description."

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
)

type inputField int

const (
	fieldDescription inputField = iota
	fieldLocation
)

// progressMsg carries one pipeline snapshot; next yields the following
// message from the same run.
type progressMsg struct {
	progress analysis.Progress
	next     <-chan tea.Msg
}

type pipelineDoneMsg struct {
	state analysis.State
	entry history.Entry
	err   error
}

type chatResultMsg struct {
	turn chat.Turn
	err  error
}
