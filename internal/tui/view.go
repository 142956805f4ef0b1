package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/llm"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7DD3FC"))
	taglineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8")).Italic(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FBBF24"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CBD5E1"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80"))
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#38BDF8")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A5B4FC"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F472B6"))
	modelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34D399"))
	frameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#334155")).Padding(0, 1)
)

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("StructAI consult"))
	b.WriteString("  ")
	b.WriteString(taglineStyle.Render(heroTagline))
	b.WriteString("\n\n")

	switch m.stage {
	case stageInput:
		b.WriteString(labelStyle.Render("Project description"))
		b.WriteString("\n")
		b.WriteString(m.description.View())
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Project location"))
		b.WriteString("\n")
		b.WriteString(m.location.View())
		b.WriteString("\n")
	case stageRunning:
		b.WriteString(renderSteps(m.status, m.spinner.View()))
	case stageResult:
		b.WriteString(frameStyle.Render(m.viewport.View()))
		b.WriteString("\n")
	case stageChat:
		b.WriteString(frameStyle.Render(m.viewport.View()))
		b.WriteString("\n")
		if m.waiting {
			b.WriteString(m.spinner.View())
			b.WriteString(" thinking…\n")
		}
		b.WriteString(m.chatInput.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.errMessage != "" {
		b.WriteString(errorStyle.Render(m.errMessage))
		b.WriteString("\n")
	}
	b.WriteString(infoStyle.Render(m.infoMessage))
	return b.String()
}

func renderSteps(st analysis.Status, spin string) string {
	var b strings.Builder
	for _, s := range st.Ordered() {
		switch s.State {
		case analysis.Complete:
			b.WriteString(doneStyle.Render("✓ " + stepTitle(s.Kind)))
		case analysis.Loading:
			b.WriteString(activeStyle.Render(spin + " " + stepTitle(s.Kind)))
		default:
			b.WriteString(pendingStyle.Render("· " + stepTitle(s.Kind)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func stepTitle(k analysis.StepKind) string {
	switch k {
	case analysis.StructuralSystem:
		return "Structural system"
	case analysis.BuildingCodes:
		return "Building codes"
	case analysis.ExecutionMethod:
		return "Execution method"
	case analysis.PotentialChallenges:
		return "Potential challenges"
	case analysis.KeyFocusAreas:
		return "Key focus areas"
	case analysis.AcademicReferences:
		return "Academic references"
	}
	return string(k)
}

func renderResult(in analysis.Input, r analysis.Result, width int) string {
	var b strings.Builder
	section := func(title, body string) {
		b.WriteString(sectionStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(strings.TrimSpace(body), width))
		b.WriteString("\n\n")
	}
	section("Project", in.ProjectDescription)
	if in.ProjectLocation != "" {
		section("Location", in.ProjectLocation)
	}
	section(stepTitle(analysis.StructuralSystem), r.SuggestedStructuralSystem)
	section(stepTitle(analysis.BuildingCodes), r.ApplicableBuildingCodes)
	section(stepTitle(analysis.ExecutionMethod), r.ExecutionMethod)
	section(stepTitle(analysis.PotentialChallenges), r.PotentialChallenges)
	section(stepTitle(analysis.KeyFocusAreas), r.KeyFocusAreas)

	b.WriteString(sectionStyle.Render(stepTitle(analysis.AcademicReferences)))
	b.WriteString("\n")
	for i, ref := range r.AcademicReferences {
		line := fmt.Sprintf("%d. %s", i+1, ref.Title)
		if ref.Authors != "" {
			line += " (" + ref.Authors + ")"
		}
		b.WriteString(wordwrap.String(line, width))
		b.WriteString("\n")
		if ref.Note != "" {
			b.WriteString(wordwrap.String("   "+ref.Note, width))
			b.WriteString("\n")
		}
		b.WriteString("   " + ref.SearchLink + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTranscript(turns []chat.Turn, width int) string {
	if len(turns) == 0 {
		return pendingStyle.Render("No messages yet. Ask about the structural system, codes or loads.")
	}
	var b strings.Builder
	for _, t := range turns {
		if t.Role == llm.RoleUser {
			b.WriteString(userStyle.Render("You"))
		} else {
			b.WriteString(modelStyle.Render("Consultant"))
		}
		b.WriteString("\n")
		switch t.State {
		case chat.Pending:
			b.WriteString(pendingStyle.Render("…"))
		case chat.Failed:
			b.WriteString(errorStyle.Render(wordwrap.String(t.Content, width)))
		default:
			b.WriteString(wordwrap.String(t.Content, width))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
