package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/history"
)

// runPipelineCmd starts the pipeline in the background when the command runs
// and returns its first message. Each progressMsg re-arms the read.
func runPipelineCmd(p *analysis.Pipeline, store *history.Store, in analysis.Input) tea.Cmd {
	return func() tea.Msg {
		ch := make(chan tea.Msg, 8)
		go func() {
			defer close(ch)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			state, err := p.Run(ctx, in, func(pr analysis.Progress) {
				ch <- progressMsg{progress: pr}
			})
			done := pipelineDoneMsg{state: state, err: err}
			if err == nil && store != nil {
				done.entry, done.err = store.Append(ctx, history.Entry{
					ProjectDescription: in.ProjectDescription,
					ProjectLocation:    in.ProjectLocation,
					Analysis:           state.Result,
				})
			}
			ch <- done
		}()
		return waitFor(ch)()
	}
}

func waitFor(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		if pm, isProgress := msg.(progressMsg); isProgress {
			pm.next = ch
			return pm
		}
		return msg
	}
}

func sendChatCmd(s *chat.Session, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		turn, err := s.Send(ctx, text)
		return chatResultMsg{turn: turn, err: err}
	}
}
