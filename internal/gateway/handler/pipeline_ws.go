package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"structai/internal/analysis"
)

const (
	pipelineWSWriteWait = 10 * time.Second
	pipelineWSPongWait  = 60 * time.Second
	pipelineWSPingEvery = (pipelineWSPongWait * 9) / 10
)

var pipelineWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type pipelineWSInbound struct {
	Type               string `json:"type"`
	ProjectDescription string `json:"projectDescription,omitempty"`
	ProjectLocation    string `json:"projectLocation,omitempty"`
}

type pipelineWSOutbound struct {
	Type      string                `json:"type"`
	ID        string                `json:"id,omitempty"`
	Step      analysis.StepKind     `json:"step,omitempty"`
	Result    *analysis.Result      `json:"result,omitempty"`
	Status    []analysis.StepStatus `json:"status,omitempty"`
	Completed int                   `json:"completed,omitempty"`
	Total     int                   `json:"total,omitempty"`
	Code      string                `json:"code,omitempty"`
	Message   string                `json:"message,omitempty"`
}

func progressMessage(p analysis.Progress) pipelineWSOutbound {
	res := p.Result
	return pipelineWSOutbound{
		Type:      "progress",
		Step:      p.Step,
		Result:    &res,
		Status:    p.Status.Ordered(),
		Completed: p.Completed,
		Total:     p.Total,
	}
}

// PipelineWS streams the progress of one pipeline run per "start" message.
// A second start while a run is active is refused.
func (h *Handler) PipelineWS(w http.ResponseWriter, r *http.Request) {
	conn, err := pipelineWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(pipelineWSPongWait)); err != nil {
		h.logger.Printf("pipeline ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pipelineWSPongWait))
	})

	writeCh := make(chan pipelineWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(pipelineWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(pipelineWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(pipelineWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	store, err := h.historyFor(r)
	if err != nil {
		pushPipelineWS(ctx, writeCh, pipelineWSOutbound{Type: "error", Code: "internal", Message: err.Error()})
		cancel()
		<-writerDone
		return
	}

	var (
		mu      sync.Mutex
		running bool
		runs    sync.WaitGroup
	)
	defer runs.Wait()

	for {
		var in pipelineWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushPipelineWS(ctx, writeCh, pipelineWSOutbound{Type: "pong"})
		case "start":
			mu.Lock()
			busy := running
			running = true
			mu.Unlock()
			if busy {
				pushPipelineWS(ctx, writeCh, pipelineWSOutbound{Type: "error", Code: "busy", Message: "a pipeline is already running"})
				continue
			}
			input := analysis.Input{ProjectDescription: in.ProjectDescription, ProjectLocation: in.ProjectLocation}
			runs.Add(1)
			go func() {
				defer runs.Done()
				defer func() {
					mu.Lock()
					running = false
					mu.Unlock()
				}()
				state, err := h.d.Pipeline.Run(ctx, input, func(p analysis.Progress) {
					pushPipelineWS(ctx, writeCh, progressMessage(p))
				})
				if err != nil {
					pushPipelineWS(ctx, writeCh, pipelineWSOutbound{Type: "error", Code: codeFor(err), Message: err.Error()})
					return
				}
				entry, err := store.Append(ctx, historyEntry(state))
				if err != nil {
					h.logger.Printf("pipeline ws: save history: %v", err)
				}
				res := state.Result
				pushPipelineWS(ctx, writeCh, pipelineWSOutbound{
					Type:      "complete",
					ID:        entry.ID,
					Result:    &res,
					Status:    state.Status.Ordered(),
					Completed: state.Status.Completed(),
					Total:     len(analysis.Kinds()),
				})
			}()
		default:
			pushPipelineWS(ctx, writeCh, pipelineWSOutbound{Type: "error", Code: "invalid_argument", Message: "unknown message type"})
		}
	}
}

func pushPipelineWS(ctx context.Context, ch chan<- pipelineWSOutbound, out pipelineWSOutbound) {
	select {
	case ch <- out:
	case <-ctx.Done():
	}
}

func codeFor(err error) string {
	switch {
	case statusFor(err) == http.StatusBadRequest:
		return "invalid_argument"
	case errors.Is(err, analysis.ErrStepFailed):
		return "upstream"
	}
	return "internal"
}
