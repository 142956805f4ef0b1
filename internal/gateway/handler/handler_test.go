package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structai/internal/analysis"
	"structai/internal/chat"
	"structai/internal/engineering"
	"structai/internal/gateway/repository/slot"
	"structai/internal/history"
	"structai/internal/llm"
	"structai/internal/speech"
)

func newTestServer(t *testing.T, client llm.LLMClient) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	runner, err := analysis.NewLLMRunner(client, nil)
	require.NoError(t, err)
	reg, err := history.NewRegistry(slot.NewMemoryStore(), 8)
	require.NoError(t, err)

	h := New(Deps{
		Pipeline: analysis.NewPipeline(runner, logger),
		Designer: engineering.NewDesigner(client, nil),
		Tutor:    engineering.NewTutor(client, nil),
		History:  reg,
		Chats:    chat.NewManager(client, 8, time.Minute, chat.WithLogger(logger)),
		Chatter:  client,
		Narrator: speech.NewNarrator(llm.NewFakeClient(), nil, logger),
		Logger:   logger,
	})
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, hdr ...string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())
	code, body := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestGenerate_Validation(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())

	code, body := do(t, srv, http.MethodPost, "/api/generate", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Analysis type is required", body["error"])

	code, body = do(t, srv, http.MethodPost, "/api/generate", `{"analysisType":"detailed"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid analysis type", body["error"])

	code, _ = do(t, srv, http.MethodPost, "/api/generate", `{"analysisType":"preliminary","projectDescription":"  "}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPost, "/api/generate", `{"analysisType":"conceptualDesign","projectDescription":"x","buildingCode":"EC2"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, srv, http.MethodPost, "/api/generate", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGenerate_PreliminaryThenDesignThenSimulate(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())
	client := []string{ClientHeader, "alice"}

	code, body := do(t, srv, http.MethodPost, "/api/generate",
		`{"analysisType":"preliminary","projectDescription":"10-story residential tower","projectLocation":"Riyadh"}`, client...)
	require.Equal(t, http.StatusOK, code, body)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	result := body["result"].(map[string]any)
	assert.NotEmpty(t, result["suggestedStructuralSystem"])
	assert.NotEmpty(t, result["academicReferences"])

	code, body = do(t, srv, http.MethodPost, "/api/generate",
		`{"analysisType":"conceptualDesign","projectDescription":"10-story residential tower","buildingCode":"ACI","historyId":"`+id+`"}`, client...)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, 60.0, body["columnWidth"])

	code, body = do(t, srv, http.MethodPost, "/api/simulate",
		`{"projectDescription":"10-story residential tower","columnWidth":60,"columnHeight":300,"historyId":"`+id+`"}`, client...)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotEmpty(t, body["summary"])

	code, body = do(t, srv, http.MethodGet, "/api/history/"+id, "", client...)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Riyadh", body["projectLocation"])
	assert.NotNil(t, body["conceptualDesign"])
	assert.NotNil(t, body["simulation"])

	// another client sees its own, empty slot.
	code, body = do(t, srv, http.MethodGet, "/api/history", "", ClientHeader, "bob")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["entries"])
}

type failingClient struct{ *llm.FakeClient }

func (failingClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	return nil, errors.New("upstream exploded")
}

func (failingClient) Chat(ctx context.Context, system string, history []llm.Message) (string, error) {
	return "", errors.New("upstream exploded")
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, failingClient{llm.NewFakeClient()})
	code, body := do(t, srv, http.MethodPost, "/api/generate", `{"analysisType":"preliminary","projectDescription":"bridge"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "upstream exploded")

	code, _ = do(t, srv, http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, srv, http.MethodPost, "/api/chat", `{"projectContext":{},"history":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, code)
}

type silentClient struct{ *llm.FakeClient }

func (silentClient) Chat(ctx context.Context, system string, history []llm.Message) (string, error) {
	return "  ", nil
}

func TestChat_EmptyReplyIsServerError(t *testing.T) {
	srv := newTestServer(t, silentClient{llm.NewFakeClient()})
	code, body := do(t, srv, http.MethodPost, "/api/chat", `{"projectContext":{},"history":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body["error"], "empty reply")
}

func TestHistory_PatchAndClear(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())

	code, _ := do(t, srv, http.MethodPatch, "/api/history/missing", `{"simulation":{"summary":"x"}}`)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, srv, http.MethodGet, "/api/history/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := do(t, srv, http.MethodPost, "/api/generate", `{"analysisType":"preliminary","projectDescription":"school"}`)
	require.Equal(t, http.StatusOK, code)
	id := body["id"].(string)

	code, body = do(t, srv, http.MethodPatch, "/api/history/"+id, `{"simulation":{"summary":"ok","analysisResults":[]}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "school", body["projectDescription"])
	assert.Equal(t, "ok", body["simulation"].(map[string]any)["summary"])

	code, _ = do(t, srv, http.MethodDelete, "/api/history", "")
	assert.Equal(t, http.StatusNoContent, code)
	_, body = do(t, srv, http.MethodGet, "/api/history", "")
	assert.Empty(t, body["entries"])
}

func TestChat_Stateless(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())

	code, body := do(t, srv, http.MethodPost, "/api/chat", `{"projectContext":{"suggestedStructuralSystem":"shear wall system"}}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "History is required", body["error"])

	code, body = do(t, srv, http.MethodPost, "/api/chat",
		`{"projectContext":{"suggestedStructuralSystem":"shear wall system"},"history":[{"role":"user","content":"why?"}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["reply"], "why?")
}

func TestChat_Sessions(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())

	code, body := do(t, srv, http.MethodPost, "/api/chat/sessions", `{"projectContext":{"suggestedStructuralSystem":"shear wall system"}}`)
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)

	code, body = do(t, srv, http.MethodPost, "/api/chat/sessions/"+id+"/messages", `{"text":"   "}`)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["turn"])
	assert.Empty(t, body["transcript"])

	code, body = do(t, srv, http.MethodPost, "/api/chat/sessions/"+id+"/messages", `{"text":"why?"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "resolved", body["turn"].(map[string]any)["state"])
	assert.Len(t, body["transcript"], 2)

	code, body = do(t, srv, http.MethodGet, "/api/chat/sessions/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "shear wall system", body["projectContext"].(map[string]any)["suggestedStructuralSystem"])
	assert.Equal(t, false, body["busy"])

	code, _ = do(t, srv, http.MethodGet, "/api/chat/sessions/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestExplainAndSpeech(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())

	code, body := do(t, srv, http.MethodPost, "/api/explain", `{"topic":"shear walls","level":"beginner","goal":"exam"}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["explanation"])

	code, _ = do(t, srv, http.MethodPost, "/api/explain", `{"topic":"shear walls","level":"guru"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, srv, http.MethodPost, "/api/speech", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body["audio"].(string), "data:audio/wav;base64,"))

	code, _ = do(t, srv, http.MethodPost, "/api/speech", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(chat.ErrBusy))
	assert.Equal(t, http.StatusInternalServerError, statusFor(analysis.ErrStepFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(engineering.ErrMalformedResponse))
	assert.Equal(t, http.StatusInternalServerError, statusFor(llm.ErrEmptyReply))
	assert.Equal(t, http.StatusInternalServerError, statusFor(llm.ErrNoAudio))
	assert.Equal(t, http.StatusNotFound, statusFor(history.ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))

	assert.Equal(t, "upstream", codeFor(fmt.Errorf("%w: structural-system", analysis.ErrStepFailed)))
	assert.Equal(t, "invalid_argument", codeFor(analysis.ErrEmptyDescription))
	assert.Equal(t, "internal", codeFor(errors.New("x")))
}

func TestPipelineWS(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/pipeline/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{ClientHeader: []string{"ws-client"}})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	var msg pipelineWSOutbound
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start", "projectDescription": "hospital", "projectLocation": "Dammam"}))
	progress := 0
	for {
		var m pipelineWSOutbound
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == "progress" {
			progress++
			continue
		}
		require.Equal(t, "complete", m.Type, m.Message)
		assert.NotEmpty(t, m.ID)
		require.NotNil(t, m.Result)
		assert.True(t, m.Result.Complete())
		assert.Equal(t, 6, m.Completed)
		break
	}
	assert.Equal(t, 7, progress)

	code, body := do(t, srv, http.MethodGet, "/api/history", "", ClientHeader, "ws-client")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["entries"], 1)
}

func TestPipelineWS_EmptyDescription(t *testing.T) {
	srv := newTestServer(t, llm.NewFakeClient())
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/pipeline/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "start"}))
	var m pipelineWSOutbound
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&m))
	assert.Equal(t, "error", m.Type)
	assert.Equal(t, "invalid_argument", m.Code)
}
