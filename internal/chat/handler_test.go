package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeLLM struct {
	reply   string
	err     error
	lastReq CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return CompletionResponse{}, f.err
	}
	return CompletionResponse{Text: f.reply}, nil
}

func TestHTTPFallbackRepliesAndPersists(t *testing.T) {
	llm := &fakeLLM{reply: "I build Go services."}
	store := newTestStore(t)
	h := NewHandler(NewAssistant(llm, store, "", nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"session_id":"sess-1","text":"what do you do?"}`))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["reply"] != "I build Go services." || resp["session_id"] != "sess-1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	msgs, err := store.List(context.Background(), "sess-1", 0)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("expected user+assistant persisted, got %d err=%v", len(msgs), err)
	}
	if len(llm.lastReq.System) == 0 || llm.lastReq.System[0] == "" {
		t.Fatal("assistant must send its system prompt")
	}
}

func TestHTTPFallbackAssignsSessionID(t *testing.T) {
	h := NewHandler(NewAssistant(&fakeLLM{reply: "hi"}, nil, "", nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["session_id"] == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestHTTPFallbackValidation(t *testing.T) {
	h := NewHandler(NewAssistant(&fakeLLM{}, nil, "", nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"  "}`))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank text, got %d", rec.Code)
	}
}

func TestHTTPFallbackModelFailure(t *testing.T) {
	h := NewHandler(NewAssistant(&fakeLLM{err: errors.New("rate limited")}, nil, "", nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"hello"}`))
	rec := httptest.NewRecorder()
	h.HandleMessage(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on model failure, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	store := newTestStore(t)
	_ = store.Append(context.Background(), "sess-1", TranscriptMessage{Role: RoleUser, Body: "hello"})
	h := NewHandler(NewAssistant(&fakeLLM{}, store, "", nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/chat/history?session=sess-1", nil)
	rec := httptest.NewRecorder()
	h.HandleHistory(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Text != "hello" {
		t.Fatalf("unexpected history %+v", resp.Messages)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	rec = httptest.NewRecorder()
	h.HandleHistory(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session, got %d", rec.Code)
	}
}

func TestAssistantThreadsHistoryIntoRequest(t *testing.T) {
	llm := &fakeLLM{reply: "second answer"}
	store := newTestStore(t)
	a := NewAssistant(llm, store, "", nil)

	if _, err := a.Reply(context.Background(), "sess-1", "first question"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	llm.reply = "second answer"
	if _, err := a.Reply(context.Background(), "sess-1", "second question"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	msgs := llm.lastReq.Messages
	if len(msgs) < 3 {
		t.Fatalf("expected prior turns in request, got %d messages", len(msgs))
	}
	if msgs[len(msgs)-1].Content != "second question" {
		t.Fatalf("expected the new question last, got %q", msgs[len(msgs)-1].Content)
	}
}
