package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:5002", "http://localhost:5002"},
		{"http://localhost:5002/", "http://localhost:5002"},
		{"http://localhost:5002//", "http://localhost:5002"},
		{"  https://example.test/api/ ", "https://example.test/api"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeBaseURL(tt.in); got != tt.want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClient_Health(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"ok","model":"brain-v2"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	report, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	if gotPath != "/health" {
		t.Errorf("path = %q, want /health", gotPath)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
	if report["status"] != "ok" {
		t.Errorf("report[status] = %v, want ok", report["status"])
	}
}

func TestClient_Health_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"ok","uptime":12}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	first, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("first Health() error = %v", err)
	}
	second, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("second Health() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Health() results differ: %v vs %v", first, second)
	}
}

func TestClient_Health_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Health(context.Background())

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Health() error = %v, want *ProtocolError", err)
	}
	if pe.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", pe.StatusCode)
	}
	if pe.Err == nil {
		t.Error("expected decode error to be wrapped")
	}
}

func TestClient_Analyze_RequestShape(t *testing.T) {
	var got AnalyzeRequest
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"conversationId":"abc","result":{"answer":"fine","risks":["late invoices"],"score":0.7,"nextQuestions":["why?"]}}`)
	}))
	defer srv.Close()

	payload := Payload{
		Headers: []string{"Region", "Revenue"},
		Data:    [][]any{{"EMEA", 12.5}, {"APAC", nil}},
	}

	resp, err := NewClient(srv.URL).Analyze(context.Background(), "abc", "Summarize", payload)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", contentType)
	}
	if got.ConversationID != "abc" || got.Message != "Summarize" {
		t.Errorf("request = %+v", got)
	}
	if !reflect.DeepEqual(got.Data.Headers, payload.Headers) {
		t.Errorf("headers = %v, want %v", got.Data.Headers, payload.Headers)
	}
	if len(got.Data.Data) != 2 || got.Data.Data[1][1] != nil {
		t.Errorf("data = %v, want null preserved in second row", got.Data.Data)
	}

	if resp.ConversationID != "abc" {
		t.Errorf("ConversationID = %q, want abc", resp.ConversationID)
	}
	if resp.Result.Answer != "fine" {
		t.Errorf("Answer = %q, want fine", resp.Result.Answer)
	}
	if !reflect.DeepEqual(resp.Result.Risks, []string{"late invoices"}) {
		t.Errorf("Risks = %v", resp.Result.Risks)
	}
	if score, ok := resp.Result.Score.(json.Number); !ok || score.String() != "0.7" {
		t.Errorf("Score = %#v, want json.Number 0.7", resp.Result.Score)
	}
	if !reflect.DeepEqual(resp.Result.NextQuestions, []string{"why?"}) {
		t.Errorf("NextQuestions = %v", resp.Result.NextQuestions)
	}
	if len(resp.Raw) == 0 {
		t.Error("Raw should hold the response body")
	}
}

func TestClient_Analyze_EmptyResult(t *testing.T) {
	bodies := []string{`{"result":{}}`, `{}`, `null`, `{"result":null}`}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			}))
			defer srv.Close()

			resp, err := NewClient(srv.URL).Analyze(context.Background(), "id", "msg", Payload{})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			r := resp.Result
			if r.Answer != "" || r.Risks != nil || r.Score != nil || r.NextQuestions != nil {
				t.Errorf("Result = %+v, want zero value", r)
			}
			if r.HasScore() {
				t.Error("HasScore() = true, want false")
			}
		})
	}
}

func TestClient_Analyze_LenientResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":{"answer":{"text":"x"},"risks":"none","score":null,"nextQuestions":["a",2]}}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Analyze(context.Background(), "id", "msg", Payload{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if resp.Result.Answer != `{"text":"x"}` {
		t.Errorf("Answer = %q", resp.Result.Answer)
	}
	if resp.Result.Risks != nil {
		t.Errorf("Risks = %v, want nil for non-list", resp.Result.Risks)
	}
	if resp.Result.Score != nil {
		t.Errorf("Score = %v, want nil", resp.Result.Score)
	}
	if !reflect.DeepEqual(resp.Result.NextQuestions, []string{"a", "2"}) {
		t.Errorf("NextQuestions = %v", resp.Result.NextQuestions)
	}
}

func TestClient_Analyze_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), "id", "msg", Payload{})

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Analyze() error = %v, want *ProtocolError", err)
	}
	if pe.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", pe.StatusCode)
	}
	if pe.Body != "boom" {
		t.Errorf("Body = %q, want boom", pe.Body)
	}
	if pe.Op != "analyze" {
		t.Errorf("Op = %q, want analyze", pe.Op)
	}
}

func TestClient_Analyze_NotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>gateway</html>")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), "id", "msg", Payload{})

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Analyze() error = %v, want *ProtocolError", err)
	}
	if !strings.Contains(pe.Body, "gateway") {
		t.Errorf("Body = %q, want excerpt of response", pe.Body)
	}
}

func TestClient_Analyze_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Analyze(context.Background(), "id", "msg", Payload{})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Analyze() error = %v, want *TransportError", err)
	}
	if te.URL != url+"/analyze" {
		t.Errorf("URL = %q, want %q", te.URL, url+"/analyze")
	}
}

func TestClient_Health_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, WithTimeouts(50*time.Millisecond, 0))
	_, err := c.Health(context.Background())

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Health() error = %v, want *TransportError", err)
	}
	if !te.Timeout() {
		t.Errorf("Timeout() = false, want true (err: %v)", te.Err)
	}
}

type recordingDoer struct {
	req *http.Request
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	d.req = req
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{"status":"ok"}`)),
		Header:     make(http.Header),
	}, nil
}

func TestClient_WithHTTPClient(t *testing.T) {
	doer := &recordingDoer{}
	c := NewClient("http://backend.test/", WithHTTPClient(doer), WithUserAgent("decisio-test"))

	if _, err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if doer.req == nil {
		t.Fatal("custom HTTP client was not used")
	}
	if got := doer.req.URL.String(); got != "http://backend.test/health" {
		t.Errorf("URL = %q", got)
	}
	if got := doer.req.Header.Get("User-Agent"); got != "decisio-test" {
		t.Errorf("User-Agent = %q", got)
	}
	if _, ok := doer.req.Context().Deadline(); !ok {
		t.Error("request context should carry the health deadline")
	}
}
