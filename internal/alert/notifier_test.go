package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/sitewatch/internal/model"
)

func event(level model.AlertLevel, subject string) model.AlertEvent {
	return model.AlertEvent{Level: level, Subject: subject, Message: "body", Site: "https://example.com/"}
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("counts deliveries and swallows failures", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		var seen []string
		n := NotifierFunc(func(_ context.Context, e model.AlertEvent) error {
			seen = append(seen, e.Subject)
			if e.Subject == "fails" {
				return errors.New("smtp unavailable")
			}
			return nil
		})

		events := []model.AlertEvent{
			event(model.AlertCritical, "first"),
			event(model.AlertWarning, "fails"),
			event(model.AlertWarning, "last"),
		}

		delivered := Dispatch(context.Background(), n, events, logger)
		if delivered != 2 {
			t.Errorf("expected 2 delivered, got %d", delivered)
		}
		if len(seen) != 3 {
			t.Errorf("a failure must not stop later deliveries, saw %v", seen)
		}
		if !strings.Contains(buf.String(), "smtp unavailable") {
			t.Errorf("expected failure to be logged, got %q", buf.String())
		}
	})

	t.Run("nil notifier", func(t *testing.T) {
		t.Parallel()

		if got := Dispatch(context.Background(), nil, []model.AlertEvent{event(model.AlertInfo, "x")}, nil); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})
}

func TestMultiNotifier(t *testing.T) {
	t.Parallel()

	ok := NotifierFunc(func(context.Context, model.AlertEvent) error { return nil })
	bad := NotifierFunc(func(context.Context, model.AlertEvent) error { return errors.New("down") })

	if err := (MultiNotifier{ok, bad}).Notify(context.Background(), event(model.AlertInfo, "x")); err != nil {
		t.Errorf("expected success when one channel delivers, got %v", err)
	}
	if err := (MultiNotifier{bad, bad}).Notify(context.Background(), event(model.AlertInfo, "x")); err == nil {
		t.Error("expected error when every channel fails")
	}
	if err := (MultiNotifier{}).Notify(context.Background(), event(model.AlertInfo, "x")); err != nil {
		t.Errorf("expected empty notifier to succeed, got %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.Notify(context.Background(), event(model.AlertCritical, "3 Pages Removed")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "[CRITICAL] 3 Pages Removed") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestWebhookNotifier(t *testing.T) {
	t.Parallel()

	t.Run("posts signed slack payload", func(t *testing.T) {
		t.Parallel()

		type received struct {
			payload   webhookPayload
			signature string
			body      []byte
		}
		got := make(chan received, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			var p webhookPayload
			_ = json.Unmarshal(body, &p)
			got <- received{payload: p, signature: r.Header.Get(SignatureHeader), body: body}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		n := NewWebhookNotifier(server.URL, WithHTTPClient(server.Client()), WithSecret("s3cret"))
		if err := n.Notify(context.Background(), event(model.AlertCritical, "Crawl Failed")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		r := <-got
		if r.payload.Text != "[CRITICAL] Crawl Failed - https://example.com/" {
			t.Errorf("unexpected text %q", r.payload.Text)
		}
		if len(r.payload.Blocks) != 3 || r.payload.Blocks[0].Text.Text != "CRITICAL ALERT" {
			t.Errorf("unexpected blocks %+v", r.payload.Blocks)
		}
		if r.signature != Sign([]byte("s3cret"), r.body) {
			t.Errorf("signature mismatch: %q", r.signature)
		}
	})

	t.Run("non 2xx is an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		n := NewWebhookNotifier(server.URL, WithHTTPClient(server.Client()))
		if err := n.Notify(context.Background(), event(model.AlertWarning, "x")); err == nil {
			t.Error("expected error for status 500")
		}
	})

	t.Run("long messages are truncated", func(t *testing.T) {
		t.Parallel()

		e := event(model.AlertInfo, "x")
		e.Message = strings.Repeat("a", 3000)
		p := buildPayload(e)
		if got := len(p.Blocks[2].Text.Text); got != maxWebhookMessage+6 {
			t.Errorf("expected truncated block of %d chars, got %d", maxWebhookMessage+6, got)
		}
	})
}
