package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestAPISenderPostsProviderPayload(t *testing.T) {
	var got apiPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender, err := NewAPISender(srv.URL, "key-123", "noreply@playsdb.test", "PlaysDB")
	if err != nil {
		t.Fatalf("new api sender: %v", err)
	}
	err = sender.Send(context.Background(), Message{
		To:      "someone@example.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer key-123" {
		t.Fatalf("authorization = %q", auth)
	}
	if got.From.Email != "noreply@playsdb.test" || got.Subject != "Hello" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(got.Personalizations) != 1 || got.Personalizations[0].To[0].Email != "someone@example.com" {
		t.Fatalf("unexpected recipients: %+v", got.Personalizations)
	}
	if len(got.Content) != 2 {
		t.Fatalf("expected text and html content, got %+v", got.Content)
	}
}

func TestAPISenderSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":["bad"]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender, err := NewAPISender(srv.URL, "key", "noreply@playsdb.test", "")
	if err != nil {
		t.Fatalf("new api sender: %v", err)
	}
	if err := sender.Send(context.Background(), Message{To: "x@example.com", Subject: "s", Text: "t"}); err == nil {
		t.Fatalf("expected error on provider 401")
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return context.DeadlineExceeded
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	rec := &recordingSender{}
	d := NewDispatcher(rec, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	d.Enqueue(Message{To: "a@example.com", Subject: "one", Text: "x"})
	d.Enqueue(Message{To: "b@example.com", Subject: "two", Text: "y"})

	deadline := time.After(2 * time.Second)
	for rec.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("dispatcher delivered %d of 2 messages", rec.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestDispatcherEnqueueNeverBlocks(t *testing.T) {
	rec := &recordingSender{fail: true}
	d := NewDispatcher(rec, 1)
	// No worker running: the queue fills, further enqueues drop.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Enqueue(Message{To: "x@example.com", Subject: "s", Text: "t"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("enqueue blocked on a full queue")
	}
}

func TestNewSenderSelection(t *testing.T) {
	if _, err := NewSender(Config{Provider: "log", FromEmail: "a@b.c"}); err != nil {
		t.Fatalf("log provider: %v", err)
	}
	if _, err := NewSender(Config{Provider: "api", FromEmail: "a@b.c"}); err == nil {
		t.Fatalf("api provider without key should fail")
	}
	if _, err := NewSender(Config{Provider: "smtp", FromEmail: "a@b.c", SMTPAddr: "mail.example.com:587"}); err != nil {
		t.Fatalf("smtp provider: %v", err)
	}
	if _, err := NewSender(Config{Provider: "carrier-pigeon", FromEmail: "a@b.c"}); err == nil {
		t.Fatalf("unknown provider should fail")
	}
}
