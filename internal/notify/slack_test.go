package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_OK(t *testing.T) {
	texts := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		texts <- payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	if err := s.Send(context.Background(), "Worker fault", "Target: abc"); err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got := <-texts; got != "*Worker fault*\nTarget: abc" {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	err := NewSlack(ts.URL).Send(context.Background(), "X", "Y")
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSlack_Disabled(t *testing.T) {
	s := NewSlack("")
	if s != nil {
		t.Fatalf("empty webhook should disable slack")
	}
	if err := s.Send(context.Background(), "X", "Y"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("want ErrDisabled, got %v", err)
	}
}

type recordNotifier struct {
	titles []string
	err    error
}

func (r *recordNotifier) Send(ctx context.Context, title, text string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func TestMulti_SendsToAllAndCombinesErrors(t *testing.T) {
	a := &recordNotifier{err: errors.New("a down")}
	b := &recordNotifier{}
	c := &recordNotifier{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "T", "x")
	if err == nil || !strings.Contains(err.Error(), "a down") || !strings.Contains(err.Error(), "c down") {
		t.Fatalf("want both errors, got %v", err)
	}
	for i, n := range []*recordNotifier{a, b, c} {
		if len(n.titles) != 1 {
			t.Fatalf("notifier %d called %d times", i, len(n.titles))
		}
	}
}
