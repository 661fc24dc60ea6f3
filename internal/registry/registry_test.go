package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hamed0406/keepwarm/internal/domain"
)

func spec(url string) domain.TargetSpec {
	return domain.TargetSpec{URL: url, MinIntervalMS: 1000, MaxIntervalMS: 2000, TimeoutMS: 500}
}

func TestRegistry_AddThenGet(t *testing.T) {
	r := New()
	tgt, err := r.Add(spec("http://example.test/keepalive"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tgt.ID == "" {
		t.Fatalf("expected id to be set")
	}

	got, err := r.Get(tgt.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != domain.StateStopped {
		t.Fatalf("new target should be stopped, got %s", got.State)
	}
	if got.URL != "http://example.test/keepalive" || got.MinIntervalMS != 1000 ||
		got.MaxIntervalMS != 2000 || got.TimeoutMS != 500 || got.Method != "GET" {
		t.Fatalf("unexpected target: %+v", got)
	}
}

func TestRegistry_AddInvalid_SizeUnchanged(t *testing.T) {
	r := New()
	s := spec("http://example.test/keepalive")
	s.MinIntervalMS, s.MaxIntervalMS = 2000, 1000

	_, err := r.Add(s)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("registry should be empty, got %d", r.Len())
	}
}

func TestRegistry_DuplicateURL(t *testing.T) {
	r := New()
	if _, err := r.Add(spec("http://a.test")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add(spec("http://a.test")); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestRegistry_RemoveAndNotFound(t *testing.T) {
	r := New()
	a, _ := r.Add(spec("http://a.test"))
	b, _ := r.Add(spec("http://b.test"))

	if err := r.Remove(a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get(a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound after remove, got %v", err)
	}
	if err := r.Remove(a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound on second remove, got %v", err)
	}
	if err := r.SetState("xyz", domain.StateRunning); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound on SetState, got %v", err)
	}

	list := r.List()
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestRegistry_ListKeepsInsertionOrder(t *testing.T) {
	r := New()
	var ids []domain.TargetID
	for i := 0; i < 5; i++ {
		tgt, err := r.Add(spec(fmt.Sprintf("http://t%d.test", i)))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, tgt.ID)
	}
	for i, tgt := range r.List() {
		if tgt.ID != ids[i] {
			t.Fatalf("position %d: want %s got %s", i, ids[i], tgt.ID)
		}
	}
}

func TestRegistry_SetStateAndCopies(t *testing.T) {
	r := New()
	tgt, _ := r.Add(spec("http://a.test"))
	if err := r.SetState(tgt.ID, domain.StateRunning); err != nil {
		t.Fatal(err)
	}
	got, _ := r.Get(tgt.ID)
	if got.State != domain.StateRunning {
		t.Fatalf("want running, got %s", got.State)
	}

	// mutating a returned copy must not leak into the registry
	got.URL = "http://changed.test"
	again, _ := r.Get(tgt.ID)
	if again.URL != "http://a.test" {
		t.Fatalf("registry mutated through copy: %s", again.URL)
	}
}

func TestRegistry_ConcurrentAdds(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Add(spec(fmt.Sprintf("http://c%d.test", i)))
			_ = r.List()
		}(i)
	}
	wg.Wait()
	if r.Len() != 50 {
		t.Fatalf("want 50 targets, got %d", r.Len())
	}
}
