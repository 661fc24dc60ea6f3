package domain

import (
	"strings"
	"testing"
)

func validSpec() TargetSpec {
	return TargetSpec{
		URL:           "http://example.test/keepalive",
		MinIntervalMS: 1000,
		MaxIntervalMS: 2000,
		TimeoutMS:     500,
	}
}

func TestTargetSpec_Validate_OK(t *testing.T) {
	if err := validSpec().Validate(); err != nil {
		t.Fatalf("want valid, got %v", err)
	}
	s := validSpec()
	s.MaxIntervalMS = s.MinIntervalMS
	s.Method = "HEAD"
	if err := s.Validate(); err != nil {
		t.Fatalf("equal bounds should be valid, got %v", err)
	}
}

func TestTargetSpec_Validate_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*TargetSpec)
		field string
	}{
		{"empty url", func(s *TargetSpec) { s.URL = "" }, "url"},
		{"ftp url", func(s *TargetSpec) { s.URL = "ftp://x" }, "url"},
		{"no host", func(s *TargetSpec) { s.URL = "https://" }, "url"},
		{"min zero", func(s *TargetSpec) { s.MinIntervalMS = 0 }, "min_interval_ms"},
		{"min negative", func(s *TargetSpec) { s.MinIntervalMS = -5 }, "min_interval_ms"},
		{"min above max", func(s *TargetSpec) { s.MinIntervalMS, s.MaxIntervalMS = 2000, 1000 }, "max_interval_ms"},
		{"timeout zero", func(s *TargetSpec) { s.TimeoutMS = 0 }, "timeout_ms"},
		{"bad method", func(s *TargetSpec) { s.Method = "DELETE" }, "method"},
	}
	for _, c := range cases {
		s := validSpec()
		c.mod(&s)
		err := s.Validate()
		if err == nil {
			t.Fatalf("%s: want error", c.name)
		}
		if !strings.Contains(err.Error(), c.field) {
			t.Fatalf("%s: want error naming %q, got %v", c.name, c.field, err)
		}
	}
}

func TestTarget_Durations(t *testing.T) {
	tg := Target{MinIntervalMS: 1000, MaxIntervalMS: 2500, TimeoutMS: 300}
	if tg.MinInterval().Milliseconds() != 1000 || tg.MaxInterval().Milliseconds() != 2500 || tg.Timeout().Milliseconds() != 300 {
		t.Fatalf("unexpected durations: %v %v %v", tg.MinInterval(), tg.MaxInterval(), tg.Timeout())
	}
	if got := tg.Spec(); got.MaxIntervalMS != 2500 {
		t.Fatalf("spec roundtrip: %+v", got)
	}
}
