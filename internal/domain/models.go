package domain

import (
	"net/http"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type TargetID string

// State is the desired/observed run state of a target.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// TargetSpec is the caller-supplied configuration of a target.
type TargetSpec struct {
	URL           string `json:"url"`
	Method        string `json:"method,omitempty"`
	MinIntervalMS int64  `json:"min_interval_ms"`
	MaxIntervalMS int64  `json:"max_interval_ms"`
	TimeoutMS     int64  `json:"timeout_ms"`
}

type Target struct {
	ID            TargetID  `json:"id"`
	URL           string    `json:"url"`
	Method        string    `json:"method"`
	MinIntervalMS int64     `json:"min_interval_ms"`
	MaxIntervalMS int64     `json:"max_interval_ms"`
	TimeoutMS     int64     `json:"timeout_ms"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// Spec returns the configuration part of t.
func (t Target) Spec() TargetSpec {
	return TargetSpec{
		URL:           t.URL,
		Method:        t.Method,
		MinIntervalMS: t.MinIntervalMS,
		MaxIntervalMS: t.MaxIntervalMS,
		TimeoutMS:     t.TimeoutMS,
	}
}

func (t Target) MinInterval() time.Duration { return time.Duration(t.MinIntervalMS) * time.Millisecond }
func (t Target) MaxInterval() time.Duration { return time.Duration(t.MaxIntervalMS) * time.Millisecond }
func (t Target) Timeout() time.Duration     { return time.Duration(t.TimeoutMS) * time.Millisecond }

// Validate checks the spec. Method may be empty (GET is assumed).
func (s TargetSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.URL, validation.Required, validation.By(validateHTTPURL)),
		validation.Field(&s.Method, validation.In(http.MethodGet, http.MethodHead, http.MethodPost)),
		validation.Field(&s.MinIntervalMS, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.MaxIntervalMS,
			validation.Required,
			validation.Min(s.MinIntervalMS).Error("must be no less than min_interval_ms"),
		),
		validation.Field(&s.TimeoutMS, validation.Required, validation.Min(int64(1))),
	)
}

func validateHTTPURL(value interface{}) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}
	if u.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}
	return nil
}

// ErrorKind classifies a failed ping.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindDNS        ErrorKind = "dns"
	KindHTTPStatus ErrorKind = "http_status"
	KindInternal   ErrorKind = "internal"
)

// PingOutcome is the immutable record of one ping attempt.
type PingOutcome struct {
	TargetID     TargetID  `json:"target_id"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	StatusCode   int       `json:"status_code,omitempty"`
	LatencyMS    float64   `json:"latency_ms"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

type TargetStatus struct {
	Target  Target        `json:"target"`
	Latest  *PingOutcome  `json:"latest,omitempty"`
	History []PingOutcome `json:"history"`
}
