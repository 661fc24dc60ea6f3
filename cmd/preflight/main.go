// cmd/preflight/main.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hamed0406/keepwarm/internal/config"
)

func main() {
	os.Exit(run(os.Stdout, os.Stderr))
}

// run checks the configuration and the targets file and returns the exit code.
func run(stdout, stderr io.Writer) int {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	cfg, err := config.Load()
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			keys := make([]string, 0, len(verrs))
			for k := range verrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fail(fmt.Sprintf("%s: %v", k, verrs[k]))
			}
		} else {
			fail("config: " + err.Error())
		}
		return 1
	}

	ok("API_ADDR=" + cfg.Addr)
	ok(fmt.Sprintf("SUCCESS_POLICY=%s HISTORY_SIZE=%d", cfg.SuccessPolicy, cfg.HistorySize))

	if cfg.SlackWebhook == "" {
		warn("SLACK_WEBHOOK empty; worker faults will only be logged.")
	} else {
		ok("SLACK_WEBHOOK present")
	}
	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; the control API accepts any origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	entries, err := config.LoadTargets(cfg.TargetsFile)
	switch {
	case err != nil:
		fail(err.Error())
	case len(entries) == 0:
		warn(cfg.TargetsFile + " missing or empty; service starts with no targets.")
	default:
		valid := 0
		for i, e := range entries {
			spec := e.Spec()
			if spec.TimeoutMS == 0 {
				spec.TimeoutMS = cfg.DefaultTimeoutMS
			}
			if err := spec.Validate(); err != nil {
				fail(fmt.Sprintf("target %d (%s): %v", i, e.URL, err))
				continue
			}
			valid++
		}
		ok(fmt.Sprintf("%s: %d/%d targets valid", cfg.TargetsFile, valid, len(entries)))
	}

	if failed {
		return 1
	}
	ok("preflight passed")
	return 0
}
