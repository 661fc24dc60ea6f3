package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const usage = `usage: keepwarm-cli [-api URL] <command> [args]

commands:
  add [-url U] [-min MS] [-max MS] [-timeout MS] [-method M] [-start]
  list
  start <id>|all
  stop <id>|all
  remove <id>
  status [id]
  history <id> [-limit N]
  logs [-tail N]
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
	out  io.Writer
}

func run(args []string, in io.Reader, out io.Writer) error {
	def := os.Getenv("API_BASE")
	if def == "" {
		def = "http://localhost:8080"
	}
	fs := flag.NewFlagSet("keepwarm-cli", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	api := fs.String("api", def, "control API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	hc := cleanhttp.DefaultClient()
	hc.Timeout = 30 * time.Second
	c := &client{base: strings.TrimRight(*api, "/"), http: hc, out: out}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "add":
		return c.add(rest, in)
	case "list":
		return c.do(http.MethodGet, "/api/targets", nil)
	case "start", "stop":
		id, err := oneArg(cmd, rest)
		if err != nil {
			return err
		}
		if id == "all" {
			return c.do(http.MethodPost, "/api/"+cmd, nil)
		}
		return c.do(http.MethodPost, "/api/targets/"+url.PathEscape(id)+"/"+cmd, nil)
	case "remove":
		id, err := oneArg(cmd, rest)
		if err != nil {
			return err
		}
		if err := c.do(http.MethodDelete, "/api/targets/"+url.PathEscape(id), nil); err != nil {
			return err
		}
		fmt.Fprintln(out, "removed", id)
		return nil
	case "status":
		if len(rest) == 0 {
			return c.do(http.MethodGet, "/api/status", nil)
		}
		return c.do(http.MethodGet, "/api/targets/"+url.PathEscape(rest[0])+"/status", nil)
	case "history":
		hfs := flag.NewFlagSet("history", flag.ContinueOnError)
		hfs.SetOutput(out)
		limit := hfs.Int("limit", 0, "max entries")
		if len(rest) == 0 {
			return errors.New("history: missing target id")
		}
		if err := hfs.Parse(rest[1:]); err != nil {
			return err
		}
		path := "/api/targets/" + url.PathEscape(rest[0]) + "/history"
		if *limit > 0 {
			path += fmt.Sprintf("?limit=%d", *limit)
		}
		return c.do(http.MethodGet, path, nil)
	case "logs":
		lfs := flag.NewFlagSet("logs", flag.ContinueOnError)
		lfs.SetOutput(out)
		tail := lfs.Int("tail", 20, "number of outcomes")
		if err := lfs.Parse(rest); err != nil {
			return err
		}
		return c.do(http.MethodGet, fmt.Sprintf("/api/logs?tail=%d", *tail), nil)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%s: expected exactly one target id", cmd)
	}
	return args[0], nil
}

type addPayload struct {
	URL           string `json:"url"`
	Method        string `json:"method,omitempty"`
	MinIntervalMS int64  `json:"min_interval_ms"`
	MaxIntervalMS int64  `json:"max_interval_ms"`
	TimeoutMS     int64  `json:"timeout_ms,omitempty"`
	AutoStart     bool   `json:"auto_start"`
}

func (c *client) add(args []string, in io.Reader) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(c.out)
	var p addPayload
	fs.StringVar(&p.URL, "url", "", "target URL")
	fs.StringVar(&p.Method, "method", "", "GET, HEAD or POST (default GET)")
	fs.Int64Var(&p.MinIntervalMS, "min", 10*60_000, "minimum interval in ms")
	fs.Int64Var(&p.MaxIntervalMS, "max", 14*60_000, "maximum interval in ms")
	fs.Int64Var(&p.TimeoutMS, "timeout", 0, "request timeout in ms (server default when 0)")
	fs.BoolVar(&p.AutoStart, "start", false, "start pinging right away")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if p.URL == "" {
		fmt.Fprint(c.out, "Enter a site URL to keep warm (e.g., https://example.com): ")
		raw, _ := bufio.NewReader(in).ReadString('\n')
		p.URL = strings.TrimSpace(raw)
	}
	if p.URL != "" && !strings.Contains(p.URL, "://") {
		p.URL = "https://" + p.URL
	}
	if _, err := url.ParseRequestURI(p.URL); err != nil {
		return fmt.Errorf("invalid URL %q", p.URL)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.do(http.MethodPost, "/api/targets", body)
}

// do sends the request and pretty-prints a JSON response body.
func (c *client) do(method, path string, body []byte) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("API returned %s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("API returned %s", resp.Status)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = c.out.Write(raw)
		return err
	}
	buf.WriteByte('\n')
	_, err = buf.WriteTo(c.out)
	return err
}
