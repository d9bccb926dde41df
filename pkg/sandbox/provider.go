package sandbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/sandbox-mcp/pkg/api"
	"github.com/rhuss/sandbox-mcp/pkg/debug"
	"github.com/rhuss/sandbox-mcp/pkg/observability"
)

// ErrExecutionTimeout is returned when the sandbox killed the execution
// because it exceeded its timeout.
var ErrExecutionTimeout = errors.New("execution timed out")

var _ Provider = (*HTTPProvider)(nil)

// HTTPProvider opens sessions against sandbox servers obtained from an
// Acquirer and executes code through the sandbox REST API.
type HTTPProvider struct {
	name     string
	acquirer Acquirer
	client   *Client
	timeout  time.Duration
}

// NewHTTPProvider creates a provider. executionTimeout is forwarded to the
// sandbox as the per-execution limit; zero leaves the server default.
func NewHTTPProvider(name string, acquirer Acquirer, client *Client, executionTimeout time.Duration) *HTTPProvider {
	if client == nil {
		client = NewClient()
	}
	return &HTTPProvider{
		name:     name,
		acquirer: acquirer,
		client:   client,
		timeout:  executionTimeout,
	}
}

// Name returns the provider name.
func (p *HTTPProvider) Name() string {
	return p.name
}

// NewSession acquires a sandbox server for exclusive use by the session.
func (p *HTTPProvider) NewSession(ctx context.Context) (Session, error) {
	url, release, err := p.acquirer.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sandbox: %w", err)
	}
	if release == nil {
		release = func() {}
	}

	s := &httpSession{
		id:       uuid.NewString(),
		url:      url,
		release:  release,
		provider: p,
	}
	observability.SandboxSessionsActive.Inc()
	debug.Log("sandbox", "session opened", "session", s.id, "url", url)
	return s, nil
}

type httpSession struct {
	id        string
	url       string
	release   func()
	provider  *HTTPProvider
	closeOnce sync.Once
}

func (s *httpSession) ID() string {
	return s.id
}

func (s *httpSession) Run(ctx context.Context, code string) (*api.ExecutionResult, error) {
	resp, err := s.provider.client.Execute(ctx, s.url, &Request{
		Code:           code,
		TimeoutSeconds: int(s.provider.timeout / time.Second),
	})
	if err != nil {
		return nil, err
	}
	return toResult(resp)
}

func (s *httpSession) Close() error {
	s.closeOnce.Do(func() {
		s.release()
		observability.SandboxSessionsActive.Dec()
		debug.Log("sandbox", "session closed", "session", s.id)
	})
	return nil
}

// toResult converts a sandbox response into an execution result. Output
// files are decoded and ordered by name.
func toResult(resp *Response) (*api.ExecutionResult, error) {
	if resp.Status == StatusTimeout {
		if resp.Stderr != "" {
			return nil, fmt.Errorf("%w: %s", ErrExecutionTimeout, resp.Stderr)
		}
		return nil, ErrExecutionTimeout
	}

	result := &api.ExecutionResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Duration: time.Duration(resp.ExecutionTimeMs) * time.Millisecond,
	}

	names := make([]string, 0, len(resp.FilesProduced))
	for name := range resp.FilesProduced {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := base64.StdEncoding.DecodeString(resp.FilesProduced[name])
		if err != nil {
			return nil, fmt.Errorf("decode output file %q: %w", name, err)
		}
		result.Files = append(result.Files, api.File{Name: name, Data: data})
	}
	return result, nil
}

// StaticURL returns an Acquirer that always hands out the same sandbox URL.
func StaticURL(url string) Acquirer {
	return staticURLAcquirer{url: url}
}

type staticURLAcquirer struct {
	url string
}

func (a staticURLAcquirer) Acquire(context.Context) (string, func(), error) {
	return a.url, func() {}, nil
}
