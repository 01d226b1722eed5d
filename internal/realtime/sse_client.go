package realtime

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/firmdesk/firmdesk-backend/internal/platform/logger"
)

// SSEClient consumes a tenant-scoped server-sent-events endpoint. It is the
// default transport: one long-lived GET, named events on the wire, automatic
// reconnect with backoff and polling fallback from the shared state machine.
type SSEClient struct {
	*baseClient
}

var _ Client = (*SSEClient)(nil)

func NewSSEClient(log *logger.Logger, opts ClientOptions) *SSEClient {
	return &SSEClient{baseClient: newBaseClient(log, opts, dialSSE, "SSEClient")}
}

func dialSSE(ctx context.Context, rawURL string, opts ClientOptions) (messageStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.AuthToken)
	}

	// The stream body stays open until server disconnect; a whole-request
	// timeout on the shared client would kill it mid-flight.
	httpc := *opts.HTTPClient
	httpc.Timeout = 0

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("realtime stream rejected: %s", resp.Status)
	}
	return newSSEStream(resp.Body), nil
}

// sseStream parses the text/event-stream framing: blank-line-delimited
// blocks of `event:`, `data:` and `id:` fields. Comment lines (leading
// colon) are skipped, multi-line data is joined with newlines.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newSSEStream(body io.ReadCloser) *sseStream {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	return &sseStream{body: body, scanner: scanner}
}

func (s *sseStream) ReadMessage() (message, error) {
	var m message
	var data bytes.Buffer
	sawField := false

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if !sawField {
				continue
			}
			if m.Type == "" {
				m.Type = "message"
			}
			m.Data = append([]byte{}, data.Bytes()...)
			return m, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "event:"); ok {
			m.Type = strings.TrimSpace(rest)
			sawField = true
			continue
		}
		if rest, ok := strings.CutPrefix(line, "id:"); ok {
			m.ID = strings.TrimSpace(rest)
			sawField = true
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			if len(rest) > 0 && rest[0] == ' ' {
				rest = rest[1:]
			}
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(rest)
			sawField = true
		}
	}

	if err := s.scanner.Err(); err != nil {
		return message{}, err
	}
	return message{}, io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
