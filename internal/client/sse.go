package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/fleveque/course-service/internal/model"
)

// stream posts body and feeds every decoded event to fn until the server
// closes the stream.
func (c *Client) stream(ctx context.Context, path string, body any, fn EventFunc) error {
	if body == nil {
		body = struct{}{}
	}
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		return fmt.Errorf("expected an event stream, got %q", ct)
	}

	var failure error
	err = readEvents(resp.Body, func(data string) error {
		ev, err := model.DecodeEvent([]byte(data))
		if errors.Is(err, model.ErrUnknownEvent) {
			c.logger.Debug("skipping unknown event", zap.String("data", data))
			return nil
		}
		if err != nil {
			return err
		}
		if f, ok := ev.(model.Failure); ok {
			failure = fmt.Errorf("%w: %s", ErrGenerationFailed, f.Message)
		}
		return fn(ev)
	})
	if err != nil {
		return err
	}
	return failure
}

// readEvents splits an event stream into the data of each event. Multi-line
// data is joined with "\n"; comments and other fields are ignored.
func readEvents(r io.Reader, fn func(data string) error) error {
	reader := bufio.NewReader(r)
	var data []string

	dispatch := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return fn(payload)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading event stream: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if eof {
			return dispatch()
		}
	}
}
