package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/groundtrack/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes to one SSE connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger
}

// sendJSON writes v as one "data:" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.write(fmt.Sprintf("data: %s\n\n", data), true)
}

// sendKeepalive writes an SSE comment line.
func (c *client) sendKeepalive() error {
	return c.write(":\n\n", false)
}

func (c *client) write(msg string, counted bool) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "remote_ip", c.ip, "error", err)
	}
	n, err := fmt.Fprint(c.w, msg)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()

	if counted {
		metrics.IncStreamMessages()
	}
	metrics.AddStreamBytes(int64(n))
	return nil
}
