package util

import (
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
)

// WriteSSEEvent encodes payload as JSON and writes one server-sent event
// frame, flushing immediately so deltas reach the client as they arrive.
func WriteSSEEvent(c echo.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(c.Response(), "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", data); err != nil {
		return err
	}

	c.Response().Flush()
	return nil
}
