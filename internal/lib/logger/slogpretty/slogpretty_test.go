package slogpretty

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestHandleWritesMessageAndAttrs(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	h := PrettyHandlerOptions{SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug}}.NewPrettyHandler(&buf)
	log := slog.New(h).With(slog.String("op", "checkout.Quote"))

	log.Info("payment quoted", slog.String("intent", "pi_1"))

	out := buf.String()
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "payment quoted")
	assert.Contains(t, out, `"intent": "pi_1"`)
	assert.Contains(t, out, `"op": "checkout.Quote"`)
}
