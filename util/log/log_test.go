package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/teeql/util/log"
)

func capture(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	defaultLogger := slog.Default()
	log.Configure(buf, level)
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })
	return buf
}

func TestTags(t *testing.T) {
	buf := capture(t, slog.LevelDebug)
	ctx := log.AddTags(context.Background(), "query_id", "q1")
	child := log.AddTags(ctx, "path", "out.csv")
	log.Infow(child, "opened", "rows", 3)
	log.Debugf(ctx, "value %d", 7)

	output := buf.String()
	require.Contains(t, output, `msg=opened rows=3 query_id=q1 path=out.csv`)
	require.Contains(t, output, `msg="value 7" query_id=q1`)
}

func TestLevels(t *testing.T) {
	buf := capture(t, slog.LevelWarn)
	ctx := context.Background()
	log.Infof(ctx, "hidden")
	log.Warnw(ctx, "shown")
	log.Errorf(ctx, "also shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "level=WARN msg=shown")
	require.Contains(t, buf.String(), `level=ERROR msg="also shown"`)
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		assertion string
		input     string
		expected  slog.Level
		ok        bool
	}{
		{"debug", "debug", slog.LevelDebug, true},
		{"default", "", slog.LevelInfo, true},
		{"upper case", "WARN", slog.LevelWarn, true},
		{"error", "error", slog.LevelError, true},
		{"invalid", "loud", 0, false},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			level, err := log.ParseLevel(c.input)
			if !c.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.expected, level)
		})
	}
}

func TestAddTagsOddArguments(t *testing.T) {
	require.Panics(t, func() {
		log.AddTags(context.Background(), "key")
	})
}
