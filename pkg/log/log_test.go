package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	mlerrors "github.com/YuminosukeSato/censusml/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLoggerCapturesLevelsAndFields(t *testing.T) {
	logger, buffer := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("test error"), ErrorCodeKey, ErrorInvalidInput)

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, logger.ContainsMessage(msg), msg)
	}
	assert.True(t, logger.ContainsField("key1", "value1"))
	assert.True(t, logger.ContainsField("number", 42.0))
	assert.True(t, logger.ContainsField("error", "test error"))
	assert.True(t, logger.ContainsField(ErrorCodeKey, ErrorInvalidInput))
}

func TestTestLoggerWith(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	ctxLogger := logger.With(ModelNameKey, "DecisionTreeClassifier", ComponentKey, "tree")
	ctxLogger.Info("fitted", SamplesKey, 8)

	assert.True(t, logger.ContainsField(ModelNameKey, "DecisionTreeClassifier"))
	assert.True(t, logger.ContainsField(SamplesKey, 8.0))

	logger.Debug("hidden")
	assert.False(t, logger.ContainsMessage("hidden"))
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestZerologLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("not emitted")
	logger.With(ComponentKey, "dataframe").Info("frame loaded", FrameRowsKey, 20, FrameColumnsKey, 9)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "frame loaded", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "dataframe", entry[ComponentKey])
	assert.Equal(t, 20.0, entry[FrameRowsKey])
}

func TestZerologLoggerLeadingError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	err := mlerrors.NewColumnNotFoundError("Select", "AGEP", []string{"AGE"})
	logger.Error("select failed", err, ColumnKey, "AGEP")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry["error"], `column "AGEP" not found`)
	assert.Equal(t, "AGEP", entry[ColumnKey])
	detail, ok := entry["error_detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ColumnNotFoundError", detail["type"])
}

func TestZerologLoggerEnabled(t *testing.T) {
	logger := NewZerologLogger(&bytes.Buffer{}, LevelWarn)
	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelWarn))
	assert.True(t, logger.Enabled(ctx, LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWarningsRouteThroughProvider(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, LevelInfo, false)
	defer Configure(&bytes.Buffer{}, LevelInfo, false)

	mlerrors.Warn(mlerrors.NewConvergenceWarning("LogisticRegression", 50, "gradient above tolerance"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "warnings", entry[ComponentKey])
	assert.Equal(t, "ConvergenceWarning", entry["type"])
	assert.Equal(t, 50.0, entry["iterations"])
}

func TestProviderSetLogger(t *testing.T) {
	tl, _ := NewTestLogger(LevelDebug)
	SetLogger(tl)
	defer SetLogger(nil)

	GetLoggerWithName("shap").Info("explaining", SamplesKey, 3)
	assert.True(t, tl.ContainsField(ComponentKey, "shap"))
}
