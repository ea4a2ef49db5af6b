package logger_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/knit/internal/adapters/logger"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestCollectErrorEntries(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessages []string
		wantMetadata []map[string]any
	}{
		{
			name:         "single standard error",
			err:          errors.New("simple error"),
			wantMessages: []string{"simple error"},
			wantMetadata: []map[string]any{nil},
		},
		{
			name:         "zerr single error",
			err:          zerr.New("zerr error"),
			wantMessages: []string{"zerr error"},
			wantMetadata: []map[string]any{{}},
		},
		{
			name:         "zerr wrapped chain",
			err:          zerr.Wrap(zerr.Wrap(errors.New("root cause"), "middle layer"), "outer layer"),
			wantMessages: []string{"outer layer", "middle layer", "root cause"},
			wantMetadata: []map[string]any{{}, {}, nil},
		},
		{
			name:         "metadata on a standard error moves to the cause",
			err:          zerr.With(errors.New("plain"), "key", "value"),
			wantMessages: []string{"plain"},
			wantMetadata: []map[string]any{{"key": "value"}},
		},
		{
			name:         "error kind with metadata",
			err:          domain.NewError(domain.ErrModuleNotFound, os.ErrNotExist, "path", "/src/a.js"),
			wantMessages: []string{"module not found", "file does not exist"},
			wantMetadata: []map[string]any{{"path": "/src/a.js"}, nil},
		},
		{
			name: "wrapped kind keeps outer metadata",
			err: zerr.With(
				domain.NewError(domain.ErrUnresolvableSpecifier, nil, "specifier", "ftp://x", "importer", "/src/e.js"),
				"module", "/src/e.js",
			),
			wantMessages: []string{"unresolvable import specifier"},
			wantMetadata: []map[string]any{{"specifier": "ftp://x", "importer": "/src/e.js", "module": "/src/e.js"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := logger.CollectErrorEntriesExported(tt.err)

			assert.Len(t, entries, len(tt.wantMessages), "entry count mismatch")
			for i, wantMsg := range tt.wantMessages {
				assert.Equal(t, wantMsg, entries[i].Message, "message mismatch at index %d", i)
				assert.Equal(t, tt.wantMetadata[i], entries[i].Metadata, "metadata mismatch at index %d", i)
			}
		})
	}
}

func TestCollectErrorEntries_Nil(t *testing.T) {
	assert.Empty(t, logger.CollectErrorEntriesExported(nil))
}

func TestFormatErrorEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{
			name:    "single entry",
			entries: []logger.ErrorEntry{{Message: "single error"}},
			want:    "Error: single error",
		},
		{
			name:    "three entries",
			entries: []logger.ErrorEntry{{Message: "first"}, {Message: "second"}, {Message: "third"}},
			want:    "Error: first\n\n  Caused by:\n    → second\n    → third",
		},
		{
			name: "metadata sorted alphabetically",
			entries: []logger.ErrorEntry{{
				Message:  "error",
				Metadata: map[string]any{"zebra": "z", "alpha": "a", "mike": 3},
			}},
			want: "Error: error\n       alpha: a\n       mike: 3\n       zebra: z",
		},
		{
			name: "metadata on cause",
			entries: []logger.ErrorEntry{
				{Message: "main"},
				{Message: "cause", Metadata: map[string]any{"url": "https://x"}},
			},
			want: "Error: main\n\n  Caused by:\n    → cause\n      url: https://x",
		},
		{
			name:    "multiline messages",
			entries: []logger.ErrorEntry{{Message: "a\nb"}, {Message: "c\nd"}},
			want:    "Error: a\n       b\n\n  Caused by:\n    → c\n      d",
		},
		{
			name:    "empty",
			entries: nil,
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntriesExported(tt.entries))
		})
	}
}
