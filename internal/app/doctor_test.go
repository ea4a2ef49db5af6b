package app_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/knit/internal/core/domain"
	"go.trai.ch/knit/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestApp_Doctor(t *testing.T) {
	store := mocks.NewMockCacheStore(gomock.NewController(t))
	f := newFixture(t, nil, store)

	cacheDir := t.TempDir()
	store.EXPECT().Dir().Return(cacheDir).AnyTimes()
	f.optimizer.EXPECT().Check(gomock.Any()).Return(nil)

	var out bytes.Buffer
	require.NoError(t, f.app.Doctor(t.Context(), &out))

	text := out.String()
	assert.Contains(t, text, "module cache")
	assert.Contains(t, text, cacheDir)
	assert.Contains(t, text, "optimizer")
	assert.Contains(t, text, "found (disabled in config)")
	assert.Contains(t, text, "node")

	left, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestApp_Doctor_OptimizerMissing(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		wantErr bool
	}{
		{name: "enabled", enabled: true, wantErr: true},
		{name: "disabled", enabled: false, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			f.config.OptimizerEnabled = tt.enabled
			f.optimizer.EXPECT().Check(gomock.Any()).Return(
				domain.NewError(domain.ErrOptimizerUnavailable, nil, "command", "terser"))

			var out bytes.Buffer
			err := f.app.Doctor(t.Context(), &out)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrDoctorFailed)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, out.String(), "optimizer")
			assert.Contains(t, out.String(), "disabled")
		})
	}
}

func TestApp_Doctor_CacheNotWritable(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can write to read-only directories")
	}
	store := mocks.NewMockCacheStore(gomock.NewController(t))
	f := newFixture(t, nil, store)

	cacheDir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0o500))
	store.EXPECT().Dir().Return(cacheDir).AnyTimes()
	f.optimizer.EXPECT().Check(gomock.Any()).Return(nil)

	var out bytes.Buffer
	err := f.app.Doctor(t.Context(), &out)
	require.ErrorIs(t, err, domain.ErrDoctorFailed)
	assert.Contains(t, out.String(), "is not writable")
}
