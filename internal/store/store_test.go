package store

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classcal/internal/model"
)

func sampleDefinitions() []model.EventDefinition {
	return []model.EventDefinition{
		{
			Title:          "Linear Algebra",
			Identifier:     "MATH-201",
			Location:       "Hall B",
			InstructorName: "Dr. Ito",
			Weekdays:       []string{"Monday", "Wednesday"},
			ValidFrom:      "2025-09-01",
			ValidUntil:     "2025-11-29",
			StartTime:      "09:00",
			EndTime:        "10:30",
			ExceptionDates: []string{"2025-09-29"},
		},
		{
			Title:      "Lab",
			Weekdays:   []string{"Friday"},
			ValidFrom:  "2025-09-05",
			ValidUntil: "2025-10-31",
			StartTime:  "13:00",
			EndTime:    "15:00",
		},
	}
}

func TestStoreDriversRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	configs := map[string]Config{
		"file":   {Driver: "file", Path: filepath.Join(dir, "defs", "events.json")},
		"sqlite": {Driver: "sqlite", Path: filepath.Join(dir, "db", "classcal.db")},
		"memory": {Driver: "memory"},
	}
	for name, cfg := range configs {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			st, err := Open(cfg)
			require.NoError(t, err)
			defer st.Close()

			empty, err := st.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)
			assert.NotNil(t, empty)

			want := sampleDefinitions()
			require.NoError(t, st.Save(ctx, want))

			got, err := st.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, want[0], got[0])
			assert.Equal(t, "Lab", got[1].Title)
			assert.Equal(t, []string{}, got[1].ExceptionDates)

			// Overwrite, not append.
			require.NoError(t, st.Save(ctx, want[:1]))
			got, err = st.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestFileStoreWritesPrivateFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.json")
	st, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), sampleDefinitions()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"instructorName": "Dr. Ito"`)
	assert.Contains(t, string(data), `"validFrom": "2025-09-01"`)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	st, err := Open(Config{Driver: "file", Path: path})
	require.NoError(t, err)
	_, err = st.Load(context.Background())
	assert.Error(t, err)
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := NewMemory(sampleDefinitions())

	got, err := st.Load(ctx)
	require.NoError(t, err)
	got[0].Weekdays[0] = "Sunday"

	again, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Monday", again[0].Weekdays[0])

	require.NoError(t, st.Close())
	_, err = st.Load(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()
	_, err := Open(Config{Driver: "redis"})
	assert.Error(t, err)
	_, err = Open(Config{Driver: "file"})
	assert.Error(t, err)
	_, err = Open(Config{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestDecodeDefinitions(t *testing.T) {
	t.Parallel()
	defs, err := DecodeDefinitions([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, defs)

	defs, err = DecodeDefinitions([]byte(`null`))
	require.NoError(t, err)
	assert.NotNil(t, defs)

	defs, err = DecodeDefinitions([]byte(`[{"title":"x","weekdays":["Monday"]}]`))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{}, defs[0].ExceptionDates)
}

func TestFileStoreWatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "events.json")
	st, err := Open(Config{Path: path})
	require.NoError(t, err)

	w, ok := st.(Watcher)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- w.Watch(ctx, func() { calls.Add(1) })
	}()
	<-started

	// The watcher starts asynchronously; keep writing (slower than the
	// debounce) until it reports a change.
	require.Eventually(t, func() bool {
		_ = st.Save(context.Background(), sampleDefinitions())
		return calls.Load() > 0
	}, 5*time.Second, 400*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
