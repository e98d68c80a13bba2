package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialjoin/internal/rowset"
)

func writeInputs(t *testing.T, tt, ct string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "tt.csv")
	b := filepath.Join(dir, "ct.csv")
	require.NoError(t, os.WriteFile(a, []byte(tt), 0644))
	require.NoError(t, os.WriteFile(b, []byte(ct), 0644))
	return a, b
}

func countingLoader(calls *int32) LoadFunc {
	return func(ctx context.Context, a, b string) (Sources, error) {
		atomic.AddInt32(calls, 1)
		return Sources{
			TrialTrove:     rowset.FromRecords([]string{"path"}, [][]string{{a}}),
			ClinicalTrials: rowset.FromRecords([]string{"path"}, [][]string{{b}}),
		}, nil
	}
}

func TestGetCachesByContent(t *testing.T) {
	a, b := writeInputs(t, "Trial ID\n1\n", "NCT id\nNCT1\n")
	var calls int32
	c := New(countingLoader(&calls), nil)
	ctx := context.Background()

	s1, hit, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotEmpty(t, s1.Key)

	s2, hit, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, s1.Key, s2.Key)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	require.NoError(t, os.WriteFile(a, []byte("Trial ID\n2\n"), 0644))
	s3, hit, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, hit, "changed content reloads")
	assert.NotEqual(t, s1.Key, s3.Key)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidate(t *testing.T) {
	a, b := writeInputs(t, "x\n", "y\n")
	var calls int32
	c := New(countingLoader(&calls), nil)
	ctx := context.Background()

	_, _, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	c.Invalidate()
	_, hit, err := c.Get(ctx, a, b)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetConcurrent(t *testing.T) {
	a, b := writeInputs(t, "x\n", "y\n")
	var calls int32
	c := New(countingLoader(&calls), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Get(context.Background(), a, b)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// concurrent misses are coalesced but a late caller may still start a
	// second load after the first finished and before it saw the entry
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(16))
	_, hit, err := c.Get(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestGetLoadError(t *testing.T) {
	a, b := writeInputs(t, "x\n", "y\n")
	boom := errors.New("boom")
	c := New(func(context.Context, string, string) (Sources, error) { return Sources{}, boom }, nil)
	_, _, err := c.Get(context.Background(), a, b)
	assert.ErrorIs(t, err, boom)
}

func TestKeyMissingFile(t *testing.T) {
	_, err := Key(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestKeyOrderMatters(t *testing.T) {
	a, b := writeInputs(t, "x\n", "y\n")
	k1, err := Key(a, b)
	require.NoError(t, err)
	k2, err := Key(b, a)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}
