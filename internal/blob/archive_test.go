package blob

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carboncore/pkg/domain"
)

func sampleResult(run string, realization int, stock float64) domain.RealizationResult {
	return domain.RealizationResult{
		RunID:       run,
		Realization: realization,
		Dates:       []int{0, 10},
		Compartments: map[domain.CompartmentKind]domain.Series{
			domain.CompartmentWoodProducts: {Values: []float64{stock, stock / 2}, Integrated: stock / 4},
		},
		UnitCount: 3,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestArchive_SaveListOverwrite(t *testing.T) {
	ctx := context.Background()
	a := NewArchive(NewMemory())

	require.NoError(t, a.Save(ctx, sampleResult("r1", 1, 2)))
	require.NoError(t, a.Save(ctx, sampleResult("r1", 0, 1)))
	require.NoError(t, a.Save(ctx, sampleResult("r2", 0, 9)))
	require.NoError(t, a.Save(ctx, sampleResult("r1", 1, 4)))

	got, err := a.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Realization)
	assert.Equal(t, 1, got[1].Realization)
	assert.Equal(t, []float64{4, 2}, got[1].Compartments[domain.CompartmentWoodProducts].Values)
	assert.True(t, got[1].CreatedAt.Equal(sampleResult("r1", 1, 4).CreatedAt))

	info, err := a.Store().Head(ctx, ResultKey("r1", 1))
	require.NoError(t, err)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, "1", info.Metadata["realization"])
}

func TestArchive_Filesystem(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	a := NewArchive(store)
	require.NoError(t, a.Save(ctx, sampleResult("run", 3, 1)))
	require.NoError(t, a.Save(ctx, sampleResult("run", 3, 5)))
	got, err := a.List(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5.0, got[0].Compartments[domain.CompartmentWoodProducts].Values[0])
}

func TestArchive_Errors(t *testing.T) {
	ctx := context.Background()
	a := NewArchive(NewMemory())
	require.Error(t, a.Save(ctx, sampleResult("", 0, 1)))

	_, err := a.Store().Put(ctx, ResultKey("bad", 0), bytes.NewReader([]byte("{")), PutOptions{})
	require.NoError(t, err)
	_, err = a.List(ctx, "bad")
	require.Error(t, err)

	got, err := a.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "runs/abc/realization-00042.json", ResultKey("abc", 42))
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	t.Setenv("CARBONCORE_BLOB_DRIVER", "memory")
	s, err := Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	t.Setenv("CARBONCORE_BLOB_DRIVER", "")
	t.Setenv("CARBONCORE_BLOB_FS_ROOT", t.TempDir())
	s, err = Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	t.Setenv("CARBONCORE_BLOB_DRIVER", "tape")
	_, err = Open(ctx)
	require.Error(t, err)

	t.Setenv("CARBONCORE_BLOB_DRIVER", "s3")
	t.Setenv("CARBONCORE_BLOB_S3_BUCKET", "")
	_, err = Open(ctx)
	require.Error(t, err)
}
