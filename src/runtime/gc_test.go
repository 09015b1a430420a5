package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airtrack/luna-sub000/src/conf"
)

type closer struct{ closed *bool }

func (c closer) Destroy() { *c.closed = true }

func quietState() *State {
	cfg := conf.Default()
	cfg.GC.Disabled = true
	return NewState(context.Background(), cfg)
}

func TestCollect_FreesUnreachable(t *testing.T) {
	t.Parallel()
	s := quietState()
	s.Collect(conf.GCGENERATIONS - 1)
	baseline := s.Heap.Total()

	kept := s.NewTable()
	require.NoError(t, s.SetGlobal("kept", kept))
	require.NoError(t, kept.Set(1.0, s.NewString("inside")))
	for i := 0; i < 10; i++ {
		s.NewTable()
	}
	s.NewString("garbage")

	s.Collect(0)
	assert.Equal(t, 0, s.Heap.Size(0))
	assert.Equal(t, 1, s.Heap.Collection[0])
	assert.Equal(t, baseline+3, s.Heap.Total())
	assert.Equal(t, uint8(1), kept.gen)
	assert.Equal(t, "inside", ToString(kept.Get(1.0)))

	_, interned := s.Strings.strings["garbage"]
	assert.False(t, interned)
}

func TestCollect_Promotion(t *testing.T) {
	t.Parallel()
	s := quietState()
	tbl := s.NewTable()
	require.NoError(t, s.SetGlobal("t", tbl))

	for gen := 0; gen < conf.GCGENERATIONS; gen++ {
		s.Collect(gen)
	}
	assert.Equal(t, uint8(conf.GCGENERATIONS-1), tbl.gen)

	// the oldest generation keeps its survivors
	s.Collect(conf.GCGENERATIONS - 1)
	assert.Equal(t, uint8(conf.GCGENERATIONS-1), tbl.gen)
	assert.Same(t, tbl, s.GetGlobal("t"))
}

func TestCollect_DestroysUserData(t *testing.T) {
	t.Parallel()
	s := quietState()
	closed := false
	s.NewUserData(closer{closed: &closed}, nil)
	s.Collect(0)
	assert.True(t, closed)
}

func TestCollect_KeepsStackValues(t *testing.T) {
	t.Parallel()
	s := quietState()
	tbl := s.NewTable()
	s.PushTable(tbl)
	s.Collect(0)
	assert.Equal(t, uint8(1), tbl.gen)
	got, ok := s.GetTable(-1)
	require.True(t, ok)
	assert.Same(t, tbl, got)
}

func TestHeap_Pending(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		desc     string
		cfg      conf.GCConfig
		sizes    [conf.GCGENERATIONS]int
		expected int
	}{
		{desc: "nothing due", cfg: conf.GCConfig{Gen0Threshold: 4, Gen1Threshold: 4}, sizes: [conf.GCGENERATIONS]int{3, 10, 0}, expected: -1},
		{desc: "minor", cfg: conf.GCConfig{Gen0Threshold: 4, Gen1Threshold: 4}, sizes: [conf.GCGENERATIONS]int{4, 3, 0}, expected: 0},
		{desc: "middle", cfg: conf.GCConfig{Gen0Threshold: 4, Gen1Threshold: 4}, sizes: [conf.GCGENERATIONS]int{4, 4, 0}, expected: 1},
		{desc: "full", cfg: conf.GCConfig{Gen0Threshold: 4, Gen1Threshold: 4}, sizes: [conf.GCGENERATIONS]int{4, 4, 16}, expected: 2},
		{desc: "disabled", cfg: conf.GCConfig{Disabled: true, Gen0Threshold: 4, Gen1Threshold: 4}, sizes: [conf.GCGENERATIONS]int{40, 40, 40}, expected: -1},
	}

	for _, tc := range testcases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			heap := newHeap(tc.cfg)
			for gen, size := range tc.sizes {
				for i := 0; i < size; i++ {
					heap.gens[gen] = append(heap.gens[gen], newTable(0, 0))
				}
			}
			assert.Equal(t, tc.expected, heap.pending())
		})
	}
}
