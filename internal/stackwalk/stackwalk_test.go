package stackwalk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/core"
	"github.com/hugo-lorenzo-mato/crashguard/internal/testutil"
)

const memBase = 0x5000

// panickingMemory faults on every read at or above Limit.
type panickingMemory struct {
	*testutil.ByteMemory
	Limit uintptr
}

func (m panickingMemory) Read(addr uintptr, n int) ([]byte, error) {
	if addr >= m.Limit {
		panic("simulated access violation")
	}
	return m.ByteMemory.Read(addr, n)
}

func intType() *core.TypeNode {
	return &core.TypeNode{Name: "int", Tag: core.TagInt, Size: 8}
}

func newProvider() *testutil.FakeProvider {
	p := testutil.NewFakeProvider()
	mem := testutil.NewByteMemory(memBase, 64)
	mem.PutUint(memBase, 8, 0x2A)
	p.Mem = mem
	p.Frames[0x100] = testutil.FakeFrame{
		Function: "main.crash", Entry: 0xF0, File: "main.go", Line: 12,
		Vars: []core.Variable{{Name: "n", Kind: core.VarParam, Type: intType(), Addr: memBase}},
	}
	p.Frames[0x200] = testutil.FakeFrame{Function: "main.run", Entry: 0x1F0}
	p.Frames[0x300] = testutil.FakeFrame{Function: "main.main", Entry: 0x2F0, File: "main.go", Line: 40}
	return p
}

func TestWalk_ResolvesFrames(t *testing.T) {
	p := newProvider()
	ctx := &core.Context{PCs: []uintptr{0x100, 0x200, 0x400, 0x300}}

	frames := New(p, nil).Walk(ctx, 0, 10)
	require.Len(t, frames, 4)

	assert.Equal(t, "main.crash", frames[0].Function)
	assert.Equal(t, uintptr(0x10), frames[0].Offset)
	assert.Equal(t, "main.go", frames[0].File)
	assert.Equal(t, 12, frames[0].Line)
	require.Len(t, frames[0].Locals, 1)
	assert.Equal(t, "Parameter 'n' int = 0x2A", frames[0].Locals[0].Text)

	assert.Equal(t, "main.run", frames[1].Function)
	assert.False(t, frames[1].HasLine(), "frames without line info still appear")

	assert.False(t, frames[2].HasSymbol(), "unresolvable frames still count")
	assert.Equal(t, uintptr(0x400), frames[2].PC)

	assert.Equal(t, "main.main", frames[3].Function)
}

func TestWalk_SkipAndDepth(t *testing.T) {
	p := newProvider()
	ctx := &core.Context{PCs: []uintptr{0x100, 0x200, 0x300}}
	w := New(p, nil)

	frames := w.Walk(ctx, 1, 10)
	require.Len(t, frames, 2)
	assert.Equal(t, "main.run", frames[0].Function)

	frames = w.Walk(ctx, 0, 2)
	require.Len(t, frames, 2)
	assert.Equal(t, "main.run", frames[1].Function)

	frames = w.Walk(ctx, 1, 1)
	require.Len(t, frames, 1)
	assert.Equal(t, "main.run", frames[0].Function)

	assert.Empty(t, w.Walk(ctx, 5, 10))
	assert.Len(t, w.Walk(ctx, 0, 0), 3, "zero depth uses the default bound")
}

func TestWalk_StopsAtZeroAnchor(t *testing.T) {
	p := newProvider()
	ctx := &core.Context{PCs: []uintptr{0x100, 0, 0x300}}

	frames := New(p, nil).Walk(ctx, 0, 10)
	require.Len(t, frames, 1)
	assert.Equal(t, "main.crash", frames[0].Function)
}

func TestWalk_EmptyContext(t *testing.T) {
	w := New(newProvider(), nil)
	assert.Empty(t, w.Walk(nil, 0, 10))
	assert.Empty(t, w.Walk(&core.Context{}, 0, 10))
}

func TestWalk_FaultingLocalIsSkipped(t *testing.T) {
	p := newProvider()
	mem := testutil.NewByteMemory(memBase, 64)
	mem.PutUint(memBase, 8, 7)
	p.Mem = panickingMemory{ByteMemory: mem, Limit: memBase + 32}
	p.Frames[0x100] = testutil.FakeFrame{
		Function: "main.crash", Entry: 0xF0,
		Vars: []core.Variable{
			{Name: "bad", Kind: core.VarLocal, Type: intType(), Addr: memBase + 40},
			{Name: "good", Kind: core.VarLocal, Type: intType(), Addr: memBase},
		},
	}
	ctx := &core.Context{PCs: []uintptr{0x100, 0x300}}

	frames := New(p, nil).Walk(ctx, 0, 10)
	require.Len(t, frames, 2, "the walk continues past the faulting local")
	require.Len(t, frames[0].Locals, 1)
	assert.Equal(t, "good", frames[0].Locals[0].Name)
	assert.Equal(t, "Local 'good' int = 0x7", frames[0].Locals[0].Text)
}

func TestWalk_LocalsErrorDegrades(t *testing.T) {
	p := newProvider()
	p.Frames[0x100] = testutil.FakeFrame{Function: "main.crash", Entry: 0xF0, VarsErr: errors.New("no scope")}
	ctx := &core.Context{PCs: []uintptr{0x100}}

	frames := New(p, nil).Walk(ctx, 0, 10)
	require.Len(t, frames, 1)
	assert.Equal(t, "main.crash", frames[0].Function)
	assert.Empty(t, frames[0].Locals)
}

func TestFrames_StopsWhenConsumerStops(t *testing.T) {
	ctx := &core.Context{PCs: []uintptr{0x100, 0x200, 0x300}}
	n := 0
	for range New(newProvider(), nil).Frames(ctx, 0, 10) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}
