package limits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	l := Default()
	assert.Equal(t, 10000, l.MaxCommands)
	assert.Equal(t, 10000, l.MaxLoopIterations)
	assert.Equal(t, 100, l.MaxFunctionDepth)
}

func TestBuilderStyle(t *testing.T) {
	l := Default().WithMaxCommands(5).WithMaxLoopIterations(3).WithMaxFunctionDepth(2)
	assert.Equal(t, 5, l.MaxCommands)
	assert.Equal(t, 3, l.MaxLoopIterations)
	assert.Equal(t, 2, l.MaxFunctionDepth)
}

func TestCommandCounter(t *testing.T) {
	l := Limits{MaxCommands: 5}
	var c Counters
	for i := 0; i < 5; i++ {
		require.NoError(t, c.TickCommand(l))
	}
	err := c.TickCommand(l)
	require.Error(t, err)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, KindCommands, le.Kind)
	assert.Contains(t, err.Error(), "maximum command count exceeded (5)")
}

func TestLoopCounter(t *testing.T) {
	l := Limits{MaxLoopIterations: 3}
	var c Counters
	for i := 0; i < 3; i++ {
		require.NoError(t, c.TickLoop(l))
	}
	err := c.TickLoop(l)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum loop iterations exceeded (3)")
}

func TestFunctionDepth(t *testing.T) {
	l := Limits{MaxFunctionDepth: 2}
	var c Counters
	require.NoError(t, c.PushFunction(l))
	require.NoError(t, c.PushFunction(l))
	require.Error(t, c.PushFunction(l))

	c.PopFunction()
	require.NoError(t, c.PushFunction(l))
}

func TestZeroMeansUnbounded(t *testing.T) {
	var l Limits
	var c Counters
	for i := 0; i < 100000; i++ {
		require.NoError(t, c.TickCommand(l))
		require.NoError(t, c.TickLoop(l))
	}
}

func TestReset(t *testing.T) {
	var c Counters
	c.Commands, c.LoopIterations, c.FunctionDepth = 7, 8, 9
	c.Reset()
	assert.Zero(t, c.Commands)
	assert.Zero(t, c.LoopIterations)
	assert.Zero(t, c.FunctionDepth)
}
