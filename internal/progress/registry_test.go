package progress

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, ansi bool) (*Registry, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	reg := New(Options{
		Output:       &buf,
		Width:        100,
		TickInterval: time.Hour,
		ANSI:         &ansi,
	})
	t.Cleanup(func() { reg.Close() })
	return reg, &buf
}

func TestTaskIDsFollowCreationOrder(t *testing.T) {
	reg, _ := newTestRegistry(t, false)

	for i := 0; i < 5; i++ {
		h, err := reg.NewTask(fmt.Sprintf("task-%d", i))
		require.NoError(t, err)
		assert.Equal(t, i, h.ID())
	}

	require.NoError(t, reg.Close())

	require.Len(t, reg.b.tasks, 5)
	for i, task := range reg.b.tasks {
		assert.Equal(t, fmt.Sprintf("task-%d", i), task.name)
	}
}

func TestConcurrentNewTaskKeepsIDEqualToIndex(t *testing.T) {
	reg, _ := newTestRegistry(t, false)

	const n = 32
	var (
		mu    sync.Mutex
		names = make(map[int]string)
		wg    sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("worker-%d", i)
			h, err := reg.NewTask(name)
			if err != nil {
				t.Errorf("NewTask: %v", err)
				return
			}
			mu.Lock()
			names[h.ID()] = name
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	require.NoError(t, reg.Close())

	ids := make([]int, 0, n)
	for id := range names {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for i, id := range ids {
		require.Equal(t, i, id)
	}

	require.Len(t, reg.b.tasks, n)
	for id, name := range names {
		assert.Equal(t, name, reg.b.tasks[id].name, "task %d", id)
	}
}

func TestHandleAfterCloseReturnsBrokerGone(t *testing.T) {
	reg, _ := newTestRegistry(t, false)

	h, err := reg.NewTask("unfinished")
	require.NoError(t, err)
	_, err = reg.NewTask("also unfinished")
	require.NoError(t, err)

	require.NoError(t, reg.Close())

	assert.ErrorIs(t, h.SetSubtask("late"), ErrBrokerGone)
	assert.ErrorIs(t, h.SetSubtaskWithPercentage("late", 0.5), ErrBrokerGone)
	assert.ErrorIs(t, h.SetPercentage(0.5), ErrBrokerGone)
	assert.ErrorIs(t, h.Finish(), ErrBrokerGone)

	_, err = reg.NewTask("too late")
	assert.ErrorIs(t, err, ErrBrokerGone)
}

func TestCloseIsIdempotent(t *testing.T) {
	reg, _ := newTestRegistry(t, false)

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())
}

func TestSetPercentageSkipsFullRender(t *testing.T) {
	reg, buf := newTestRegistry(t, false)

	h, err := reg.NewTask("download")
	require.NoError(t, err)
	for _, p := range []float64{0.1, 0.5, 1.7} {
		require.NoError(t, h.SetPercentage(p))
	}
	require.NoError(t, reg.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1, "only NewTask should have rendered")
	assert.Equal(t, 1.7, reg.b.tasks[0].percent, "percentage is stored unclamped")
}

func TestSubtaskPercentageAndFinish(t *testing.T) {
	reg, buf := newTestRegistry(t, false)

	h, err := reg.NewTask("Compilation")
	require.NoError(t, err)
	require.NoError(t, h.SetSubtaskWithPercentage("[10/20] Building", 0.5))
	require.NoError(t, h.SetSubtask("linking"))
	require.NoError(t, reg.Close())

	task := reg.b.tasks[0]
	assert.Equal(t, "linking", task.subtask)
	assert.Equal(t, 0.0, task.percent, "a subtask without percentage restarts the bar")

	out := buf.String()
	assert.Contains(t, out, "Compilation - [10/20] Building")
	assert.Contains(t, out, "Compilation - linking")
}

func TestFinishClearsSubtask(t *testing.T) {
	reg, _ := newTestRegistry(t, false)

	h, err := reg.NewTask("Env Vars")
	require.NoError(t, err)
	require.NoError(t, h.SetSubtask("configuring shell"))
	require.NoError(t, h.Finish())
	require.NoError(t, reg.Close())

	task := reg.b.tasks[0]
	assert.True(t, task.finished)
	assert.Empty(t, task.subtask)
	assert.Equal(t, 1.0, task.percent)
}

func TestRenderRenumbersRows(t *testing.T) {
	reg, buf := newTestRegistry(t, true)

	_, err := reg.NewTask("first")
	require.NoError(t, err)
	_, err = reg.NewTask("second")
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	out := buf.String()
	assert.Contains(t, out, "[1/1]")
	assert.Contains(t, out, "[1/2]")
	assert.Contains(t, out, "[2/2]")
	assert.Contains(t, out, "\x1b[1A", "second render moves the cursor over the first block")
}

func TestShutdownFlushesPendingPercentage(t *testing.T) {
	reg, buf := newTestRegistry(t, true)

	h, err := reg.NewTask("unxz")
	require.NoError(t, err)
	require.NoError(t, h.SetPercentage(0.5))
	require.NoError(t, reg.Close())

	assert.Equal(t, 2, strings.Count(buf.String(), "\x1b[2K"), "one render for NewTask, one flush on shutdown")
}

func TestUnknownTaskIsIgnored(t *testing.T) {
	reg, _ := newTestRegistry(t, false)

	_, err := reg.NewTask("only")
	require.NoError(t, err)

	stray := &Handle{id: 7, box: reg.box}
	assert.NoError(t, stray.SetSubtask("nobody home"))
	assert.NoError(t, stray.Finish())
	require.NoError(t, reg.Close())

	require.Len(t, reg.b.tasks, 1)
	assert.Empty(t, reg.b.tasks[0].subtask)
}
