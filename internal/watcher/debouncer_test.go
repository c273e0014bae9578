package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect waits for one batch from the debouncer.
func collect(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestDebouncer_CoalescesSamePath(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpModify})
	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpModify})
	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpModify})

	batch := collect(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateThenModifyStaysCreate(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpCreate})
	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpModify})

	batch := collect(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpCreate})
	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpDelete})
	d.Add(FileEvent{Path: "/repo/b.jar", Operation: OpCreate})

	batch := collect(t, d)
	require.Len(t, batch, 1, "a.jar cancelled itself out")
	assert.Equal(t, "/repo/b.jar", batch[0].Path)
}

func TestDebouncer_DeleteThenCreateBecomesModify(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpDelete})
	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpCreate})

	batch := collect(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_StopClosesOutput(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	d.Stop() // idempotent

	_, open := <-d.Output()
	assert.False(t, open)

	// Adds after stop are ignored.
	d.Add(FileEvent{Path: "/repo/a.jar", Operation: OpCreate})
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
}
