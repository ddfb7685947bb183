package controller

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failures map[string]error

func (f failures) record(name string, err error) { f[name] = err }

func TestMailbox_RunsQueuedCallsInOrder(t *testing.T) {
	var m mailbox
	var order []string
	failed := failures{}

	deferred, err := m.run(job{name: "outer", fn: func() error {
		order = append(order, "outer")
		for _, name := range []string{"first", "second"} {
			name := name
			queued, qerr := m.run(job{name: name, fn: func() error {
				order = append(order, name)
				return errors.New(name + " failed")
			}}, failed.record)
			assert.True(t, queued)
			assert.NoError(t, qerr)
		}
		return nil
	}}, failed.record)

	require.NoError(t, err)
	assert.False(t, deferred)
	assert.Equal(t, []string{"outer", "first", "second"}, order)
	assert.Len(t, failed, 2)
	assert.False(t, m.busy)
}

func TestMailbox_PanicReleasesMailbox(t *testing.T) {
	var m mailbox
	failed := failures{}

	assert.PanicsWithValue(t, "boom", func() {
		m.run(job{name: "outer", fn: func() error {
			m.run(job{name: "queued", fn: func() error { return nil }}, failed.record)
			panic("boom")
		}}, failed.record)
	})

	assert.ErrorIs(t, failed["queued"], errMailboxPanicked)
	assert.False(t, m.busy)
	assert.Empty(t, m.pending)

	ran := false
	deferred, err := m.run(job{name: "next", fn: func() error {
		ran = true
		return nil
	}}, failed.record)
	require.NoError(t, err)
	assert.False(t, deferred, "later calls run immediately")
	assert.True(t, ran)
}

func TestMailbox_PanicInQueuedCall(t *testing.T) {
	var m mailbox
	failed := failures{}

	assert.Panics(t, func() {
		m.run(job{name: "outer", fn: func() error {
			m.run(job{name: "bad", fn: func() error { panic("queued boom") }}, failed.record)
			m.run(job{name: "after", fn: func() error { return nil }}, failed.record)
			return nil
		}}, failed.record)
	})

	assert.ErrorIs(t, failed["after"], errMailboxPanicked)
	assert.NotContains(t, failed, "bad")
	assert.False(t, m.busy)
}
