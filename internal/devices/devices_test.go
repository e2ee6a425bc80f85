package devices

import (
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
)

func TestIsEventNode(t *testing.T) {
	assert.True(t, isEventNode("event3"))
	assert.True(t, isEventNode("event27"))
	assert.False(t, isEventNode("by-id"))
	assert.False(t, isEventNode("js0"))
}

func TestHandleFSEventIgnoresNonEventNodes(t *testing.T) {
	m := &Manager{devices: make(map[string]*device)}
	err := m.HandleFSEvent(fsnotify.Event{Name: "/dev/input/by-id/usb-mouse", Op: fsnotify.Create})
	assert.NoError(t, err)
	assert.Empty(t, m.devices)
}

func TestHandleFSEventRemoveOnUntrackedPathIsNoop(t *testing.T) {
	m := &Manager{devices: make(map[string]*device)}
	err := m.HandleFSEvent(fsnotify.Event{Name: "/dev/input/event9", Op: fsnotify.Remove})
	assert.NoError(t, err)
	assert.Empty(t, m.devices)
}
