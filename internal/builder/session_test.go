package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestManager_CreateGetRemove(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, nil)
	s := m.Create(NewDraft(), "")
	require.NotNil(t, m.Get(s.ID))
	assert.Equal(t, 1, m.Len())

	m.Remove(s.ID)
	assert.Nil(t, m.Get(s.ID))
	assert.Nil(t, m.Get("missing"))
}

func TestManager_IdleSessionsExpire(t *testing.T) {
	m := NewManager(time.Hour, time.Millisecond, nil)
	s := m.Create(NewDraft(), "t1")
	time.Sleep(5 * time.Millisecond)
	assert.Nil(t, m.Get(s.ID))

	m.Create(NewDraft(), "")
	m.Create(NewDraft(), "")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, m.Cleanup())
	assert.Equal(t, 0, m.Len())
}

func TestSession_Do(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, nil)
	s := m.Create(NewDraft(), "")
	before := s.Snapshot().LastActiveAt
	time.Sleep(time.Millisecond)

	err := s.Do(func(d *Draft) error {
		d.AddGroup()
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, s.Template().Groups, 2)
	assert.True(t, s.Snapshot().LastActiveAt.After(before))
}

func TestSession_SnapshotAndSaved(t *testing.T) {
	m := NewManager(time.Hour, time.Hour, nil)
	s := m.Create(NewDraft(), "")

	v := s.Snapshot()
	assert.Equal(t, s.ID, v.ID)
	assert.Empty(t, v.TemplateID)
	require.Len(t, v.Problems, 2)
	assert.Equal(t, "title", v.Problems[0].Path)
	assert.Equal(t, "groups[0].title", v.Problems[1].Path)

	require.NoError(t, s.Do(func(d *Draft) error {
		return d.UpdateField(0, 0, FieldPatch{Label: ptr("Victim Count")})
	}))
	saved := s.Template()
	saved.ID = "tpl-1"
	saved.Title = "Homicide"
	saved.Groups[0].Title = "Facts"
	s.Saved(saved)

	v = s.Snapshot()
	assert.Equal(t, "tpl-1", v.TemplateID)
	assert.Equal(t, "tpl-1", s.TemplateID())
	assert.Empty(t, v.Problems)

	// Stored names no longer follow the label.
	require.NoError(t, s.Do(func(d *Draft) error {
		return d.UpdateField(0, 0, FieldPatch{Label: ptr("Number of victims")})
	}))
	assert.Equal(t, "victim_count", s.Template().Groups[0].Fields[0].FieldName)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(time.Hour, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
