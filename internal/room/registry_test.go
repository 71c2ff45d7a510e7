package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryRegistry(t *testing.T) {
	t.Run("mute and unmute", func(t *testing.T) {
		r := NewMemoryRegistry()

		r.Mute("sess-1", "user-1")
		assert.True(t, r.IsMuted("sess-1", "user-1"))
		assert.False(t, r.IsMuted("sess-1", "user-2"))
		assert.False(t, r.IsMuted("sess-2", "user-1"))

		r.Unmute("sess-1", "user-1")
		assert.False(t, r.IsMuted("sess-1", "user-1"))
	})

	t.Run("mute is idempotent", func(t *testing.T) {
		r := NewMemoryRegistry()

		r.Mute("sess-1", "user-1")
		r.Mute("sess-1", "user-1")
		assert.True(t, r.IsMuted("sess-1", "user-1"))
		assert.Equal(t, []string{"user-1"}, r.MutedUsers("sess-1"))

		r.Unmute("sess-1", "user-1")
		assert.False(t, r.IsMuted("sess-1", "user-1"))
	})

	t.Run("unmute unknown user is a no-op", func(t *testing.T) {
		r := NewMemoryRegistry()
		r.Unmute("sess-1", "ghost")
		assert.Empty(t, r.MutedUsers("sess-1"))
	})

	t.Run("clear drops the session's state", func(t *testing.T) {
		r := NewMemoryRegistry()
		r.Mute("sess-1", "user-1")
		r.Mute("sess-1", "user-2")

		r.Clear("sess-1")
		assert.False(t, r.IsMuted("sess-1", "user-1"))
		assert.Empty(t, r.MutedUsers("sess-1"))
	})
}
