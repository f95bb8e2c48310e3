package server

import (
	"context"
	"testing"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReact(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(1, "alice")
	repo.addUser(2, "bob")
	repo.addUser(3, "carol")
	repo.addChat(7, 1, 2)

	cs := newTestChatServer(t, repo, nil)
	ids := sendMessages(t, cs, 7, 1, 1)

	alice := newTestClient(cs, "alice", 1)
	cs.router.Join(alice, 7)

	t.Run("duplicate reaction is stored and broadcast once", func(t *testing.T) {
		added, err := cs.React(context.Background(), ids[0], 2, "👍")
		require.NoError(t, err)
		assert.True(t, added)

		ev := expectEvent(t, alice, EventReaction)
		assert.Equal(t, types.ReactionEvent{MessageId: ids[0], UserId: 2, Emoji: "👍"}, ev.Data)

		added, err = cs.React(context.Background(), ids[0], 2, "👍")
		require.NoError(t, err)
		assert.False(t, added)
		expectNoMessage(t, alice)
		assert.Equal(t, 1, repo.reactionCount())
	})

	t.Run("distinct emoji is a new reaction", func(t *testing.T) {
		added, err := cs.React(context.Background(), ids[0], 2, "🎉")
		require.NoError(t, err)
		assert.True(t, added)
		expectEvent(t, alice, EventReaction)
		assert.Equal(t, 2, repo.reactionCount())
	})

	tests := []struct {
		name      string
		messageId int
		userId    int
		emoji     string
		want      chaterr.Kind
	}{
		{"missing emoji", ids[0], 2, "  ", chaterr.KindValidation},
		{"missing message", 0, 2, "👍", chaterr.KindValidation},
		{"oversized emoji", ids[0], 2, "this is not an emoji at all, it is far too long", chaterr.KindValidation},
		{"unknown message", 99999, 2, "👍", chaterr.KindNotFound},
		{"non participant", ids[0], 3, "👍", chaterr.KindAuthorization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cs.React(context.Background(), tt.messageId, tt.userId, tt.emoji)
			assert.Equal(t, tt.want, chaterr.KindOf(err), "got %v", err)
			expectNoMessage(t, alice)
		})
	}
}
