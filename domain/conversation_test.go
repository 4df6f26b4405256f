package domain

import (
	"campus-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDirect_SameParticipant(t *testing.T) {
	_, err := NewDirect(NewConversationID(), "alice", "alice", time.Now())
	require.ErrorIs(t, err, errors.ErrInvalidParticipant)
}

func TestNewGroup_DeduplicatesAndIncludesCreator(t *testing.T) {
	req := require.New(t)
	at := time.Now().UTC()

	// When a group is created with duplicates, blanks and without the creator
	group, err := NewGroup(NewConversationID(), "alice", "  study  ", "", []UserID{"bob", "bob", "", "clara"}, at)

	// Then members are unique and the creator is one of them
	req.NoError(err)
	req.Equal(Group, group.Kind)
	req.Equal("study", group.Name)
	req.Equal([]UserID{"alice", "bob", "clara"}, group.Participants.Sorted())
	req.Equal(at, group.LastActivityAt)
}

func TestNewGroup_BlankName(t *testing.T) {
	_, err := NewGroup(NewConversationID(), "alice", "   ", "", nil, time.Now())
	require.ErrorIs(t, err, errors.ErrInvalidName)
}

func TestDirectPairKey_Unordered(t *testing.T) {
	require.Equal(t, DirectPairKey("bob", "alice"), DirectPairKey("alice", "bob"))
}

func TestDirectPairKey_SeparatorInIDs(t *testing.T) {
	req := require.New(t)
	req.NotEqual(DirectPairKey("x|y", "z"), DirectPairKey("x", "y|z"))
	req.NotEqual(DirectPairKey("a|", "b"), DirectPairKey("a", "|b"))
}

func TestCursor_RoundTrip(t *testing.T) {
	req := require.New(t)
	seq, err := CursorAt(42).Sequence()
	req.NoError(err)
	req.Equal(uint64(42), seq)

	_, err = Cursor("nope").Sequence()
	req.ErrorIs(err, errors.ErrInvalidCursor)
}
