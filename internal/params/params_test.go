package params

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/user/agentinbox/internal/types"
)

func TestParseAndViewState(t *testing.T) {
	t.Parallel()

	q := Parse("inbox=error&offset=20&limit=5&agent_inbox=abc&view_state_thread_id=t1&no_inboxes_found=true")
	vs := q.ViewState()

	require.Equal(t, types.StatusFilter(types.StatusError), vs.Status)
	require.NotNil(t, vs.Offset)
	require.Equal(t, 20, *vs.Offset)
	require.NotNil(t, vs.Limit)
	require.Equal(t, 5, *vs.Limit)
	require.Equal(t, types.InboxID("abc"), vs.InboxID)
	require.Equal(t, "t1", vs.ThreadID)
	require.True(t, vs.NoInboxesFound)
}

func TestViewStateInvalidValuesReadAsUnset(t *testing.T) {
	t.Parallel()

	vs := Parse("inbox=bogus&offset=-1&limit=ten").ViewState()
	require.Empty(t, vs.Status)
	require.Nil(t, vs.Offset)
	require.Nil(t, vs.Limit)
}

func TestUpdateDeletesEmptyValues(t *testing.T) {
	t.Parallel()

	q := Parse("agent_inbox=abc&no_inboxes_found=true")
	next := q.Update(map[string]string{AgentInbox: "def", NoInboxesFound: ""})

	require.Equal(t, "agent_inbox=def", next.Encode())
	// The original query is untouched.
	require.Equal(t, "agent_inbox=abc&no_inboxes_found=true", q.Encode())
}

func TestReplaceDiscardsOtherKeys(t *testing.T) {
	t.Parallel()

	q := Replace(map[string]string{AgentInbox: "x", Inbox: "interrupted"})
	require.Equal(t, "agent_inbox=x&inbox=interrupted", q.Encode())
	require.Equal(t, "/?agent_inbox=x&inbox=interrupted", q.URL("/"))
	require.Equal(t, "/", Query{}.URL("/"))
}

func TestEnsureDefaults(t *testing.T) {
	t.Parallel()

	q, changed := EnsureDefaults(Parse("agent_inbox=abc"), 0)
	require.True(t, changed)
	require.Equal(t, "interrupted", q.Get(Inbox))
	require.Equal(t, "0", q.Get(Offset))
	require.Equal(t, "10", q.Get(Limit))
	require.Equal(t, "abc", q.Get(AgentInbox))

	same, changed := EnsureDefaults(q, 0)
	require.False(t, changed)
	require.Equal(t, q.Encode(), same.Encode())

	custom, _ := EnsureDefaults(Query{}, 25)
	require.Equal(t, "25", custom.Get(Limit))
}

func TestPagination(t *testing.T) {
	t.Parallel()

	q := Parse("inbox=interrupted&offset=0&limit=10")
	next := q.NextPage()
	require.Equal(t, "10", next.Get(Offset))
	require.Equal(t, "20", next.NextPage().Get(Offset))
	require.Equal(t, "0", next.PrevPage().Get(Offset))
	require.Equal(t, "0", q.PrevPage().Get(Offset))
}

func TestWithStatusResetsOffsetAndClosesThread(t *testing.T) {
	t.Parallel()

	q := Parse("inbox=interrupted&offset=30&limit=10&view_state_thread_id=t1")
	next := q.WithStatus(types.FilterAll)
	require.Equal(t, "all", next.Get(Inbox))
	require.Equal(t, "0", next.Get(Offset))
	require.False(t, next.Has(ViewStateThreadID))
}

// TestUpdateProperties verifies that Update applies exactly the patch:
// patched keys take their new value or disappear, other keys are kept.
func TestUpdateProperties(t *testing.T) {
	keys := []string{Inbox, Offset, Limit, AgentInbox, ViewStateThreadID, NoInboxesFound}
	value := rapid.StringMatching(`[a-z0-9]{0,4}`)

	rapid.Check(t, func(rt *rapid.T) {
		base := map[string]string{}
		patch := map[string]string{}
		for _, k := range keys {
			if rapid.Bool().Draw(rt, "inBase:"+k) {
				base[k] = value.Draw(rt, "base:"+k)
			}
			if rapid.Bool().Draw(rt, "inPatch:"+k) {
				patch[k] = value.Draw(rt, "patch:"+k)
			}
		}

		q := Replace(base)
		before := q.Encode()
		next := q.Update(patch)

		require.Equal(rt, before, q.Encode(), "Update must not mutate its receiver")
		for _, k := range keys {
			want, patched := patch[k]
			if !patched {
				want = base[k]
			}
			require.Equal(rt, want, next.Get(k), "key %s", k)
		}
	})
}
