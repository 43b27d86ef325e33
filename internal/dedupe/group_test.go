package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	id      string
	ro      string
	updated string
}

func roKey(r rec) string   { return r.ro }
func recency(r rec) string { return r.updated }
func ids(rs []rec) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.id
	}
	return out
}

func TestGroupSkipsEmptyKeys(t *testing.T) {
	groups := Group([]rec{
		{id: "a", ro: "40832"},
		{id: "b", ro: " 40832 "},
		{id: "c", ro: ""},
		{id: "d", ro: "   "},
		{id: "e", ro: "40794"},
	}, roKey)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"a", "b"}, ids(groups["40832"]))
	assert.Equal(t, []string{"e"}, ids(groups["40794"]))
}

func TestDuplicatesKeepsOnlyRepeatedKeys(t *testing.T) {
	dups := Duplicates([]rec{
		{id: "a", ro: "1"},
		{id: "b", ro: "2"},
		{id: "c", ro: "1"},
	}, roKey)

	require.Len(t, dups, 1)
	assert.Equal(t, []string{"a", "c"}, ids(dups["1"]))
	assert.Equal(t, 1, Surplus(dups))
}

func TestResolveKeepsMostRecent(t *testing.T) {
	members := []rec{
		{id: "t1", ro: "40832", updated: "2025-12-20T08:00:00.000Z"},
		{id: "t3", ro: "40832", updated: "2025-12-30T08:00:00.000Z"},
		{id: "t2", ro: "40832", updated: "2025-12-24T08:00:00.000Z"},
	}

	res := Resolve("40832", members, recency)

	assert.Equal(t, "40832", res.Key)
	assert.Equal(t, "t3", res.Keep.id)
	assert.Equal(t, []string{"t2", "t1"}, ids(res.Delete))
}

func TestResolveMissingRecencyNeverWins(t *testing.T) {
	members := []rec{
		{id: "blank", ro: "1"},
		{id: "dated", ro: "1", updated: "2020-01-01T00:00:00.000Z"},
	}

	res := Resolve("1", members, recency)
	assert.Equal(t, "dated", res.Keep.id)
	assert.Equal(t, []string{"blank"}, ids(res.Delete))
}

func TestResolveTiesKeepFirstSeen(t *testing.T) {
	members := []rec{
		{id: "first", ro: "1", updated: "2025-01-01T00:00:00.000Z"},
		{id: "second", ro: "1", updated: "2025-01-01T00:00:00.000Z"},
		{id: "third", ro: "1", updated: "2025-01-01T00:00:00.000Z"},
	}

	res := Resolve("1", members, recency)
	assert.Equal(t, "first", res.Keep.id)
	assert.Equal(t, []string{"second", "third"}, ids(res.Delete))
}

func TestResolveDoesNotReorderInput(t *testing.T) {
	members := []rec{
		{id: "old", ro: "1", updated: "1"},
		{id: "new", ro: "1", updated: "2"},
	}
	Resolve("1", members, recency)
	assert.Equal(t, []string{"old", "new"}, ids(members))
}

func TestResolveAllExactlyOneKeepPerGroup(t *testing.T) {
	items := []rec{
		{id: "a1", ro: "A", updated: "3"},
		{id: "b1", ro: "B", updated: "1"},
		{id: "a2", ro: "A", updated: "5"},
		{id: "b2", ro: "B", updated: "1"},
		{id: "a3", ro: "A", updated: "4"},
		{id: "c1", ro: "C", updated: "9"},
	}

	resolutions := ResolveAll(Duplicates(items, roKey), recency)
	require.Len(t, resolutions, 2)

	assert.Equal(t, "A", resolutions[0].Key)
	assert.Equal(t, "a2", resolutions[0].Keep.id)
	assert.Len(t, resolutions[0].Delete, 2)

	assert.Equal(t, "B", resolutions[1].Key)
	assert.Equal(t, "b1", resolutions[1].Keep.id)
	assert.Equal(t, []string{"b2"}, ids(resolutions[1].Delete))

	for _, res := range resolutions {
		for _, d := range res.Delete {
			assert.LessOrEqual(t, d.updated, res.Keep.updated)
		}
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys(map[string][]rec{"b": nil, "a": nil, "c": nil})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}
