package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

func TestIsCompleted(t *testing.T) {
	tests := []struct {
		name  string
		order models.Order
		want  bool
	}{
		{"customer status completed", models.Order{CustomerStatus: "Completed"}, true},
		{"repair condition complete", models.Order{RepairCondition: "Complete"}, true},
		{"in progress", models.Order{CustomerStatus: "In Progress"}, false},
		{"mixed case with suffix", models.Order{CustomerStatus: "  COMPLETE - pending pickup "}, true},
		// Substring rule: "Incomplete" is classified completed. Known false positive.
		{"incomplete matches substring", models.Order{RepairCondition: "Incomplete"}, true},
		{"empty", models.Order{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompleted(tt.order))
		})
	}
}

func TestCompletedPreservesOrder(t *testing.T) {
	orders := []models.Order{
		{RO: "1", CustomerStatus: "Completed"},
		{RO: "2", CustomerStatus: "Waiting"},
		{RO: "3", RepairCondition: "complete"},
	}

	got := Completed(orders)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].RO)
	assert.Equal(t, "3", got[1].RO)
}

func TestOrphansUsesRecordedBuckets(t *testing.T) {
	active := []models.Order{
		{ID: "a", RO: "1", CustomerStatus: "Waiting on parts"},
		{ID: "b", RO: "2"},
		{ID: "c", RO: "3", CustomerStatus: "Completed"},
		{ID: "d", RO: "4", RepairCondition: "complete"},
	}
	recorded := map[string]string{"a": "November 2025", "d": "October 2025", "gone": "October 2025"}

	got := Orphans(active, recorded)
	require.Len(t, got, 3)
	assert.Equal(t, Orphan{Order: active[0], Month: "November 2025"}, got[0])
	assert.Equal(t, Orphan{Order: active[2]}, got[1])
	assert.Equal(t, Orphan{Order: active[3], Month: "October 2025"}, got[2])
}

func TestOrphansIgnoresStrayArchiveMonth(t *testing.T) {
	active := []models.Order{{ID: "a", RO: "1", ArchiveMonth: "November 2025"}}
	assert.Empty(t, Orphans(active, nil))
}

func TestRecencyFallbacks(t *testing.T) {
	assert.Equal(t, "u", ActiveRecency(models.Order{UpdatedAt: "u", CreatedAt: "c"}))
	assert.Equal(t, "c", ActiveRecency(models.Order{CreatedAt: "c"}))
	assert.Equal(t, "", ActiveRecency(models.Order{}))

	assert.Equal(t, "c", ArchivedRecency(models.Order{CreatedAt: "c", DateCompleted: "d"}))
	assert.Equal(t, "d", ArchivedRecency(models.Order{DateCompleted: "d"}))
}

func TestThreeWayDuplicateKeepsNewest(t *testing.T) {
	orders := []models.Order{
		{ID: "t1", RO: "40832", UpdatedAt: "2025-12-22T07:00:00.000Z"},
		{ID: "other", RO: "40794", UpdatedAt: "2025-12-23T07:00:00.000Z"},
		{ID: "t3", RO: "40832", UpdatedAt: "2025-12-30T07:00:00.000Z"},
		{ID: "t2", RO: "40832", UpdatedAt: "2025-12-24T08:38:00.000Z"},
	}

	groups := DuplicateGroups(orders)
	require.Len(t, groups, 1)
	assert.Equal(t, "40832", groups[0].RO)
	assert.Equal(t, 3, groups[0].Count)
	assert.Equal(t, 2, SurplusCount(groups))

	resolutions := Resolve(groups, ActiveRecency)
	require.Len(t, resolutions, 1)
	assert.Equal(t, "t3", resolutions[0].Keep.ID)
	require.Len(t, resolutions[0].Delete, 2)
	assert.Equal(t, "t2", resolutions[0].Delete[0].ID)
	assert.Equal(t, "t1", resolutions[0].Delete[1].ID)
}

func TestResolveSkipsEmptyGroups(t *testing.T) {
	got := Resolve([]models.DuplicateGroup{{RO: "1"}}, ActiveRecency)
	assert.Empty(t, got)
}

func TestCountByMonth(t *testing.T) {
	counts := CountByMonth([]models.Order{
		{ArchiveMonth: "November 2025"},
		{ArchiveMonth: "December 2025"},
		{ArchiveMonth: "November 2025"},
		{},
	})

	assert.Equal(t, []MonthCount{
		{Month: "December 2025", Count: 1},
		{Month: "November 2025", Count: 2},
		{Month: "Unknown", Count: 1},
	}, counts)
}

func TestFlatten(t *testing.T) {
	flat := Flatten(map[string][]models.Order{
		"November 2025": {{RO: "2"}},
		"December 2025": {{RO: "1"}, {RO: "3"}},
	})

	require.Len(t, flat, 3)
	assert.Equal(t, "1", flat[0].RO)
	assert.Equal(t, "3", flat[1].RO)
	assert.Equal(t, "2", flat[2].RO)
}
