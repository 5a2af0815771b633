package quota

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/filelock"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = models.OwnerUsername

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	m     *Manager
	store *jsonstore.Store
	clock *fakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := jsonstore.New(t.TempDir(), filelock.None{}, logging.Discard())
	clock := &fakeClock{t: time.Date(2025, 6, 10, 8, 0, 0, 0, time.Local)}
	m := NewManager(context.Background(), store, logging.Discard(), WithClock(clock.Now))
	return fixture{m: m, store: store, clock: clock}
}

func TestNewManager_CreatesDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var doc models.QuotaDocument
	require.True(t, f.store.Read(ctx, jsonstore.DocQuota, &doc))
	assert.Equal(t, models.DefaultSystemConfig(), doc.SystemConfig)

	var l models.UsageLedger
	require.True(t, f.store.Read(ctx, jsonstore.DocUsage, &l))
	assert.Equal(t, "2025-06-10", l.LastResetDate)
}

func TestSetAdminLimits_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.m.SetAdminLimits(ctx, "A", 2, 200, "someone")
	assert.Equal(t, ReasonNotOwner, ReasonOf(err))

	err = f.m.SetAdminLimits(ctx, "A", -1, 200, owner)
	assert.Equal(t, ReasonInvalidInput, ReasonOf(err))

	err = f.m.SetAdminLimits(ctx, "A", 2, -5, owner)
	assert.Equal(t, ReasonInvalidInput, ReasonOf(err))

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 2, 200, owner))
	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 5, 300, owner))

	all := f.m.AllAdminLimits(ctx)
	require.Contains(t, all, "A")
	assert.Equal(t, 5, all["A"].Limits.MaxUsers, "limits are replaced, not added")
	assert.Equal(t, 300, all["A"].Limits.DailyQuota)
	assert.Equal(t, owner, all["A"].Limits.CreatedBy)
}

func TestScenario_ProvisioningAndUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 2, 200, owner))

	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 150)
	require.NoError(t, err)

	_, err = f.m.AssignUserToAdmin(ctx, "u2", "A", 100)
	assert.Equal(t, ReasonInsufficientPool, ReasonOf(err))
	assert.Equal(t, "Insufficient quota available for assignment", Message(err))

	msg, err := f.m.AssignUserToAdmin(ctx, "u2", "A", 50)
	require.NoError(t, err)
	assert.Equal(t, "User assigned successfully", msg)

	_, err = f.m.AssignUserToAdmin(ctx, "u3", "A", 0)
	assert.Equal(t, ReasonUserLimitReached, ReasonOf(err))
	assert.Equal(t, "Maximum user limit reached (2)", Message(err))

	msg, err = f.m.RecordUserUsage(ctx, "u1", 150)
	require.NoError(t, err)
	assert.Equal(t, "Usage recorded: 150 units", msg)

	_, err = f.m.RecordUserUsage(ctx, "u1", 1)
	assert.Equal(t, ReasonUserQuotaExceeded, ReasonOf(err))
	assert.Equal(t, "User daily quota exceeded (150)", Message(err))
}

func TestCanAdminCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.m.CanAdminCreateUser(ctx, "nobody")
	assert.Equal(t, ReasonAdminNotConfigured, ReasonOf(err))
	assert.Equal(t, "Admin limits not configured by Owner", Message(err))

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 100, owner))
	msg, err := f.m.CanAdminCreateUser(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Can create 3 more users", msg)
}

func TestAssign_RejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 100, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 10)
	require.NoError(t, err)

	_, err = f.m.AssignUserToAdmin(ctx, "u1", "A", 10)
	assert.Equal(t, ReasonAlreadyAssigned, ReasonOf(err))
}

func TestCanAdminAssignQuota_CountsAdminOwnUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 100, owner))
	assert.True(t, f.m.CanAdminAssignQuota(ctx, "A", 100))

	_, err := f.m.RecordAdminUsage(ctx, "A", 30)
	require.NoError(t, err)

	assert.True(t, f.m.CanAdminAssignQuota(ctx, "A", 70))
	assert.False(t, f.m.CanAdminAssignQuota(ctx, "A", 71))
	assert.False(t, f.m.CanAdminAssignQuota(ctx, "A", -1))
	assert.False(t, f.m.CanAdminAssignQuota(ctx, "missing", 1))
}

func TestAdjustUserQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 100, owner))
	require.NoError(t, f.m.SetAdminLimits(ctx, "B", 3, 100, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 60)
	require.NoError(t, err)
	_, err = f.m.AssignUserToAdmin(ctx, "u2", "A", 30)
	require.NoError(t, err)

	_, err = f.m.AdjustUserQuota(ctx, "ghost", "A", 10)
	assert.Equal(t, ReasonNotAssigned, ReasonOf(err))

	_, err = f.m.AdjustUserQuota(ctx, "u1", "B", 10)
	assert.Equal(t, ReasonWrongAdmin, ReasonOf(err))

	_, err = f.m.AdjustUserQuota(ctx, "u1", "A", 71)
	assert.Equal(t, ReasonInsufficientPool, ReasonOf(err))
	assert.Equal(t, "Insufficient quota available. Need 11 more quota units.", Message(err))

	msg, err := f.m.AdjustUserQuota(ctx, "u1", "A", 70)
	require.NoError(t, err)
	assert.Equal(t, "User quota updated from 60 to 70", msg)

	_, err = f.m.AdjustUserQuota(ctx, "u1", "A", 5)
	require.NoError(t, err, "shrinking never needs headroom")

	st := f.m.UserQuotaStatus(ctx, "u1")
	assert.Equal(t, 5, st.DailyQuota)
}

func TestAssignedNeverExceedsPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	const pool = 500
	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 6, pool, owner))
	users := []string{"a", "b", "c", "d", "e", "f"}

	for i := 0; i < 200; i++ {
		u := users[rng.Intn(len(users))]
		q := rng.Intn(200)
		if rng.Intn(2) == 0 {
			_, _ = f.m.AssignUserToAdmin(ctx, u, "A", q)
		} else {
			_, _ = f.m.AdjustUserQuota(ctx, u, "A", q)
		}

		var doc models.QuotaDocument
		require.True(t, f.store.Read(ctx, jsonstore.DocQuota, &doc))
		require.LessOrEqual(t, doc.AssignedTotal("A"), pool)
	}
}

func TestRecordUserUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.m.RecordUserUsage(ctx, "free", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, "User not under quota management", msg)

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 100, owner))
	_, err = f.m.AssignUserToAdmin(ctx, "u1", "A", 60)
	require.NoError(t, err)
	_, err = f.m.AssignUserToAdmin(ctx, "u2", "A", 40)
	require.NoError(t, err)

	_, err = f.m.RecordUserUsage(ctx, "u1", 60)
	require.NoError(t, err)

	// Lowering the pool below what is assigned leaves the combined check as the
	// binding limit.
	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 80, owner))

	_, err = f.m.CheckUsage(ctx, "u2", 30)
	assert.Equal(t, ReasonAdminQuotaExceeded, ReasonOf(err))

	_, err = f.m.RecordUserUsage(ctx, "u2", 30)
	assert.Equal(t, ReasonAdminQuotaExceeded, ReasonOf(err))
	assert.Equal(t, "Admin total quota exceeded (80)", Message(err))

	_, err = f.m.RecordUserUsage(ctx, "u2", 20)
	require.NoError(t, err)

	_, err = f.m.RecordUserUsage(ctx, "u2", -1)
	assert.Equal(t, ReasonInvalidInput, ReasonOf(err))

	dash, err := f.m.AdminDashboard(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, dash.AdminPersonalUsage, "auditor usage never lands on the admin counter")
	assert.Equal(t, 80, dash.UsersTotalUsage)
	assert.Equal(t, 80, dash.TotalUsage)
}

func TestRecordAdminUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.m.RecordAdminUsage(ctx, "unmetered", 10)
	require.NoError(t, err)
	assert.Equal(t, "Admin not under quota management", msg)

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 50, owner))
	_, err = f.m.RecordAdminUsage(ctx, "A", 50)
	require.NoError(t, err)
	_, err = f.m.RecordAdminUsage(ctx, "A", 1)
	assert.Equal(t, ReasonAdminQuotaExceeded, ReasonOf(err))
}

func TestRecordAdminUsage_KeepsAssignedSlicesReserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 150)
	require.NoError(t, err)

	_, err = f.m.RecordAdminUsage(ctx, "A", 100)
	assert.Equal(t, ReasonAdminQuotaExceeded, ReasonOf(err))
	assert.Equal(t, "Admin quota exceeded: 150 of 200 units are assigned to users", Message(err))

	_, err = f.m.RecordAdminUsage(ctx, "A", 50)
	require.NoError(t, err)
	_, err = f.m.RecordAdminUsage(ctx, "A", 1)
	assert.Equal(t, ReasonAdminQuotaExceeded, ReasonOf(err))

	_, err = f.m.RecordUserUsage(ctx, "u1", 150)
	require.NoError(t, err, "the auditor can still reach its full slice")

	dash, err := f.m.AdminDashboard(ctx, "A")
	require.NoError(t, err)
	assert.LessOrEqual(t, dash.QuotaAssignedToUsers+dash.AdminPersonalUsage, dash.DailyQuotaPool)
}

func TestCheckAdminUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.m.CheckAdminUsage(ctx, "A", 10)
	require.NoError(t, err)
	assert.Equal(t, "Admin not under quota management", msg)

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err = f.m.AssignUserToAdmin(ctx, "u1", "A", 150)
	require.NoError(t, err)

	msg, err = f.m.CheckAdminUsage(ctx, "A", 50)
	require.NoError(t, err)
	assert.Equal(t, "Usage of 50 units allowed", msg)
	_, err = f.m.CheckAdminUsage(ctx, "A", 51)
	assert.Equal(t, ReasonAdminQuotaExceeded, ReasonOf(err))
	_, err = f.m.CheckAdminUsage(ctx, "A", -1)
	assert.Equal(t, ReasonInvalidInput, ReasonOf(err))

	dash, err := f.m.AdminDashboard(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, dash.AdminPersonalUsage, "checking records nothing")
}

func TestRemoveUserFromAdmin_FoldsUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	require.NoError(t, f.m.SetAdminLimits(ctx, "B", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 100)
	require.NoError(t, err)
	_, err = f.m.AssignUserToAdmin(ctx, "u2", "A", 50)
	require.NoError(t, err)
	_, err = f.m.RecordUserUsage(ctx, "u1", 40)
	require.NoError(t, err)

	_, err = f.m.RemoveUserFromAdmin(ctx, "u1", "B")
	assert.Equal(t, ReasonWrongAdmin, ReasonOf(err))

	msg, err := f.m.RemoveUserFromAdmin(ctx, "u1", "A")
	require.NoError(t, err)
	assert.Equal(t, "User removed. Used quota (40) preserved, unused quota (60) reclaimed.", msg)

	msg, err = f.m.RemoveUserFromAdmin(ctx, "u2", "A")
	require.NoError(t, err)
	assert.Equal(t, "User removed. All assigned quota (50) reclaimed.", msg)

	_, err = f.m.RemoveUserFromAdmin(ctx, "u2", "A")
	assert.Equal(t, ReasonNotAssigned, ReasonOf(err))

	dash, err := f.m.AdminDashboard(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 40, dash.AdminPersonalUsage)
	assert.Equal(t, 0, dash.QuotaAssignedToUsers)
	assert.Equal(t, 160, dash.RemainingQuota)
	assert.Empty(t, dash.CreatedUsers)
}

func TestRemoveQuotaAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "ghost", "A", 100)
	require.NoError(t, err)
	_, err = f.m.RecordUserUsage(ctx, "ghost", 10)
	require.NoError(t, err)

	msg, err := f.m.RemoveQuotaAssignment(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "Quota assignment for user 'ghost' removed", msg)

	dash, err := f.m.AdminDashboard(ctx, "A")
	require.NoError(t, err)
	assert.NotContains(t, dash.UsersUsage, "ghost")
	assert.Equal(t, 0, dash.TotalUsage)

	_, err = f.m.RemoveQuotaAssignment(ctx, "ghost")
	assert.Equal(t, ReasonNotAssigned, ReasonOf(err))
}

func TestRemoveAdminLimits_Cascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	require.NoError(t, f.m.SetAdminLimits(ctx, "B", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 100)
	require.NoError(t, err)
	_, err = f.m.AssignUserToAdmin(ctx, "u2", "B", 100)
	require.NoError(t, err)

	require.NoError(t, f.m.RemoveAdminLimits(ctx, "A"))

	assert.False(t, f.m.UserQuotaStatus(ctx, "u1").Managed)
	assert.True(t, f.m.UserQuotaStatus(ctx, "u2").Managed)
	assert.NotContains(t, f.m.AllAdminLimits(ctx), "A")

	var l models.UsageLedger
	require.True(t, f.store.Read(ctx, jsonstore.DocUsage, &l))
	assert.NotContains(t, l.AdminUsage, "A")
}

func TestDailyReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 100)
	require.NoError(t, err)
	_, err = f.m.RecordUserUsage(ctx, "u1", 100)
	require.NoError(t, err)
	_, err = f.m.RecordAdminUsage(ctx, "A", 10)
	require.NoError(t, err)

	assert.Equal(t, 100, f.m.UserQuotaStatus(ctx, "u1").CurrentUsage)
	assert.Equal(t, 100, f.m.UserQuotaStatus(ctx, "u1").CurrentUsage, "same-day reads do not reset")

	f.clock.Advance(24 * time.Hour)

	st := f.m.UserQuotaStatus(ctx, "u1")
	assert.Equal(t, 0, st.CurrentUsage)
	assert.Equal(t, 100, st.Remaining)

	var first models.UsageLedger
	require.True(t, f.store.Read(ctx, jsonstore.DocUsage, &first))
	assert.Equal(t, "2025-06-11", first.LastResetDate)
	assert.Equal(t, models.AdminUsage{TotalUsed: 0, UsersUsage: map[string]int{"u1": 0}}, first.AdminUsage["A"])

	_ = f.m.UserQuotaStatus(ctx, "u1")
	var second models.UsageLedger
	require.True(t, f.store.Read(ctx, jsonstore.DocUsage, &second))
	assert.Equal(t, first, second)
}

func TestForceDailyReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 100)
	require.NoError(t, err)
	_, err = f.m.RecordUserUsage(ctx, "u1", 100)
	require.NoError(t, err)

	msg, err := f.m.ForceDailyReset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Daily usage reset completed. Reset date: 2025-06-10", msg)
	assert.Equal(t, 0, f.m.UserQuotaStatus(ctx, "u1").CurrentUsage)
}

func TestNegativeCountersClamped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 100)
	require.NoError(t, err)

	require.NoError(t, f.store.Write(ctx, jsonstore.DocUsage, models.UsageLedger{
		LastResetDate: "2025-06-10",
		AdminUsage: map[string]models.AdminUsage{
			"A": {TotalUsed: -5, UsersUsage: map[string]int{"u1": -20}},
		},
	}))

	assert.Equal(t, 0, f.m.UserQuotaStatus(ctx, "u1").CurrentUsage)

	var l models.UsageLedger
	require.True(t, f.store.Read(ctx, jsonstore.DocUsage, &l))
	assert.Equal(t, 0, l.AdminUsage["A"].TotalUsed)
	assert.Equal(t, 0, l.AdminUsage["A"].UsersUsage["u1"])
}

func TestCorruptQuotaDocumentReinitialised(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := filepath.Join(f.store.Root(), jsonstore.DocQuota)
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))

	assert.Empty(t, f.m.AllAdminLimits(ctx))

	_, err := os.Stat(path + ".backup")
	assert.NoError(t, err)
	var doc models.QuotaDocument
	assert.True(t, f.store.Read(ctx, jsonstore.DocQuota, &doc))
}

func TestUserQuotaStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.m.UserQuotaStatus(ctx, "nobody")
	assert.False(t, st.Managed)
	assert.Equal(t, "User not under quota management", st.Message)

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	_, err := f.m.AssignUserToAdmin(ctx, "u1", "A", 80)
	require.NoError(t, err)
	_, err = f.m.RecordUserUsage(ctx, "u1", 20)
	require.NoError(t, err)

	st = f.m.UserQuotaStatus(ctx, "u1")
	assert.Equal(t, UserStatus{
		Managed:        true,
		DailyQuota:     80,
		CurrentUsage:   20,
		Remaining:      60,
		PercentageUsed: 25,
		Admin:          "A",
	}, st)
}

func TestAdminCreatedUsers_Sorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	for _, u := range []string{"zed", "amy", "kim"} {
		_, err := f.m.AssignUserToAdmin(ctx, u, "A", 10)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"amy", "kim", "zed"}, f.m.AdminCreatedUsers(ctx, "A"))
	assert.Empty(t, f.m.AdminCreatedUsers(ctx, "B"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.m.SetAdminLimits(ctx, "A", 3, 200, owner))
	h := f.m.Health(ctx)
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.QuotaFileExists)
	assert.Equal(t, 1, h.AdminCount)
	assert.False(t, h.NeedsReset)

	f.clock.Advance(48 * time.Hour)
	h = f.m.Health(ctx)
	assert.True(t, h.NeedsReset)
	assert.Equal(t, "Reset needed - will occur on next usage check", h.ResetStatus)
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	var b Backend = Disabled{}

	assert.False(t, b.Enabled())
	_, err := b.RecordUserUsage(ctx, "u", 10)
	assert.NoError(t, err)
	_, err = b.CanAdminCreateUser(ctx, "A")
	assert.NoError(t, err)
	assert.Equal(t, ReasonDisabled, ReasonOf(b.SetAdminLimits(ctx, "A", 1, 1, owner)))
	_, err = b.AssignUserToAdmin(ctx, "u", "A", 1)
	assert.Equal(t, ReasonDisabled, ReasonOf(err))
	assert.False(t, b.UserQuotaStatus(ctx, "u").Managed)
	_, err = b.ApplyRedistribution(ctx, "A", map[string]int{"u": 1})
	assert.Equal(t, ReasonDisabled, ReasonOf(err))
	_, err = b.SuggestRedistribution(ctx, "A")
	assert.Equal(t, ReasonDisabled, ReasonOf(err))
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "insufficient_pool", ReasonInsufficientPool.String())
	assert.Equal(t, "reason(99)", Reason(99).String())
	assert.Equal(t, Reason(0), ReasonOf(nil))
	assert.Equal(t, "", Message(nil))
}
