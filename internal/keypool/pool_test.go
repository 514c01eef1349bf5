package keypool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "gemini-adapter-go/internal/errors"
)

func testCooling() CoolingConfig {
	return CoolingConfig{
		MaxFailures:     3,
		AuthPeriod:      time.Hour,
		QuotaPeriod:     5 * time.Minute,
		TransientPeriod: 30 * time.Second,
	}
}

func TestLeaseLeastRecentlyUsed(t *testing.T) {
	p := New([]string{"aaaa-key-1", "bbbb-key-2"}, testCooling())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return base })

	// Never-used credentials tie on zero LastUsedAt; the lower id wins.
	first, err := p.Lease(nil)
	require.NoError(t, err)
	require.Equal(t, "aaaa-key", first.ID)

	second, err := p.Lease(nil)
	require.NoError(t, err)
	require.Equal(t, "bbbb-key", second.ID)

	// Both stamped at base; tie again, lower id first.
	third, err := p.Lease(nil)
	require.NoError(t, err)
	require.Equal(t, "aaaa-key", third.ID)
}

func TestLeaseExclusion(t *testing.T) {
	p := New([]string{"aaaa-key-1", "bbbb-key-2"}, testCooling())

	lease, err := p.Lease(map[string]struct{}{"aaaa-key": {}})
	require.NoError(t, err)
	require.Equal(t, "bbbb-key", lease.ID)

	_, err = p.Lease(map[string]struct{}{"aaaa-key": {}, "bbbb-key": {}})
	require.Error(t, err)
	var noCred *ErrNoHealthyCredential
	require.ErrorAs(t, err, &noCred)
}

func TestAuthFailureCoolsImmediately(t *testing.T) {
	p := New([]string{"aaaa-key-1", "bbbb-key-2"}, testCooling())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return base })

	p.ReportFailure("aaaa-key", apperrors.KindAuthRejected)

	lease, err := p.Lease(nil)
	require.NoError(t, err)
	require.Equal(t, "bbbb-key", lease.ID)

	snaps := p.Snapshot()
	require.Equal(t, StateCooling, snaps[0].State)
	require.Equal(t, base.Add(time.Hour), snaps[0].CoolingUntil)
}

func TestTransientFailuresCoolAfterThreshold(t *testing.T) {
	p := New([]string{"aaaa-key-1"}, testCooling())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return base })

	p.ReportFailure("aaaa-key", apperrors.KindTransientUpstream)
	p.ReportFailure("aaaa-key", apperrors.KindTransientUpstream)

	active, cooling, _ := p.Counts()
	require.Equal(t, 1, active)
	require.Equal(t, 0, cooling)

	p.ReportFailure("aaaa-key", apperrors.KindTransientUpstream)

	active, cooling, _ = p.Counts()
	require.Equal(t, 0, active)
	require.Equal(t, 1, cooling)
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	p := New([]string{"aaaa-key-1"}, testCooling())

	p.ReportFailure("aaaa-key", apperrors.KindTransientUpstream)
	p.ReportFailure("aaaa-key", apperrors.KindTransientUpstream)
	p.ReportSuccess("aaaa-key")
	p.ReportFailure("aaaa-key", apperrors.KindTransientUpstream)

	snaps := p.Snapshot()
	require.Equal(t, StateActive, snaps[0].State)
	require.Equal(t, 1, snaps[0].ConsecutiveFailures)
	require.Equal(t, int64(3), snaps[0].TotalFailures)
}

func TestCoolingRecoversAfterPeriod(t *testing.T) {
	p := New([]string{"aaaa-key-1"}, testCooling())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return now })

	p.ReportFailure("aaaa-key", apperrors.KindQuotaExceeded)
	_, err := p.Lease(nil)
	require.Error(t, err)

	// Just before expiry the credential stays cooling.
	now = now.Add(5*time.Minute - time.Second)
	_, err = p.Lease(nil)
	require.Error(t, err)

	now = now.Add(2 * time.Second)
	lease, err := p.Lease(nil)
	require.NoError(t, err)
	require.Equal(t, "aaaa-key", lease.ID)

	snaps := p.Snapshot()
	require.Equal(t, 0, snaps[0].ConsecutiveFailures)
}

func TestNoHealthyCredentialRetryAfter(t *testing.T) {
	p := New([]string{"aaaa-key-1", "bbbb-key-2"}, testCooling())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return now })

	p.ReportFailure("aaaa-key", apperrors.KindAuthRejected)
	p.ReportFailure("bbbb-key", apperrors.KindQuotaExceeded)

	_, err := p.Lease(nil)
	var noCred *ErrNoHealthyCredential
	require.ErrorAs(t, err, &noCred)
	require.Equal(t, 5*time.Minute, noCred.RetryAfter)
}

func TestDisableRemovesFromSelection(t *testing.T) {
	p := New([]string{"aaaa-key-1"}, testCooling())

	require.NoError(t, p.Disable("aaaa-key"))
	_, err := p.Lease(nil)
	require.Error(t, err)

	// Failures on a disabled credential count but never change state.
	p.ReportFailure("aaaa-key", apperrors.KindAuthRejected)
	snaps := p.Snapshot()
	require.Equal(t, StateDisabled, snaps[0].State)

	require.NoError(t, p.Enable("aaaa-key"))
	lease, err := p.Lease(nil)
	require.NoError(t, err)
	require.Equal(t, "aaaa-key", lease.ID)
}

func TestResetClearsCoolingKeepsCounters(t *testing.T) {
	p := New([]string{"aaaa-key-1"}, testCooling())

	p.Lease(nil)
	p.ReportFailure("aaaa-key", apperrors.KindAuthRejected)

	require.NoError(t, p.Reset("aaaa-key"))

	snaps := p.Snapshot()
	require.Equal(t, StateActive, snaps[0].State)
	require.Equal(t, 0, snaps[0].ConsecutiveFailures)
	require.Equal(t, int64(1), snaps[0].TotalRequests)
	require.Equal(t, int64(1), snaps[0].TotalFailures)
	require.True(t, snaps[0].CoolingUntil.IsZero())
}

func TestAddRemove(t *testing.T) {
	p := New(nil, testCooling())

	id, err := p.Add("cccc-key-3")
	require.NoError(t, err)
	require.Equal(t, "cccc-key", id)

	_, err = p.Add("cccc-key-3")
	require.Error(t, err)

	require.NoError(t, p.Remove(id))
	require.Error(t, p.Remove(id))
	require.Error(t, p.Reset(id))
}

func TestSnapshotNeverExposesSecret(t *testing.T) {
	p := New([]string{"super-secret-value"}, testCooling())
	snaps := p.Snapshot()
	require.Len(t, snaps, 1)
	require.Equal(t, "super-se", snaps[0].ID)
}
