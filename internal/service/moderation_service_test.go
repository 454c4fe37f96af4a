package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andymarrow/stark-api/internal/model"
)

type moderationFixture struct {
	svc     *ModerationService
	reports *fakeReportStore
	admin   *model.User
	member  *model.User
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	admin := &model.User{ID: uuid.New(), Username: "mod", Name: "Mod", IsAdmin: true}
	member := &model.User{ID: uuid.New(), Username: "plain", Name: "Plain"}
	reports := newFakeReportStore()
	svc := NewModerationService(
		reports,
		newFakeUserStore(admin, member),
		newFakeMsgStore(),
		newFakeConvStore(),
		nil,
	)
	return &moderationFixture{svc: svc, reports: reports, admin: admin, member: member}
}

func (f *moderationFixture) fileReport(t *testing.T) *model.Report {
	t.Helper()
	report, err := f.svc.CreateReport(f.member.ID, model.CreateReportRequest{
		TargetUserID: &f.admin.ID,
		Reason:       model.ReportReasonSpam,
	})
	require.NoError(t, err)
	return report
}

func TestListReportsAdminGate(t *testing.T) {
	t.Run("non-admin is rejected", func(t *testing.T) {
		f := newModerationFixture(t)
		f.fileReport(t)

		_, err := f.svc.ListReports(f.member.ID, "", 50)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unknown caller is rejected", func(t *testing.T) {
		f := newModerationFixture(t)

		_, err := f.svc.ListReports(uuid.New(), "", 50)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("admin sees the queue", func(t *testing.T) {
		f := newModerationFixture(t)
		filed := f.fileReport(t)

		reports, err := f.svc.ListReports(f.admin.ID, model.ReportStatusPending, 50)
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.Equal(t, filed.ID, reports[0].ID)
	})
}

func TestResolveReportAdminGate(t *testing.T) {
	t.Run("non-admin cannot resolve", func(t *testing.T) {
		f := newModerationFixture(t)
		filed := f.fileReport(t)

		err := f.svc.ResolveReport(f.member.ID, filed.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)

		got, err := f.reports.FindByID(filed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusPending, got.Status)
	})

	t.Run("admin resolves", func(t *testing.T) {
		f := newModerationFixture(t)
		filed := f.fileReport(t)

		require.NoError(t, f.svc.ResolveReport(f.admin.ID, filed.ID))

		got, err := f.reports.FindByID(filed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReportStatusResolved, got.Status)
	})

	t.Run("unknown report", func(t *testing.T) {
		f := newModerationFixture(t)

		err := f.svc.ResolveReport(f.admin.ID, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateReportTargets(t *testing.T) {
	t.Run("no target", func(t *testing.T) {
		f := newModerationFixture(t)

		_, err := f.svc.CreateReport(f.member.ID, model.CreateReportRequest{
			Reason: model.ReportReasonOther,
		})
		assert.ErrorIs(t, err, ErrInvalidTarget)
	})

	t.Run("unknown target user", func(t *testing.T) {
		f := newModerationFixture(t)
		ghost := uuid.New()

		_, err := f.svc.CreateReport(f.member.ID, model.CreateReportRequest{
			TargetUserID: &ghost,
			Reason:       model.ReportReasonHarassment,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
