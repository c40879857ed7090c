// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package agreement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"storj.io/common/testcontext"
	"storj.io/common/uuid"

	"origin.energy/origin/account/accounttest"
	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/holder"
)

func newTestService(ctx *testcontext.Context, t *testing.T) (*agreement.Service, *accounttest.DB) {
	db := accounttest.New()
	for _, subject := range []string{"sub-x", "sub-y", "sub-z"} {
		require.NoError(t, db.Holders().Create(ctx, &holder.Holder{
			Subject: subject,
			Name:    subject,
			Active:  true,
		}))
	}
	return agreement.NewService(zaptest.NewLogger(t), db.Agreements(), db.Holders()), db
}

func testProposal(counterpart string) agreement.Proposal {
	return agreement.Proposal{
		CounterpartSubject: counterpart,
		Direction:          agreement.Outbound,
		DateFrom:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:             time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Amount:             1,
		Unit:               agreement.GWh,
	}
}

func TestService_Propose(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newTestService(ctx, t)

	a, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
	require.NoError(t, err)
	require.Equal(t, agreement.Pending, a.State)
	require.Equal(t, "sub-x", a.From)
	require.Equal(t, "sub-y", a.To)
	require.Nil(t, a.TransferPriority)

	// Inbound proposals reverse the parties.
	inbound := testProposal("sub-y")
	inbound.Direction = agreement.Inbound
	b, err := service.Propose(ctx, "sub-x", inbound)
	require.NoError(t, err)
	require.Equal(t, "sub-y", b.From)
	require.Equal(t, "sub-x", b.To)

	// Unknown or inactive counterparts are rejected.
	_, err = service.Propose(ctx, "sub-x", testProposal("sub-unknown"))
	require.True(t, agreement.ErrCounterpartUnavailable.Has(err))

	_, err = service.Propose(ctx, "sub-x", testProposal("sub-x"))
	require.Error(t, err)

	// Amount is mandatory unless limited to consumption.
	missing := testProposal("sub-y")
	missing.Amount = 0
	_, err = service.Propose(ctx, "sub-x", missing)
	require.Error(t, err)

	missing.LimitToConsumption = true
	_, err = service.Propose(ctx, "sub-x", missing)
	require.NoError(t, err)
}

func TestService_AcceptAssignsPriorities(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newTestService(ctx, t)

	for i := 0; i < 3; i++ {
		a, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
		require.NoError(t, err)

		accepted, err := service.Accept(ctx, "sub-y", a.PublicID, agreement.AcceptOptions{})
		require.NoError(t, err)
		require.Equal(t, agreement.Accepted, accepted.State)
		require.NotNil(t, accepted.TransferPriority)
		require.Equal(t, i, *accepted.TransferPriority)
	}
}

func TestService_AcceptOnlyCounterpart(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newTestService(ctx, t)

	a, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
	require.NoError(t, err)

	// The proposer cannot accept its own proposal.
	_, err = service.Accept(ctx, "sub-x", a.PublicID, agreement.AcceptOptions{})
	require.Error(t, err)

	// Third parties do not even see it.
	_, err = service.Accept(ctx, "sub-z", a.PublicID, agreement.AcceptOptions{})
	require.True(t, agreement.ErrNotFound.Has(err))

	// Accepting twice fails.
	_, err = service.Accept(ctx, "sub-y", a.PublicID, agreement.AcceptOptions{})
	require.NoError(t, err)
	_, err = service.Accept(ctx, "sub-y", a.PublicID, agreement.AcceptOptions{})
	require.True(t, agreement.ErrNotPending.Has(err))
}

func TestService_AcceptFillIns(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newTestService(ctx, t)

	// Inbound proposal from sub-x means sub-y is the sender; the
	// accepting sender may restrict facilities and percent.
	proposal := testProposal("sub-y")
	proposal.Direction = agreement.Inbound
	a, err := service.Propose(ctx, "sub-x", proposal)
	require.NoError(t, err)

	accepted, err := service.Accept(ctx, "sub-y", a.PublicID, agreement.AcceptOptions{
		Technologies:  []string{"Wind"},
		FacilityGsrn:  []string{"571300000000000001"},
		AmountPercent: 50,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Wind"}, accepted.Technologies)
	require.Equal(t, []string{"571300000000000001"}, accepted.FacilityGsrn)
	require.Equal(t, 50, accepted.AmountPercent)
}

func TestService_DeclineAndWithdraw(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _ := newTestService(ctx, t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service.TestSetNow(func() time.Time { return now })

	a, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
	require.NoError(t, err)

	declined, err := service.Decline(ctx, "sub-y", a.PublicID)
	require.NoError(t, err)
	require.Equal(t, agreement.Declined, declined.State)
	require.NotNil(t, declined.Declined)
	require.Equal(t, now, *declined.Declined)

	b, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
	require.NoError(t, err)

	// Only the proposer may withdraw.
	_, err = service.Withdraw(ctx, "sub-y", b.PublicID)
	require.True(t, agreement.ErrNotProposer.Has(err))

	withdrawn, err := service.Withdraw(ctx, "sub-x", b.PublicID)
	require.NoError(t, err)
	require.Equal(t, agreement.Withdrawn, withdrawn.State)

	// Withdrawing twice fails.
	_, err = service.Withdraw(ctx, "sub-x", b.PublicID)
	require.True(t, agreement.ErrNotPending.Has(err))
}

func TestService_CancelRenumbers(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db := newTestService(ctx, t)

	accepted := make([]*agreement.Agreement, 4)
	for i := range accepted {
		a, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
		require.NoError(t, err)
		accepted[i], err = service.Accept(ctx, "sub-y", a.PublicID, agreement.AcceptOptions{})
		require.NoError(t, err)
	}

	// Cancel the agreement at priority 1; the rest renumber densely
	// preserving their relative order.
	cancelled, err := service.Cancel(ctx, "sub-x", accepted[1].PublicID)
	require.NoError(t, err)
	require.Equal(t, agreement.Cancelled, cancelled.State)
	require.Nil(t, cancelled.TransferPriority)
	require.NotNil(t, cancelled.Cancelled)

	remaining, err := db.Agreements().AcceptedOutbound(ctx, "sub-x")
	require.NoError(t, err)
	require.Len(t, remaining, 3)

	expected := []uuid.UUID{accepted[0].PublicID, accepted[2].PublicID, accepted[3].PublicID}
	for i, a := range remaining {
		require.Equal(t, expected[i], a.PublicID)
		require.NotNil(t, a.TransferPriority)
		require.Equal(t, i, *a.TransferPriority)
	}
}

func TestService_SetPriority(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, db := newTestService(ctx, t)

	accepted := make([]*agreement.Agreement, 3)
	for i := range accepted {
		a, err := service.Propose(ctx, "sub-x", testProposal("sub-y"))
		require.NoError(t, err)
		accepted[i], err = service.Accept(ctx, "sub-y", a.PublicID, agreement.AcceptOptions{})
		require.NoError(t, err)
	}

	// Reorder: last first, and leave the rest to renumber after it.
	require.NoError(t, service.SetPriority(ctx, "sub-x", []uuid.UUID{accepted[2].PublicID}))

	reordered, err := db.Agreements().AcceptedOutbound(ctx, "sub-x")
	require.NoError(t, err)
	require.Len(t, reordered, 3)

	expected := []uuid.UUID{accepted[2].PublicID, accepted[0].PublicID, accepted[1].PublicID}
	for i, a := range reordered {
		require.Equal(t, expected[i], a.PublicID)
		require.Equal(t, i, *a.TransferPriority)
	}
}
