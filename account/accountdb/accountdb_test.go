// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package accountdb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"

	"origin.energy/origin/account"
	"origin.energy/origin/account/accountdb/accountdbtest"
	"origin.energy/origin/account/agreement"
	"origin.energy/origin/account/ggo"
	"origin.energy/origin/account/holder"
	"origin.energy/origin/account/measurement"
	"origin.energy/origin/account/meteringpoint"
	"origin.energy/origin/account/technology"
)

var (
	begin = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	end   = begin.Add(time.Hour)
)

func TestHolders(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		active := &holder.Holder{Subject: "sub-x", Name: "Holder X", Active: true}
		require.NoError(t, db.Holders().Create(ctx, active))
		require.NotZero(t, active.ID)

		inactive := &holder.Holder{Subject: "sub-y", Name: "Holder Y"}
		require.NoError(t, db.Holders().Create(ctx, inactive))

		got, err := db.Holders().Get(ctx, "sub-x")
		require.NoError(t, err)
		require.Equal(t, "Holder X", got.Name)

		got, err = db.Holders().GetActive(ctx, "sub-y")
		require.NoError(t, err)
		require.Nil(t, got)

		got, err = db.Holders().Get(ctx, "sub-missing")
		require.NoError(t, err)
		require.Nil(t, got)

		require.Error(t, db.Holders().Create(ctx, &holder.Holder{Subject: "sub-x"}))
	})
}

func TestMeteringpointsAndMeasurements(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		require.NoError(t, db.Holders().Create(ctx, &holder.Holder{Subject: "sub-x", Active: true}))

		production := &meteringpoint.Meteringpoint{
			Gsrn:     "571300000000000001",
			Type:     meteringpoint.Production,
			Sector:   "DK1",
			TechCode: "T010101",
			FuelCode: "F01010101",
			Subject:  "sub-x",
		}
		require.NoError(t, db.Meteringpoints().Create(ctx, production))
		require.NotZero(t, production.ID)
		require.False(t, production.PublicID.IsZero())

		second, first := 1, 0
		require.NoError(t, db.Meteringpoints().Create(ctx, &meteringpoint.Meteringpoint{
			Gsrn: "571300000000000002", Type: meteringpoint.Consumption,
			Sector: "DK1", Subject: "sub-x", RetiringPriority: &second,
		}))
		require.NoError(t, db.Meteringpoints().Create(ctx, &meteringpoint.Meteringpoint{
			Gsrn: "571300000000000003", Type: meteringpoint.Consumption,
			Sector: "DK1", Subject: "sub-x", RetiringPriority: &first,
		}))
		// No priority, never an automatic retire receiver.
		require.NoError(t, db.Meteringpoints().Create(ctx, &meteringpoint.Meteringpoint{
			Gsrn: "571300000000000004", Type: meteringpoint.Consumption,
			Sector: "DK1", Subject: "sub-x",
		}))

		receivers, err := db.Meteringpoints().RetireReceivers(ctx, "sub-x", "DK1")
		require.NoError(t, err)
		require.Len(t, receivers, 2)
		require.Equal(t, "571300000000000003", receivers[0].Gsrn)
		require.Equal(t, "571300000000000002", receivers[1].Gsrn)

		m := &measurement.Measurement{Gsrn: "571300000000000002", Begin: begin, End: end, Amount: 100}
		require.NoError(t, db.Measurements().Create(ctx, m))
		require.NotZero(t, m.ID)

		// One measurement per gsrn and begin.
		require.Error(t, db.Measurements().Create(ctx, &measurement.Measurement{
			Gsrn: "571300000000000002", Begin: begin, End: end, Amount: 50,
		}))

		got, err := db.Measurements().Consumption(ctx, "sub-x", "571300000000000002", begin)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.EqualValues(t, 100, got.Amount)

		// Consumption only matches the owner's consumption meteringpoints.
		got, err = db.Measurements().Consumption(ctx, "sub-y", "571300000000000002", begin)
		require.NoError(t, err)
		require.Nil(t, got)

		require.NoError(t, db.Measurements().Create(ctx, &measurement.Measurement{
			Gsrn: "571300000000000001", Begin: begin, End: end, Amount: 100,
		}))
		got, err = db.Measurements().Consumption(ctx, "sub-x", "571300000000000001", begin)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestGgos(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		require.NoError(t, db.Holders().Create(ctx, &holder.Holder{Subject: "sub-x", Active: true}))
		require.NoError(t, db.Meteringpoints().Create(ctx, &meteringpoint.Meteringpoint{
			Gsrn: "571300000000000002", Type: meteringpoint.Consumption,
			Sector: "DK1", Subject: "sub-x",
		}))
		m := &measurement.Measurement{Gsrn: "571300000000000002", Begin: begin, End: end, Amount: 100}
		require.NoError(t, db.Measurements().Create(ctx, m))

		g := &ggo.Ggo{
			PublicID:   testrand.UUID(),
			Subject:    "sub-x",
			IssueGsrn:  "571300000000000001",
			IssueTime:  begin,
			ExpireTime: begin.Add(90 * 24 * time.Hour),
			Begin:      begin,
			End:        end,
			Amount:     100,
			Sector:     "DK1",
			TechCode:   "T010101",
			FuelCode:   "F01010101",
			Emissions:  []byte(`{"CO2":{"value":0}}`),
			Issued:     true,
			Stored:     true,
		}
		require.NoError(t, db.Ggos().Create(ctx, g))
		require.NotZero(t, g.ID)

		got, err := db.Ggos().GetByPublicID(ctx, "sub-x", g.PublicID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, g.Amount, got.Amount)
		require.JSONEq(t, `{"CO2":{"value":0}}`, string(got.Emissions))
		require.True(t, got.Begin.Equal(begin))
		require.Nil(t, got.ParentID)
		require.Nil(t, got.RetireGsrn)

		// Owned by somebody else.
		got, err = db.Ggos().GetByPublicID(ctx, "sub-y", g.PublicID)
		require.NoError(t, err)
		require.Nil(t, got)

		stored, err := db.Ggos().StoredAmount(ctx, "sub-x", begin)
		require.NoError(t, err)
		require.EqualValues(t, 100, stored)

		gsrn := "571300000000000002"
		g.Stored = false
		g.Retired = true
		g.RetireGsrn = &gsrn
		g.RetireMeasurementID = &m.ID
		require.NoError(t, db.Ggos().Update(ctx, g))

		stored, err = db.Ggos().StoredAmount(ctx, "sub-x", begin)
		require.NoError(t, err)
		require.Zero(t, stored)

		retired, err := db.Ggos().RetiredAmount(ctx, "sub-x", gsrn, m.ID)
		require.NoError(t, err)
		require.EqualValues(t, 100, retired)

		require.Error(t, db.Ggos().Update(ctx, &ggo.Ggo{ID: 999999}))
	})
}

func TestAgreements_NormalizePriorities(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		createAccepted := func(priority *int) *agreement.Agreement {
			a := &agreement.Agreement{
				PublicID:         testrand.UUID(),
				ProposedBy:       "sub-x",
				From:             "sub-x",
				To:               "sub-y",
				State:            agreement.Accepted,
				DateFrom:         begin.AddDate(0, -1, 0),
				DateTo:           begin.AddDate(0, 1, 0),
				Amount:           1000,
				Unit:             agreement.Wh,
				TransferPriority: priority,
			}
			require.NoError(t, db.Agreements().Create(ctx, a))
			return a
		}
		intp := func(i int) *int { return &i }

		unprioritized := createAccepted(nil)
		low := createAccepted(intp(7))
		high := createAccepted(intp(2))

		require.NoError(t, db.Agreements().NormalizePriorities(ctx, "sub-x"))

		// Dense renumbering: priorities first in order, NULLs last by id.
		list, err := db.Agreements().AcceptedOutbound(ctx, "sub-x")
		require.NoError(t, err)
		require.Len(t, list, 3)

		expected := []struct {
			publicID string
			priority int
		}{
			{high.PublicID.String(), 0},
			{low.PublicID.String(), 1},
			{unprioritized.PublicID.String(), 2},
		}
		for i, a := range list {
			require.Equal(t, expected[i].publicID, a.PublicID.String())
			require.NotNil(t, a.TransferPriority)
			require.Equal(t, expected[i].priority, *a.TransferPriority)
		}

		max, err := db.Agreements().MaxPriority(ctx, "sub-x")
		require.NoError(t, err)
		require.NotNil(t, max)
		require.Equal(t, 2, *max)
	})
}

func TestAgreements_FiltersRoundTrip(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		a := &agreement.Agreement{
			PublicID:     testrand.UUID(),
			ProposedBy:   "sub-x",
			From:         "sub-x",
			To:           "sub-y",
			State:        agreement.Accepted,
			DateFrom:     begin.AddDate(0, -1, 0),
			DateTo:       begin.AddDate(0, 1, 0),
			Amount:       3,
			Unit:         agreement.MWh,
			FacilityGsrn: []string{"571300000000000001"},
			Technologies: []string{"Wind"},
		}
		require.NoError(t, db.Agreements().Create(ctx, a))

		got, err := db.Agreements().GetByPublicID(ctx, a.PublicID)
		require.NoError(t, err)
		require.Equal(t, []string{"571300000000000001"}, got.FacilityGsrn)
		require.Equal(t, []string{"Wind"}, got.Technologies)
		require.Equal(t, agreement.MWh, got.Unit)

		// A nil technology filter stays nil after the round trip; it
		// means any technology.
		open := &agreement.Agreement{
			PublicID:   testrand.UUID(),
			ProposedBy: "sub-x",
			From:       "sub-x",
			To:         "sub-y",
			State:      agreement.Accepted,
			DateFrom:   begin.AddDate(0, -1, 0),
			DateTo:     begin.AddDate(0, 1, 0),
			Amount:     1000,
			Unit:       agreement.Wh,
		}
		require.NoError(t, db.Agreements().Create(ctx, open))

		got, err = db.Agreements().GetByPublicID(ctx, open.PublicID)
		require.NoError(t, err)
		require.Nil(t, got.Technologies)
		require.Empty(t, got.FacilityGsrn)

		active, err := db.Agreements().ActiveOutbound(ctx, "sub-x", agreement.LocalDate(begin))
		require.NoError(t, err)
		require.Len(t, active, 2)

		outside, err := db.Agreements().ActiveOutbound(ctx, "sub-x", agreement.LocalDate(begin.AddDate(1, 0, 0)))
		require.NoError(t, err)
		require.Empty(t, outside)
	})
}

func TestTechnologies(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		wind := &technology.Technology{Label: "Wind", TechCode: "T010101", FuelCode: "F01010101"}
		require.NoError(t, db.Technologies().Create(ctx, wind))
		require.NotZero(t, wind.ID)

		// The code pair is unique, the label is not.
		require.Error(t, db.Technologies().Create(ctx, &technology.Technology{
			Label: "Wind turbine", TechCode: "T010101", FuelCode: "F01010101",
		}))
		require.NoError(t, db.Technologies().Create(ctx, &technology.Technology{
			Label: "Wind", TechCode: "T020101", FuelCode: "F01010101",
		}))

		got, err := db.Technologies().Get(ctx, "T010101", "F01010101")
		require.NoError(t, err)
		require.Equal(t, "Wind", got.Label)

		got, err = db.Technologies().Get(ctx, "T999999", "F01010101")
		require.NoError(t, err)
		require.Nil(t, got)

		list, err := db.Technologies().List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
	})
}

func TestBatches_GraphRoundTrip(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		parent := createTestGgo(ctx, t, db, "sub-x", 100)
		reference := testrand.UUID().String()

		split := ggo.NewSplitTransaction(parent)
		transferred, err := parent.CreateChild(60, "sub-y")
		require.NoError(t, err)
		remainder, err := parent.CreateChild(40, "sub-x")
		require.NoError(t, err)
		split.AddTarget(transferred, &reference)
		split.AddTarget(remainder, nil)

		batch := &ggo.Batch{Subject: "sub-x"}
		batch.Add(split)
		require.NoError(t, batch.OnBegin())

		for _, target := range split.Targets {
			require.NoError(t, db.Ggos().Create(ctx, target.Ggo))
			target.GgoID = target.Ggo.ID
		}
		split.ParentGgoID = parent.ID
		require.NoError(t, db.Ggos().Update(ctx, parent))
		require.NoError(t, db.Batches().Create(ctx, batch))
		require.NotZero(t, batch.ID)

		got, err := db.Batches().Get(ctx, batch.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, ggo.BatchPending, got.State)
		require.Len(t, got.Transactions, 1)

		loaded := got.Transactions[0]
		require.Equal(t, ggo.TransactionSplit, loaded.Type)
		require.Equal(t, parent.ID, loaded.ParentGgo.ID)
		require.Len(t, loaded.Targets, 2)
		require.Equal(t, &reference, loaded.Targets[0].Reference)
		require.EqualValues(t, 60, loaded.Targets[0].Ggo.Amount)
		require.Nil(t, loaded.Targets[1].Reference)

		pending, err := db.Batches().ListByState(ctx, ggo.BatchPending, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)

		// The transfer shows up in the sender's transferred sum.
		total, err := db.Ggos().TransferredAmount(ctx, "sub-x", reference, begin)
		require.NoError(t, err)
		require.EqualValues(t, 60, total)

		total, err = db.Ggos().TransferredAmount(ctx, "sub-x", "no-such-reference", begin)
		require.NoError(t, err)
		require.Zero(t, total)
	})
}

func TestBatches_Rollback(t *testing.T) {
	accountdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db account.DB) {
		parent := createTestGgo(ctx, t, db, "sub-x", 100)

		split := ggo.NewSplitTransaction(parent)
		child, err := parent.CreateChild(100, "sub-y")
		require.NoError(t, err)
		split.AddTarget(child, nil)

		batch := &ggo.Batch{Subject: "sub-x"}
		batch.Add(split)
		require.NoError(t, batch.OnBegin())

		require.NoError(t, db.Ggos().Create(ctx, child))
		split.Targets[0].GgoID = child.ID
		split.ParentGgoID = parent.ID
		require.NoError(t, db.Ggos().Update(ctx, parent))
		require.NoError(t, db.Batches().Create(ctx, batch))

		batch.OnSubmitted("handle-1", begin)
		require.NoError(t, db.Batches().UpdateState(ctx, batch))

		batch.OnRollback()
		require.NoError(t, db.Batches().Rollback(ctx, batch))

		got, err := db.Batches().Get(ctx, batch.ID)
		require.NoError(t, err)
		require.Equal(t, ggo.BatchDeclined, got.State)
		require.Empty(t, got.Transactions)

		// The child is gone and the parent is stored again.
		missing, err := db.Ggos().GetByPublicID(ctx, "sub-y", child.PublicID)
		require.NoError(t, err)
		require.Nil(t, missing)

		stored, err := db.Ggos().StoredAmount(ctx, "sub-x", begin)
		require.NoError(t, err)
		require.EqualValues(t, 100, stored)
	})
}

func createTestGgo(ctx *testcontext.Context, t *testing.T, db account.DB, subject string, amount int64) *ggo.Ggo {
	g := &ggo.Ggo{
		PublicID:   testrand.UUID(),
		Subject:    subject,
		IssueGsrn:  "571300000000000001",
		IssueTime:  begin,
		ExpireTime: begin.Add(90 * 24 * time.Hour),
		Begin:      begin,
		End:        end,
		Amount:     amount,
		Sector:     "DK1",
		TechCode:   "T010101",
		FuelCode:   "F01010101",
		Issued:     true,
		Stored:     true,
	}
	require.NoError(t, db.Ggos().Create(ctx, g))
	return g
}
