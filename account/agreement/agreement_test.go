// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package agreement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"origin.energy/origin/account/agreement"
)

func TestAgreement_MaxAmount(t *testing.T) {
	a := &agreement.Agreement{Amount: 3, Unit: agreement.MWh}
	require.EqualValues(t, 3_000_000, a.MaxAmount())
}

func TestAgreement_OperatesAt(t *testing.T) {
	date := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	a := &agreement.Agreement{DateFrom: date, DateTo: date}

	// A single day window matches any instant of that local day.
	require.True(t, a.OperatesAt(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)))
	require.True(t, a.OperatesAt(time.Date(2025, 6, 14, 23, 0, 0, 0, time.UTC))) // 01:00 June 15 in Copenhagen
	require.False(t, a.OperatesAt(time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)))
	require.False(t, a.OperatesAt(time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)))
}

func TestAgreement_MatchesFacility(t *testing.T) {
	open := &agreement.Agreement{}
	require.True(t, open.MatchesFacility("571300000000000001"))
	require.True(t, open.MatchesFacility(""))

	restricted := &agreement.Agreement{FacilityGsrn: []string{"571300000000000001"}}
	require.True(t, restricted.MatchesFacility("571300000000000001"))
	require.False(t, restricted.MatchesFacility("571300000000000002"))
	// A restricted agreement rejects GGOs whose issuing facility is unknown.
	require.False(t, restricted.MatchesFacility(""))
}

func TestAgreement_MatchesTechnology(t *testing.T) {
	any := &agreement.Agreement{}
	require.True(t, any.MatchesTechnology("Wind"))
	require.True(t, any.MatchesTechnology("Unknown"))

	wind := &agreement.Agreement{Technologies: []string{"Wind"}}
	require.True(t, wind.MatchesTechnology("Wind"))
	require.False(t, wind.MatchesTechnology("Solar"))

	// An explicitly empty filter admits nothing.
	none := &agreement.Agreement{Technologies: []string{}}
	require.False(t, none.MatchesTechnology("Wind"))
}
