// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

// Package agreement implements trade agreements: directed, stateful
// contracts that forward GGOs from one holder to another, and the
// dense transfer priority list that orders them.
package agreement

import (
	"sync"
	"time"

	"github.com/zeebo/errs"
	"storj.io/common/uuid"
)

var (
	// Error is the default agreement errs class.
	Error = errs.Class("agreement")
	// ErrNotFound is returned when no matching agreement exists.
	ErrNotFound = errs.Class("agreement not found")
	// ErrNotPending is returned when responding to an agreement that
	// is no longer pending.
	ErrNotPending = errs.Class("agreement not pending")
	// ErrNotProposer is returned when withdrawing a proposal made by
	// somebody else.
	ErrNotProposer = errs.Class("not proposer of agreement")
	// ErrCounterpartUnavailable is returned when proposing to a
	// subject that does not exist or is inactive.
	ErrCounterpartUnavailable = errs.Class("counterpart unavailable")
)

// State is the lifecycle state of an agreement.
type State string

const (
	// Pending means the proposal awaits a response from the
	// counterpart.
	Pending State = "PENDING"
	// Accepted means the agreement is active and participates in
	// allocation.
	Accepted State = "ACCEPTED"
	// Declined means the counterpart rejected the proposal.
	Declined State = "DECLINED"
	// Cancelled means a formerly accepted agreement was terminated.
	Cancelled State = "CANCELLED"
	// Withdrawn means the proposer retracted the pending proposal.
	Withdrawn State = "WITHDRAWN"
)

// Direction describes an agreement relative to one of its parties.
type Direction string

const (
	// Inbound agreements deliver GGOs to the party.
	Inbound Direction = "inbound"
	// Outbound agreements forward the party's GGOs away.
	Outbound Direction = "outbound"
)

// Unit scales an agreement's fixed amount to Wh.
type Unit int64

const (
	// Wh is watt-hours.
	Wh Unit = 1
	// KWh is kilowatt-hours.
	KWh Unit = 1e3
	// MWh is megawatt-hours.
	MWh Unit = 1e6
	// GWh is gigawatt-hours.
	GWh Unit = 1e9
)

// Agreement is a directed trade agreement between two holders.
//
// The amount policy is either a fixed per-GGO cap (Amount with Unit),
// a fractional share (AmountPercent, applied first with the fixed cap
// as ceiling), or consumption-capped forwarding (LimitToConsumption).
//
// TransferPriority is only meaningful while the agreement is accepted;
// within one sender the accepted agreements are densely numbered from
// zero.
type Agreement struct {
	ID       int64
	PublicID uuid.UUID
	Created  time.Time

	ProposedBy string
	From       string
	To         string

	State     State
	Declined  *time.Time
	Cancelled *time.Time

	// Window, inclusive, as local dates in Europe/Copenhagen.
	DateFrom time.Time
	DateTo   time.Time

	// Empty means any facility; otherwise the GGO's issuing GSRN must
	// be listed.
	FacilityGsrn []string
	// Nil means any technology.
	Technologies []string

	Amount             int64
	Unit               Unit
	AmountPercent      int
	LimitToConsumption bool

	TransferPriority *int

	Reference    string
	ProposalNote string
}

// MaxAmount returns the fixed per-GGO cap in Wh.
func (a *Agreement) MaxAmount() int64 {
	return a.Amount * int64(a.Unit)
}

// IsProposedBy returns true if subject proposed the agreement.
func (a *Agreement) IsProposedBy(subject string) bool { return a.ProposedBy == subject }

// IsInboundTo returns true if subject receives GGOs under the
// agreement.
func (a *Agreement) IsInboundTo(subject string) bool { return a.To == subject }

// IsOutboundFrom returns true if subject sends GGOs under the
// agreement.
func (a *Agreement) IsOutboundFrom(subject string) bool { return a.From == subject }

// IsParty returns true if subject is either side of the agreement.
func (a *Agreement) IsParty(subject string) bool {
	return a.From == subject || a.To == subject
}

// OperatesAt returns true if the local date of begin falls within the
// agreement's window.
func (a *Agreement) OperatesAt(begin time.Time) bool {
	d := LocalDate(begin)
	return !d.Before(LocalDate(a.DateFrom)) && !d.After(LocalDate(a.DateTo))
}

// MatchesFacility returns true if the agreement's facility filter
// admits a GGO issued at issueGsrn. Agreements without a facility
// filter admit anything; agreements with one admit only listed GSRNs,
// and nothing whose issuing GSRN is unknown.
func (a *Agreement) MatchesFacility(issueGsrn string) bool {
	if len(a.FacilityGsrn) == 0 {
		return true
	}
	if issueGsrn == "" {
		return false
	}
	for _, gsrn := range a.FacilityGsrn {
		if gsrn == issueGsrn {
			return true
		}
	}
	return false
}

// MatchesTechnology returns true if the agreement's technology filter
// admits the given technology label.
func (a *Agreement) MatchesTechnology(label string) bool {
	if a.Technologies == nil {
		return true
	}
	for _, t := range a.Technologies {
		if t == label {
			return true
		}
	}
	return false
}

var copenhagen = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		panic(err)
	}
	return loc
})

// LocalDate converts an instant to its calendar date in
// Europe/Copenhagen, the time zone agreement windows are defined in.
func LocalDate(t time.Time) time.Time {
	year, month, day := t.In(copenhagen()).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
