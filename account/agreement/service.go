// Copyright (C) 2025 Storj Labs, Inc.
// See LICENSE for copying information.

package agreement

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"storj.io/common/uuid"

	"origin.energy/origin/account/holder"
)

var mon = monkit.Package()

// Proposal carries the parameters of a new agreement proposal. The
// direction is relative to the proposer.
type Proposal struct {
	CounterpartSubject string
	Direction          Direction

	DateFrom time.Time
	DateTo   time.Time

	Amount             int64
	Unit               Unit
	AmountPercent      int
	LimitToConsumption bool

	FacilityGsrn []string
	Technologies []string

	Reference    string
	ProposalNote string
}

// AcceptOptions are the fields the accepting party may fill in.
// Technologies may be set only when the proposal left them open;
// facility and percent restrictions only when the accepter is the
// outbound party.
type AcceptOptions struct {
	Technologies  []string
	FacilityGsrn  []string
	AmountPercent int
}

// Service manages the agreement lifecycle and the transfer priority
// list.
//
// architecture: Service
type Service struct {
	log        *zap.Logger
	agreements DB
	holders    holder.DB
	nowFn      func() time.Time
}

// NewService creates a new agreement service.
func NewService(log *zap.Logger, agreements DB, holders holder.DB) *Service {
	return &Service{
		log:        log,
		agreements: agreements,
		holders:    holders,
		nowFn:      time.Now,
	}
}

// TestSetNow makes the service act as if the current time is whatever
// nowFn returns.
func (service *Service) TestSetNow(nowFn func() time.Time) {
	service.nowFn = nowFn
}

// Propose creates a pending agreement between the proposer and the
// counterpart named in the proposal.
func (service *Service) Propose(ctx context.Context, proposer string, proposal Proposal) (_ *Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	if proposal.CounterpartSubject == proposer {
		return nil, Error.New("cannot propose an agreement to yourself")
	}
	if proposal.AmountPercent != 0 && (proposal.AmountPercent < 1 || proposal.AmountPercent > 100) {
		return nil, Error.New("amount percent must be within [1, 100], got %d", proposal.AmountPercent)
	}
	if !proposal.LimitToConsumption && (proposal.Amount <= 0 || proposal.Unit <= 0) {
		return nil, Error.New("agreement needs an amount and unit unless limited to consumption")
	}
	if proposal.DateTo.Before(proposal.DateFrom) {
		return nil, Error.New("agreement window ends before it begins")
	}

	counterpart, err := service.holders.GetActive(ctx, proposal.CounterpartSubject)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if counterpart == nil {
		return nil, ErrCounterpartUnavailable.New("%s", proposal.CounterpartSubject)
	}

	from, to := proposer, counterpart.Subject
	if proposal.Direction == Inbound {
		from, to = counterpart.Subject, proposer
	}

	publicID, err := uuid.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	a := &Agreement{
		PublicID:           publicID,
		ProposedBy:         proposer,
		From:               from,
		To:                 to,
		State:              Pending,
		DateFrom:           proposal.DateFrom,
		DateTo:             proposal.DateTo,
		FacilityGsrn:       proposal.FacilityGsrn,
		Technologies:       proposal.Technologies,
		Amount:             proposal.Amount,
		Unit:               proposal.Unit,
		AmountPercent:      proposal.AmountPercent,
		LimitToConsumption: proposal.LimitToConsumption,
		Reference:          proposal.Reference,
		ProposalNote:       proposal.ProposalNote,
	}
	if err := service.agreements.Create(ctx, a); err != nil {
		return nil, Error.Wrap(err)
	}

	service.log.Info("agreement proposed",
		zap.Stringer("public_id", a.PublicID),
		zap.String("from", a.From),
		zap.String("to", a.To))

	return a, nil
}

// Accept transitions a pending agreement to accepted. Only the
// non-proposing party may accept. The agreement is appended to the
// sender's priority list, and the accepter's fill-ins are applied
// where permitted.
func (service *Service) Accept(ctx context.Context, subject string, publicID uuid.UUID, opts AcceptOptions) (_ *Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	a, err := service.getForResponse(ctx, subject, publicID)
	if err != nil {
		return nil, err
	}

	a.State = Accepted

	next, err := service.nextPriority(ctx, a.From)
	if err != nil {
		return nil, err
	}
	a.TransferPriority = &next

	if len(opts.Technologies) > 0 && len(a.Technologies) == 0 {
		a.Technologies = opts.Technologies
	}
	if len(opts.FacilityGsrn) > 0 && a.IsOutboundFrom(subject) {
		a.FacilityGsrn = opts.FacilityGsrn
	}
	if opts.AmountPercent != 0 && a.IsOutboundFrom(subject) {
		if opts.AmountPercent < 1 || opts.AmountPercent > 100 {
			return nil, Error.New("amount percent must be within [1, 100], got %d", opts.AmountPercent)
		}
		a.AmountPercent = opts.AmountPercent
	}

	if err := service.agreements.Update(ctx, a); err != nil {
		return nil, Error.Wrap(err)
	}

	service.log.Info("agreement accepted",
		zap.Stringer("public_id", a.PublicID),
		zap.Int("transfer_priority", next))

	return a, nil
}

// Decline transitions a pending agreement to declined. Only the
// non-proposing party may decline.
func (service *Service) Decline(ctx context.Context, subject string, publicID uuid.UUID) (_ *Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	a, err := service.getForResponse(ctx, subject, publicID)
	if err != nil {
		return nil, err
	}

	now := service.nowFn()
	a.State = Declined
	a.Declined = &now

	if err := service.agreements.Update(ctx, a); err != nil {
		return nil, Error.Wrap(err)
	}
	return a, nil
}

// Withdraw retracts a pending proposal. Only the proposer may
// withdraw.
func (service *Service) Withdraw(ctx context.Context, subject string, publicID uuid.UUID) (_ *Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	a, err := service.agreements.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if a == nil || !a.IsParty(subject) {
		return nil, ErrNotFound.New("%s", publicID)
	}
	if !a.IsProposedBy(subject) {
		return nil, ErrNotProposer.New("%s", publicID)
	}
	if a.State != Pending {
		return nil, ErrNotPending.New("%s is %s", publicID, a.State)
	}

	a.State = Withdrawn

	if err := service.agreements.Update(ctx, a); err != nil {
		return nil, Error.Wrap(err)
	}
	return a, nil
}

// Cancel terminates an accepted agreement and renumbers the sender's
// remaining accepted agreements to close the priority gap.
func (service *Service) Cancel(ctx context.Context, subject string, publicID uuid.UUID) (_ *Agreement, err error) {
	defer mon.Task()(&ctx)(&err)

	a, err := service.agreements.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if a == nil || !a.IsParty(subject) {
		return nil, ErrNotFound.New("%s", publicID)
	}
	if a.State != Accepted {
		return nil, Error.New("agreement %s is %s, not accepted", publicID, a.State)
	}

	now := service.nowFn()
	a.State = Cancelled
	a.Cancelled = &now
	a.TransferPriority = nil

	// The cancellation must be persisted before renumbering, so the
	// renumber pass no longer sees this agreement as accepted.
	if err := service.agreements.Update(ctx, a); err != nil {
		return nil, Error.Wrap(err)
	}
	if err := service.agreements.NormalizePriorities(ctx, a.From); err != nil {
		return nil, Error.Wrap(err)
	}

	service.log.Info("agreement cancelled", zap.Stringer("public_id", a.PublicID))

	return a, nil
}

// SetPriority reorders the holder's accepted outbound agreements. The
// listed agreements get priorities 0..n-1 in the order given; the rest
// are renumbered after them in their prior order.
func (service *Service) SetPriority(ctx context.Context, subject string, prioritized []uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := service.agreements.ClearPriorities(ctx, subject); err != nil {
		return Error.Wrap(err)
	}
	for i, publicID := range prioritized {
		if err := service.agreements.SetPriority(ctx, subject, publicID, i); err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(service.agreements.NormalizePriorities(ctx, subject))
}

// getForResponse loads a pending agreement that awaits a response from
// subject.
func (service *Service) getForResponse(ctx context.Context, subject string, publicID uuid.UUID) (*Agreement, error) {
	a, err := service.agreements.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if a == nil || !a.IsParty(subject) {
		return nil, ErrNotFound.New("%s", publicID)
	}
	if a.State != Pending {
		return nil, ErrNotPending.New("%s is %s", publicID, a.State)
	}
	if a.IsProposedBy(subject) {
		return nil, Error.New("agreement %s awaits a response from the counterpart", publicID)
	}
	return a, nil
}

// nextPriority computes the priority for a newly accepted agreement:
// one past the sender's current maximum, or zero.
func (service *Service) nextPriority(ctx context.Context, from string) (int, error) {
	max, err := service.agreements.MaxPriority(ctx, from)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}
