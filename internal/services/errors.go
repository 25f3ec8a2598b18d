package services

import "errors"

// Domain errors surfaced by the contribution and payment services. Handlers
// translate these to HTTP statuses; callers check them with errors.Is.
var (
	ErrMahberNotFound       = errors.New("mahber not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrContributionNotFound = errors.New("contribution not found")

	// No contribution term applies to the requested Mahber/date
	ErrNoTermFound  = errors.New("no contribution term found")
	ErrNoActiveTerm = errors.New("no active contribution term")

	// The paid amount exceeds everything the member owes; the whole
	// allocation is rolled back rather than banking a credit balance
	ErrOverpayment = errors.New("payment exceeds required amount for outstanding periods")

	// The gateway charges whole currency units only, so a fractional
	// outstanding amount cannot be checked out as-is
	ErrUnchargeableAmount = errors.New("amount cannot be charged in whole currency units")

	ErrGateway = errors.New("payment gateway error")
)
