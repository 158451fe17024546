package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Terms is the billing cadence of a subscription.
type Terms string

const (
	TermsMonthly Terms = "MONTHLY"
	TermsYearly  Terms = "YEARLY"
)

// ParseTerms normalizes a raw terms value. Unrecognized or empty input
// falls back to monthly; ok reports whether the input was recognized so
// callers can warn about the degradation.
func ParseTerms(raw string) (terms Terms, ok bool) {
	switch Terms(raw) {
	case TermsMonthly, TermsYearly:
		return Terms(raw), true
	default:
		return TermsMonthly, false
	}
}

// State is the lifecycle state of a subscription.
type State string

const (
	StateActive   State = "ACTIVE"
	StateCanceled State = "CANCELED"
	StateExpired  State = "EXPIRED"
)

// Subscription is the aggregate root for the subscription lifecycle.
// At most one subscription exists per (user, product) pair.
type Subscription struct {
	id              uuid.UUID
	userID          uuid.UUID
	productID       uuid.UUID
	shipToAddressID uuid.UUID
	expiresAt       time.Time
	state           State
	terms           Terms
	createdAt       time.Time
	updatedAt       time.Time
}

// NewSubscription creates an active subscription expiring one term from now.
func NewSubscription(userID, productID, shipToAddressID uuid.UUID, terms Terms, now time.Time) *Subscription {
	now = now.UTC()
	return &Subscription{
		id:              uuid.New(),
		userID:          userID,
		productID:       productID,
		shipToAddressID: shipToAddressID,
		expiresAt:       NextExpirationDate(terms, now),
		state:           StateActive,
		terms:           terms,
		createdAt:       now,
		updatedAt:       now,
	}
}

// Reconstruct rebuilds a Subscription from persistence.
func Reconstruct(id, userID, productID, shipToAddressID uuid.UUID, expiresAt time.Time, state State, terms Terms, createdAt, updatedAt time.Time) *Subscription {
	return &Subscription{
		id: id, userID: userID, productID: productID, shipToAddressID: shipToAddressID,
		expiresAt: expiresAt, state: state, terms: terms,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

// Renew extends the expiry by one term relative to the current expiry and
// forces the subscription back to active. Renewing early never shortens the
// effective extension; renewing a canceled subscription reactivates it.
func (s *Subscription) Renew() {
	s.expiresAt = NextExpirationDate(s.terms, s.expiresAt)
	s.state = StateActive
	s.updatedAt = time.Now().UTC()
}

// Cancel marks the subscription canceled. The expiry is left untouched so a
// later renew still extends from the last recorded date.
func (s *Subscription) Cancel() {
	s.state = StateCanceled
	s.updatedAt = time.Now().UTC()
}

// IsActive reports whether the subscription is active and not past expiry.
func (s *Subscription) IsActive(now time.Time) bool {
	return s.state == StateActive && now.UTC().Before(s.expiresAt)
}

// Getters.
func (s *Subscription) ID() uuid.UUID              { return s.id }
func (s *Subscription) UserID() uuid.UUID          { return s.userID }
func (s *Subscription) ProductID() uuid.UUID       { return s.productID }
func (s *Subscription) ShipToAddressID() uuid.UUID { return s.shipToAddressID }
func (s *Subscription) ExpiresAt() time.Time       { return s.expiresAt }
func (s *Subscription) State() State               { return s.state }
func (s *Subscription) Terms() Terms               { return s.terms }
func (s *Subscription) CreatedAt() time.Time       { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time       { return s.updatedAt }

// NextExpirationDate returns from plus one billing term. The arithmetic is
// calendar-aware with end-of-month clamping: Jan 31 plus one month is
// Feb 28 (or 29), and Feb 29 plus one year is Feb 28.
func NextExpirationDate(terms Terms, from time.Time) time.Time {
	switch terms {
	case TermsYearly:
		return addCalendar(from, 1, 0)
	default:
		return addCalendar(from, 0, 1)
	}
}

func addCalendar(t time.Time, years, months int) time.Time {
	year, month, day := t.Date()
	year += years
	m := int(month) + months
	for m > 12 {
		m -= 12
		year++
	}
	if max := daysIn(year, time.Month(m)); day > max {
		day = max
	}
	return time.Date(year, time.Month(m), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month; day zero of the
// following month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
