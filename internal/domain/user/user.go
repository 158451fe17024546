// Package user holds the user and address reference entities. The lifecycle
// manager reads these and never mutates a user.
package user

import "github.com/google/uuid"

// User is a customer record. Phone is PII encrypted at rest by an external
// collaborator; it is carried here as an opaque string.
type User struct {
	ID               uuid.UUID
	Email            string
	FirstName        string
	LastName         string
	Phone            string
	BillingAddressID uuid.UUID
}

// Address is a postal address. A user owns a billing address; subscriptions
// may own their own ship-to copy. Address lines are opaque PII strings.
type Address struct {
	ID         uuid.UUID
	Addr1      string
	Addr2      string
	Addr3      string
	City       string
	State      string
	Country    string
	PostalCode string
}
