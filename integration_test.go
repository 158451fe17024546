//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widgetworks/service-subscription/internal/apperror"
	"github.com/widgetworks/service-subscription/internal/application"
	subDomain "github.com/widgetworks/service-subscription/internal/domain/subscription"
	"github.com/widgetworks/service-subscription/internal/events"
)

// TestSubscriptionLifecycle runs create, renew, and cancel against real
// Postgres and Kafka, asserting the paired audit rows and published events.
func TestSubscriptionLifecycle(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupSubscriptionStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	user := seedCustomer(t, infra.DB, "jane@example.com")
	seedProduct(t, infra.DB, "widget_1", "GA")
	seedProduct(t, infra.DB, "widget_draft", "DRAFT")

	ctx := context.Background()

	// Catalog listing defaults to generally-available products.
	products, err := stack.Products.List(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "widget_1", products[0].Slug)

	// Create: ship-to defaults to the billing address.
	created, err := stack.Service.Create(ctx, application.CreateSubscriptionRequest{
		UserEmail: "jane@example.com",
		Product:   "widget_1",
		Terms:     "MONTHLY",
	})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", created.State)
	assert.Equal(t, user.BillingAddressID, created.ShipToAddressID)
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, created.ID, "CREATE"))

	ce := consumeOneEvent(t, infra.KafkaBrokers, testTopic, events.SubscriptionCreated, 15*time.Second)
	var payload events.SubscriptionEvent
	require.NoError(t, ce.ParseData(&payload))
	assert.Equal(t, created.ID, payload.SubscriptionID)

	// Duplicate create conflicts and never logs.
	_, err = stack.Service.Create(ctx, application.CreateSubscriptionRequest{
		UserEmail: "jane@example.com",
		Product:   "widget_1",
	})
	assert.True(t, apperror.IsConflict(err))
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, created.ID, "CREATE"))

	// Renew extends from the prior expiry.
	renewed, err := stack.Service.Renew(ctx, application.SubscriptionKeyRequest{
		UserEmail: "jane@example.com",
		Product:   "widget_1",
	})
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.After(created.ExpiresAt))
	assert.WithinDuration(t,
		subDomain.NextExpirationDate(subDomain.TermsMonthly, created.ExpiresAt),
		renewed.ExpiresAt, time.Second)
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, created.ID, "RENEW"))

	// Cancel keeps the expiry.
	canceled, err := stack.Service.Cancel(ctx, application.SubscriptionKeyRequest{
		UserEmail: "jane@example.com",
		Product:   "widget_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "CANCELED", canceled.State)
	assert.True(t, canceled.ExpiresAt.Equal(renewed.ExpiresAt))
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, created.ID, "CANCEL"))

	// Listing expands references.
	details, err := stack.Service.List(ctx, subDomain.ListParams{})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.NotNil(t, details[0].User)
	assert.Equal(t, "jane@example.com", details[0].User.Email)
	require.NotNil(t, details[0].Product)
	assert.Equal(t, "widget_1", details[0].Product.Slug)
	require.NotNil(t, details[0].ShipToAddress)
	assert.Equal(t, "Hudson", details[0].ShipToAddress.City)
}

// TestExpirationReaper verifies the sweep only touches active rows past
// their expiry and pairs each transition with one EXPIRE audit row.
func TestExpirationReaper(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupSubscriptionStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	user := seedCustomer(t, infra.DB, "reaper@example.com")
	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().AddDate(0, 1, 0)

	overdue := seedSubscriptionRow(t, infra.DB, user, "overdue_widget", "ACTIVE", past)
	current := seedSubscriptionRow(t, infra.DB, user, "current_widget", "ACTIVE", future)
	canceled := seedSubscriptionRow(t, infra.DB, user, "canceled_widget", "CANCELED", past)

	reaped, err := stack.Service.ExpirationReaper(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	assert.Equal(t, "EXPIRED", subscriptionState(t, infra.DB, overdue))
	assert.Equal(t, "ACTIVE", subscriptionState(t, infra.DB, current))
	assert.Equal(t, "CANCELED", subscriptionState(t, infra.DB, canceled))

	assert.EqualValues(t, 1, countTransactions(t, infra.DB, overdue, "EXPIRE"))
	assert.EqualValues(t, 0, countTransactions(t, infra.DB, current, "EXPIRE"))
	assert.EqualValues(t, 0, countTransactions(t, infra.DB, canceled, "EXPIRE"))

	ce := consumeOneEvent(t, infra.KafkaBrokers, testTopic, events.SubscriptionExpired, 15*time.Second)
	var payload events.SubscriptionEvent
	require.NoError(t, ce.ParseData(&payload))
	assert.Equal(t, overdue, payload.SubscriptionID)

	// A second sweep finds nothing.
	reaped, err = stack.Service.ExpirationReaper(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, overdue, "EXPIRE"))
}

// TestSingleExpire verifies the conditional single-record expiration.
func TestSingleExpire(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupSubscriptionStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	user := seedCustomer(t, infra.DB, "expire@example.com")
	past := time.Now().UTC().Add(-time.Hour)
	id := seedSubscriptionRow(t, infra.DB, user, "widget_1", "ACTIVE", past)

	result, err := stack.Service.Expire(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", result.State)
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, id, "EXPIRE"))

	// Expiring again is a no-op with no extra audit row.
	result, err = stack.Service.Expire(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", result.State)
	assert.EqualValues(t, 1, countTransactions(t, infra.DB, id, "EXPIRE"))

	_, err = stack.Service.Expire(context.Background(), uuid.New())
	assert.True(t, apperror.IsNotFound(err))
}
