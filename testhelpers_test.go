//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/widgetworks/service-subscription/internal/application"
	"github.com/widgetworks/service-subscription/internal/events"
	"github.com/widgetworks/service-subscription/internal/repository"
	"github.com/widgetworks/service-subscription/pkg/kafka"
)

const testTopic = "subscription.events"

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// subscriptionStack holds wired-up subscription service components.
type subscriptionStack struct {
	Service         *application.SubscriptionService
	Products        *application.ProductService
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a
// connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_subscriptions",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_subscriptions sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.AddressModel{},
		&repository.UserModel{},
		&repository.ProductModel{},
		&repository.SubscriptionModel{},
		&repository.TransactionModel{},
	))

	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, testTopic)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupSubscriptionStack wires up the full subscription service stack.
func setupSubscriptionStack(t *testing.T, db *gorm.DB, brokers []string) *subscriptionStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	userRepo := repository.NewGormUserRepository(db)
	addressRepo := repository.NewGormAddressRepository(db)
	productRepo := repository.NewGormProductRepository(db)
	subRepo := repository.NewGormSubscriptionRepository(db)
	txLog := repository.NewGormTransactionLog(db)
	txRunner := repository.NewTxRunner(db)

	producer := kafka.NewProducer(brokers, logger)
	publisher := events.NewKafkaPublisher(producer, testTopic, logger)

	service := application.NewSubscriptionService(
		subRepo, userRepo, productRepo, addressRepo, txLog, txRunner, publisher, logger,
	)

	return &subscriptionStack{
		Service:         service,
		Products:        application.NewProductService(productRepo, logger),
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedCustomer inserts a user with a billing address.
func seedCustomer(t *testing.T, db *gorm.DB, email string) repository.UserModel {
	t.Helper()
	now := time.Now().UTC()
	billing := repository.AddressModel{
		ID:         uuid.New(),
		Addr1:      "123 Mountain Town Rd",
		City:       "Hudson",
		State:      "NY",
		Country:    "USA",
		PostalCode: "12345",
		CreatedAt:  now,
	}
	require.NoError(t, db.Create(&billing).Error, "failed to seed address")

	user := repository.UserModel{
		ID:               uuid.New(),
		Email:            email,
		FirstName:        "Jane",
		LastName:         "Lynch",
		Phone:            "518-555-1212",
		BillingAddressID: billing.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(&user).Error, "failed to seed user")
	return user
}

// seedProduct inserts a product in the given catalog state.
func seedProduct(t *testing.T, db *gorm.DB, slug, state string) repository.ProductModel {
	t.Helper()
	now := time.Now().UTC()
	product := repository.ProductModel{
		ID:          uuid.New(),
		SKU:         "sku-" + slug,
		Slug:        slug,
		Description: "test product",
		State:       state,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, db.Create(&product).Error, "failed to seed product")
	return product
}

// seedSubscriptionRow inserts a product plus a subscription row in the given
// state, returning the subscription id.
func seedSubscriptionRow(t *testing.T, db *gorm.DB, user repository.UserModel, slug, state string, expiresAt time.Time) uuid.UUID {
	t.Helper()
	product := seedProduct(t, db, slug, "GA")
	now := time.Now().UTC()
	model := repository.SubscriptionModel{
		ID:              uuid.New(),
		UserID:          user.ID,
		ProductID:       product.ID,
		ShipToAddressID: user.BillingAddressID,
		ExpiresAt:       expiresAt,
		State:           state,
		Terms:           "MONTHLY",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, db.Create(&model).Error, "failed to seed subscription")
	return model.ID
}

// subscriptionState reads the current state of a subscription row.
func subscriptionState(t *testing.T, db *gorm.DB, id uuid.UUID) string {
	t.Helper()
	var model repository.SubscriptionModel
	require.NoError(t, db.Where("id = ?", id).First(&model).Error)
	return model.State
}

// countTransactions returns the number of audit rows of one type for a
// subscription.
func countTransactions(t *testing.T, db *gorm.DB, subscriptionID uuid.UUID, txType string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&repository.TransactionModel{}).
		Where("subscription_id = ? AND transaction_type = ?", subscriptionID, txType).
		Count(&count).Error)
	return count
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the
// expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger, _ := zap.NewDevelopment()
	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	consumer := kafka.NewConsumer(brokers, groupID, topic, logger)
	defer func() { _ = consumer.Close() }()

	found := make(chan kafka.CloudEvent, 1)
	go func() {
		_ = consumer.Consume(ctx, func(_ context.Context, msg kafkago.Message) error {
			ce, err := kafka.ParseCloudEvent(msg.Value)
			if err != nil {
				return err
			}
			if ce.Type == expectedType {
				select {
				case found <- ce:
				default:
				}
			}
			return nil
		})
	}()

	select {
	case ce := <-found:
		return ce
	case <-ctx.Done():
		t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
		return kafka.CloudEvent{}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with
// "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
