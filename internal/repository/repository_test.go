package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/model"
	"github.com/umalmyha/customer-records/internal/storage"
	"github.com/umalmyha/customer-records/migrations"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectionTimeout = 3 * time.Second
	dayMillis         = int64(24 * time.Hour / time.Millisecond)
)

const (
	pgTestUser     = "test"
	pgTestPassword = "test"
	pgTestDB       = "customers"
)

const (
	mongoTestUser     = "test"
	mongoTestPassword = "test"
	mongoTestDB       = "customers"
)

var pgPool *pgxpool.Pool
var mongoClient *mongo.Client

func TestMain(m *testing.M) {
	// build docker pool
	dockerPool, err := dockertest.NewPool("")
	if err != nil {
		logrus.Fatalf("failed to create pool - %v", err)
	}

	if err := dockerPool.Client.Ping(); err != nil {
		logrus.Fatalf("failed to connect to docker - %v", err)
	}

	// start postgres
	postgres, err := dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			fmt.Sprintf("POSTGRES_USER=%s", pgTestUser),
			fmt.Sprintf("POSTGRES_PASSWORD=%s", pgTestPassword),
			fmt.Sprintf("POSTGRES_DB=%s", pgTestDB),
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		logrus.Fatalf("failed to start postgresql - %v", err)
	}

	// connect to postgres
	pgHostPort := postgres.GetHostPort("5432/tcp")
	pgURI := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgTestUser, pgTestPassword, pgHostPort, pgTestDB)
	err = dockerPool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		defer cancel()

		var err error
		pgPool, err = pgxpool.Connect(ctx, pgURI)
		if err != nil {
			return err
		}
		return pgPool.Ping(ctx)
	})
	if err != nil {
		logrus.Fatalf("failed to establish connection to postgresql - %v", err)
	}

	// run migrations
	if err := migratePostgres(fmt.Sprintf("pgx://%s:%s@%s/%s?sslmode=disable", pgTestUser, pgTestPassword, pgHostPort, pgTestDB)); err != nil {
		logrus.Fatalf("failed to apply migrations - %v", err)
	}

	// start mongo
	mongodb, err := dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7",
		Env: []string{
			fmt.Sprintf("MONGO_INITDB_ROOT_USERNAME=%s", mongoTestUser),
			fmt.Sprintf("MONGO_INITDB_ROOT_PASSWORD=%s", mongoTestPassword),
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		logrus.Fatalf("failed to start mongodb - %v", err)
	}

	// connect to mongo
	mongoURI := fmt.Sprintf("mongodb://%s:%s@%s/?maxPoolSize=100", mongoTestUser, mongoTestPassword, mongodb.GetHostPort("27017/tcp"))
	err = dockerPool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		defer cancel()

		var err error
		mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
		if err != nil {
			return err
		}
		return mongoClient.Ping(ctx, readpref.Primary())
	})
	if err != nil {
		logrus.Fatalf("failed to establish connection to mongodb - %v", err)
	}

	// start tests
	code := m.Run()

	pgPool.Close()
	_ = mongoClient.Disconnect(context.Background())

	// purge postgresql
	if err := dockerPool.Purge(postgres); err != nil {
		logrus.Fatalf("failed to purge postgresql - %v", err)
	}

	// purge mongodb
	if err := dockerPool.Purge(mongodb); err != nil {
		logrus.Fatalf("failed to purge mongodb - %v", err)
	}

	os.Exit(code)
}

func migratePostgres(url string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func TestPostgresCustomerRepository(t *testing.T) {
	_, err := pgPool.Exec(context.Background(), "TRUNCATE customers")
	require.NoError(t, err, "failed to clean customers table")

	t.Log("running tests for postgres")
	testCustomerRepository(t, NewPostgresCustomerRepository(pgPool))
}

func TestMongoCustomerRepository(t *testing.T) {
	ctx := context.Background()
	db := mongoClient.Database(mongoTestDB)
	require.NoError(t, db.Collection(customersCollection).Drop(ctx), "failed to clean customers collection")

	repo := NewMongoCustomerRepository(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	require.NoError(t, repo.EnsureIndexes(ctx), "indexes creation must be repeatable")

	t.Log("running tests for mongo")
	testCustomerRepository(t, repo)
}

func seedCustomers(now int64) []*model.Customer {
	countries := []string{"US", "FR", "DE", ""}
	customers := make([]*model.Customer, 0, 20)

	for i := 0; i < 20; i++ {
		// pairs share creation time, last ones are older than new customer window
		createdAt := now - int64(i/2)*dayMillis
		if i >= 16 {
			createdAt = now - 40*dayMillis - int64(i/2)
		}

		customers = append(customers, &model.Customer{
			ID:        uuid.NewString(),
			Name:      fmt.Sprintf("Customer %02d", i),
			Email:     fmt.Sprintf("customer%02d@mail.com", i),
			Address:   model.Address{City: "City", Country: countries[i%len(countries)]},
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
	}

	customers[3].Name = "John"
	customers[7].Name = "Joanna"
	customers[11].Name = "Mark"
	return customers
}

func testCustomerRepository(t *testing.T, repo CustomerRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC).UnixMilli()
	customers := seedCustomers(now)

	t.Log("create 20 customers")
	{
		for _, c := range customers {
			require.NoError(t, repo.Create(ctx, c), "failed to create customer %s", c.Name)
		}
	}

	t.Log("id is generated when missing")
	{
		c := &model.Customer{Name: "Generated", CreatedAt: now - 100*dayMillis, UpdatedAt: now - 100*dayMillis}
		require.NoError(t, repo.Create(ctx, c))
		require.NotEmpty(t, c.ID, "id must be generated")

		found, err := repo.FindByID(ctx, c.ID)
		require.NoError(t, err)
		require.Equal(t, c, found)

		require.NoError(t, repo.DeleteByID(ctx, c.ID))
	}

	t.Log("find customer by id")
	{
		found, err := repo.FindByID(ctx, customers[0].ID)
		require.NoError(t, err)
		require.Equal(t, customers[0], found, "stored customer must be equal to created one")

		missing, err := repo.FindByID(ctx, uuid.NewString())
		require.NoError(t, err)
		require.Nil(t, missing, "missing customer must be reported as nil")
	}

	t.Log("pages concatenate to full listing ordered from the newest")
	{
		expected := make([]*model.Customer, len(customers))
		copy(expected, customers)
		sort.Slice(expected, func(i, j int) bool {
			if expected[i].CreatedAt != expected[j].CreatedAt {
				return expected[i].CreatedAt > expected[j].CreatedAt
			}
			return expected[i].ID > expected[j].ID
		})

		var listed []*model.Customer
		var after *model.Cursor
		sizes := make([]int, 0)
		for {
			items, err := repo.FindPage(ctx, 9, after)
			require.NoError(t, err)

			sizes = append(sizes, len(items))
			listed = append(listed, items...)

			page := model.NewPage(items, 9)
			if page.Next == nil {
				break
			}
			after = page.Next
		}

		require.Equal(t, []int{9, 9, 2}, sizes)
		require.Equal(t, expected, listed)
	}

	t.Log("search customers by name prefix")
	{
		found, err := repo.FindByNamePrefix(ctx, "Jo")
		require.NoError(t, err)
		require.Len(t, found, 2)
		require.Equal(t, "Joanna", found[0].Name)
		require.Equal(t, "John", found[1].Name)

		found, err = repo.FindByNamePrefix(ctx, "Customer 1")
		require.NoError(t, err)
		require.Len(t, found, 9, "Customer 10..19 except renamed Mark")

		found, err = repo.FindByNamePrefix(ctx, "Cust.*")
		require.NoError(t, err)
		require.Empty(t, found, "prefix must be matched literally")
	}

	t.Log("collect statistics")
	{
		countByCountry := make(map[string]int)
		recent := 0
		for _, c := range customers {
			countByCountry[c.Address.Country]++
			if c.CreatedAt >= now-model.NewCustomerWindowMillis {
				recent++
			}
		}

		stats, err := repo.Statistics(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 20, stats.TotalCount)
		require.Equal(t, 16, recent)
		require.Equal(t, recent, stats.NewCount)
		require.Equal(t, countByCountry, stats.CountByCountry)
	}

	t.Log("update customer")
	{
		photoURL := "http://localhost:3000/api/photos/john.png"
		john := *customers[3]
		john.Email = "john@newmail.com"
		john.Address = model.Address{Street: "Main st. 1", City: "Austin", State: "TX", ZipCode: "73301", Country: "US"}
		john.PhotoURL = &photoURL
		john.UpdatedAt = now + 1000
		john.CreatedAt = 1 // creation time is immutable

		require.NoError(t, repo.Update(ctx, &john))

		found, err := repo.FindByID(ctx, john.ID)
		require.NoError(t, err)
		require.Equal(t, "john@newmail.com", found.Email)
		require.Equal(t, john.Address, found.Address)
		require.Equal(t, &photoURL, found.PhotoURL)
		require.Equal(t, now+1000, found.UpdatedAt)
		require.Equal(t, customers[3].CreatedAt, found.CreatedAt, "creation time must not be changed")
	}

	t.Log("update missing customer")
	{
		err := repo.Update(ctx, &model.Customer{ID: uuid.NewString(), Name: "Ghost", CreatedAt: now, UpdatedAt: now})

		var notFoundErr *apperrors.NotFoundErr
		require.ErrorAs(t, err, &notFoundErr)
	}

	t.Log("delete customers")
	{
		require.NoError(t, repo.DeleteByID(ctx, customers[0].ID))
		require.NoError(t, repo.DeleteByID(ctx, customers[0].ID), "delete must be idempotent")

		found, err := repo.FindByID(ctx, customers[0].ID)
		require.NoError(t, err)
		require.Nil(t, found, "customer was deleted, but still present in store")
	}
}

func TestGridFSPhotoStorage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger, _ := logrusTest.NewNullLogger()
	photos := storage.NewGridFSPhotoStorage(mongoClient.Database(mongoTestDB), storage.NewLocator("http://localhost:3000"), logger)

	key := "photos/" + uuid.NewString() + ".png"

	_, err := photos.Get(ctx, key)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, photos.Put(ctx, key, []byte("first")))
	require.NoError(t, photos.Put(ctx, key, []byte("second")), "put must overwrite existing content")

	content, err := photos.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), content)

	resolved, err := photos.KeyFromURL(photos.URL(key))
	require.NoError(t, err)
	require.Equal(t, key, resolved)

	require.NoError(t, photos.Delete(ctx, key))
	require.NoError(t, photos.Delete(ctx, key), "delete must be idempotent")

	_, err = photos.Get(ctx, key)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = photos.Get(ctx, "../escape")
	require.ErrorIs(t, err, storage.ErrInvalidKey)
}
