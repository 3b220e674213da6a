//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"

	"bag-service/internal/store"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type postgresStorageSuite struct {
	suite.Suite

	container *postgres.PostgresContainer
	storage   *store.Postgres
}

func TestPostgresStorageSuite(t *testing.T) {
	suite.Run(t, new(postgresStorageSuite))
}

func (s *postgresStorageSuite) SetupSuite() {
	ctx := context.Background()

	container, connStr, err := startPostgres(ctx)
	s.Require().NoError(err)
	s.container = container

	s.storage, err = store.NewPostgres(connStr)
	s.Require().NoError(err)
}

func (s *postgresStorageSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *postgresStorageSuite) TestContract() {
	testStorage(s.T(), s.storage)
}

func (s *postgresStorageSuite) TestSiblingKeysUntouched() {
	t := s.T()
	ctx := context.Background()

	require.NoError(t, s.storage.Set(ctx, "iartworks_wishlist", []byte(`[{"id":1}]`)))
	require.NoError(t, store.PutJSON(ctx, s.storage, "iartwork", []int64{4}))

	v, err := s.storage.Get(ctx, "iartworks_wishlist")
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":1}]`, string(v))
}

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	return postgresContainer, connStr, nil
}
