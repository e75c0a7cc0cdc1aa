//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "healthbff/pkg/platform/audit"
	"healthbff/pkg/platform/audit/store/postgres"
	"healthbff/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresAuditSuite) TearDownSuite() {
	s.pg.Terminate(context.Background())
}

func (s *PostgresAuditSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(context.Background(), "TRUNCATE audit_events")
	s.Require().NoError(err)
}

func (s *PostgresAuditSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base,
		Action:    string(audit.EventSessionCreated),
		SubjectID: "sub-1",
		SessionID: "sess-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: base.Add(time.Minute),
		Action:    string(audit.EventPolicyDenied),
		SubjectID: "sub-1",
		Reason:    "missing ROI",
	}))

	events, err := s.store.ListBySubject(ctx, "sub-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(string(audit.EventPolicyDenied), events[0].Action, "newest first")
	s.Equal(audit.CategorySecurity, events[0].Category)
	s.Equal(audit.CategoryOperations, events[1].Category)
}

func (s *PostgresAuditSuite) TestAppendWithIDIsIdempotent() {
	ctx := context.Background()
	id := uuid.New()
	event := audit.Event{Action: string(audit.EventAuthFailed), SubjectID: "sub-2"}

	s.Require().NoError(s.store.AppendWithID(ctx, id, event))
	s.Require().NoError(s.store.AppendWithID(ctx, id, event))

	events, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	s.Len(events, 1)
}
