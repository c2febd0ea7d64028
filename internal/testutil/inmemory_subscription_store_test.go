package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/subscription"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

type SubscriptionStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemorySubscriptionStore
}

func TestSubscriptionStore(t *testing.T) {
	suite.Run(t, new(SubscriptionStoreSuite))
}

func (s *SubscriptionStoreSuite) SetupTest() {
	s.ctx = SetupContext()
	s.store = NewInMemorySubscriptionStore()
}

func (s *SubscriptionStoreSuite) newRecord(id, parentID string) *subscription.SubscriptionRecord {
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := subscription.NewRecord(s.ctx, "cust_1", "pv_1", start, start.AddDate(0, 1, 0))
	rec.ID = id
	rec.ParentID = parentID
	return rec
}

// Soft deletion lives on the embedded base model, not on the record's
// lifecycle state, and every read path must honor it.
func (s *SubscriptionStoreSuite) TestSoftDeletedRecordsAreInvisible() {
	keep := s.newRecord("sr_keep", "")
	gone := s.newRecord("sr_gone", "")
	child := s.newRecord("sr_child", "sr_keep")
	goneChild := s.newRecord("sr_gone_child", "sr_keep")
	for _, rec := range []*subscription.SubscriptionRecord{keep, gone, child, goneChild} {
		s.Require().NoError(s.store.CreateRecord(s.ctx, rec))
	}

	gone.BaseModel.Status = types.StatusDeleted
	s.Require().NoError(s.store.UpdateRecord(s.ctx, gone))
	goneChild.BaseModel.Status = types.StatusDeleted
	s.Require().NoError(s.store.UpdateRecord(s.ctx, goneChild))

	_, err := s.store.GetRecord(s.ctx, "sr_gone")
	s.True(ierr.IsNotFound(err))

	listed, err := s.store.ListRecords(s.ctx, nil)
	s.NoError(err)
	ids := make([]string, 0, len(listed))
	for _, rec := range listed {
		ids = append(ids, rec.ID)
	}
	s.ElementsMatch([]string{"sr_keep", "sr_child"}, ids)

	children, err := s.store.ListChildren(s.ctx, "sr_keep")
	s.NoError(err)
	s.Require().Len(children, 1)
	s.Equal("sr_child", children[0].ID)
}

func (s *SubscriptionStoreSuite) TestGetRecordScopedToOrganization() {
	rec := s.newRecord("sr_scoped", "")
	s.Require().NoError(s.store.CreateRecord(s.ctx, rec))

	other := types.SetOrganizationID(context.Background(), "org_other")
	_, err := s.store.GetRecord(other, "sr_scoped")
	s.True(ierr.IsNotFound(err))
}
