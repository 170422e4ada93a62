package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/billing/internal/activity"
	"github.com/edvin/billing/internal/model"
)

type ExpirationSweepWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
	now time.Time
}

func TestExpirationSweepWorkflow(t *testing.T) {
	suite.Run(t, new(ExpirationSweepWorkflowTestSuite))
}

func (s *ExpirationSweepWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
	s.now = time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	s.env.SetStartTime(s.now)
}

func (s *ExpirationSweepWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *ExpirationSweepWorkflowTestSuite) result() SweepResult {
	s.True(s.env.IsWorkflowCompleted())
	s.Require().NoError(s.env.GetWorkflowError())
	var res SweepResult
	s.Require().NoError(s.env.GetWorkflowResult(&res))
	return res
}

func (s *ExpirationSweepWorkflowTestSuite) TestNothingToDo() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.MatchedBy(func(p activity.ListExpiringParams) bool {
		return p.WarningDays == 5 && p.Now.Equal(s.now)
	})).Return([]activity.SweepOrganization{}, nil)
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{}, nil)

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	s.Equal(SweepResult{}, s.result())
}

func (s *ExpirationSweepWorkflowTestSuite) TestWarnsExpiringOrganizations() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-1", Name: "Acme", BillingEmail: "owner@acme.test", Plan: "starter", BillingStatus: model.BillingActive, Deadline: s.now.Add(36 * time.Hour)},
		{ID: "org-2", Name: "Silent", BillingStatus: model.BillingTrialActive, Deadline: s.now.Add(24 * time.Hour)},
	}, nil)
	s.env.OnActivity("SendBillingNotice", mock.Anything, mock.MatchedBy(func(n model.BillingNotice) bool {
		return n.Kind == model.NoticeExpiring && n.OrganizationID == "org-1" && n.DaysLeft == 2 && n.To == "owner@acme.test"
	})).Return(nil).Once()
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{}, nil)

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	res := s.result()
	s.Equal(2, res.Expiring)
	s.Equal(1, res.NoticesSent)
}

func (s *ExpirationSweepWorkflowTestSuite) TestBlocksLapsedOrganizations() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{}, nil)
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-1", Name: "Acme", BillingEmail: "owner@acme.test", BillingStatus: model.BillingActive, Deadline: s.now.Add(-time.Hour)},
		{ID: "org-2", Name: "Trialco", BillingEmail: "trial@acme.test", BillingStatus: model.BillingTrialActive, Deadline: s.now.Add(-48 * time.Hour)},
	}, nil)
	s.env.OnActivity("BlockOrganization", mock.Anything, activity.BlockOrganizationParams{OrganizationID: "org-1", Now: s.now}).Return(true, nil).Once()
	s.env.OnActivity("BlockOrganization", mock.Anything, activity.BlockOrganizationParams{OrganizationID: "org-2", Now: s.now}).Return(true, nil).Once()
	s.env.OnActivity("SendBillingNotice", mock.Anything, mock.MatchedBy(func(n model.BillingNotice) bool {
		return n.Kind == model.NoticeExpired && n.DaysLeft == 0
	})).Return(nil).Twice()

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	res := s.result()
	s.Equal(2, res.Lapsed)
	s.Equal(2, res.Blocked)
	s.Equal(2, res.NoticesSent)
}

func (s *ExpirationSweepWorkflowTestSuite) TestAlreadyBlockedIsNotRewritten() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{}, nil)
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-1", BillingEmail: "owner@acme.test", BillingStatus: model.BillingBlocked, Deadline: s.now.Add(-72 * time.Hour)},
	}, nil)
	s.env.OnActivity("SendBillingNotice", mock.Anything, mock.Anything).Return(nil).Once()

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	res := s.result()
	s.Equal(0, res.Blocked)
	s.Equal(1, res.NoticesSent)
}

func (s *ExpirationSweepWorkflowTestSuite) TestRenewedBeforeBlockGetsNoNotice() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{}, nil)
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-1", BillingEmail: "owner@acme.test", BillingStatus: model.BillingActive, Deadline: s.now.Add(-time.Hour)},
	}, nil)
	s.env.OnActivity("BlockOrganization", mock.Anything, mock.Anything).Return(false, nil).Once()

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	res := s.result()
	s.Equal(0, res.Blocked)
	s.Equal(0, res.NoticesSent)
	s.Equal(0, res.NoticesFailed)
	s.env.AssertActivityNotCalled(s.T(), "SendBillingNotice", mock.Anything, mock.Anything)
}

func (s *ExpirationSweepWorkflowTestSuite) TestNoticeFailureDoesNotAbort() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-1", BillingEmail: "owner@acme.test", BillingStatus: model.BillingActive, Deadline: s.now.Add(24 * time.Hour)},
	}, nil)
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-2", BillingEmail: "owner@other.test", BillingStatus: model.BillingActive, Deadline: s.now.Add(-time.Hour)},
	}, nil)
	s.env.OnActivity("SendBillingNotice", mock.Anything, mock.Anything).Return(errors.New("postmark returned 503"))
	s.env.OnActivity("BlockOrganization", mock.Anything, mock.Anything).Return(true, nil).Once()

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	res := s.result()
	s.Equal(1, res.Blocked)
	s.Equal(2, res.NoticesFailed)
	s.Equal(0, res.NoticesSent)
}

func (s *ExpirationSweepWorkflowTestSuite) TestBlockFailureSkipsNotice() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{}, nil)
	s.env.OnActivity("ListLapsedOrganizations", mock.Anything, mock.Anything).Return([]activity.SweepOrganization{
		{ID: "org-1", BillingEmail: "owner@acme.test", BillingStatus: model.BillingActive, Deadline: s.now.Add(-time.Hour)},
	}, nil)
	s.env.OnActivity("BlockOrganization", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	res := s.result()
	s.Equal(1, res.BlockFailures)
	s.Equal(0, res.NoticesSent)
}

func (s *ExpirationSweepWorkflowTestSuite) TestListFailureFailsWorkflow() {
	s.env.OnActivity("ListExpiringOrganizations", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	s.env.ExecuteWorkflow(ExpirationSweepWorkflow, SweepParams{WarningDays: 5})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestDaysLeft(t *testing.T) {
	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)
	cases := map[time.Duration]int{
		36 * time.Hour:     2,
		24 * time.Hour:     1,
		time.Minute:        1,
		-time.Hour:         0,
		5 * 24 * time.Hour: 5,
	}
	for d, want := range cases {
		if got := daysLeft(now.Add(d), now); got != want {
			t.Errorf("daysLeft(%v) = %d, want %d", d, got, want)
		}
	}
}
