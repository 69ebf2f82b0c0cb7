package driver

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"prload/internal/check"
	"prload/internal/input"
	"prload/internal/runner"
)

const (
	TeamName = "load-test-team"

	// ErrorsMetric is fed by the create call only.
	ErrorsMetric = "errors"

	nameTeamAdd   = "team_add"
	nameCreatePR  = "pull_request_create"
	nameGetReview = "users_get_review"
)

// TeamContext is what setup hands to every iteration and to teardown.
type TeamContext struct {
	TeamName string
	Users    []string
}

type teamMember struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

type teamAddRequest struct {
	TeamName string       `json:"team_name"`
	Members  []teamMember `json:"members"`
}

type createPRRequest struct {
	PullRequestID   string `json:"pull_request_id"`
	PullRequestName string `json:"pull_request_name"`
	AuthorID        string `json:"author_id"`
}

// PullRequestFlow creates a pull request and then looks up reviews for two
// random users. A zero think time means no pause.
type PullRequestFlow struct {
	Log *zap.Logger

	// Pause after setup so the service can settle before load starts.
	Converge time.Duration

	AfterCreate  time.Duration
	AfterLookup  time.Duration
	AfterLookup2 time.Duration
}

// NewPullRequestFlow uses the standard think times: 1s, 0.5s, 1s.
func NewPullRequestFlow(log *zap.Logger) *PullRequestFlow {
	if log == nil {
		log = zap.NewNop()
	}
	return &PullRequestFlow{
		Log:          log,
		Converge:     2 * time.Second,
		AfterCreate:  time.Second,
		AfterLookup:  500 * time.Millisecond,
		AfterLookup2: time.Second,
	}
}

// Setup seeds the team. A failure is logged and the run goes on; every
// later request is checked on its own.
func (f *PullRequestFlow) Setup(ctx context.Context, c *runner.Client) any {
	members := make([]teamMember, len(input.Roster))
	for i, a := range input.Roster {
		members[i] = teamMember{UserID: a.ID, Username: a.Username, IsActive: a.Active}
	}

	res := c.PostJSON(ctx, nameTeamAdd, "/team/add", teamAddRequest{
		TeamName: TeamName,
		Members:  members,
	})
	if res.Err != nil {
		f.Log.Warn("team setup failed", zap.String("team", TeamName), zap.Error(res.Err))
	} else {
		f.Log.Info("team setup done", zap.String("team", TeamName), zap.Int("status", res.Status), zap.Duration("duration", res.Duration))
	}

	runner.Sleep(ctx, f.Converge)

	return TeamContext{TeamName: TeamName, Users: input.IDs()}
}

// Iteration runs the three calls in order. None of them aborts the others.
func (f *PullRequestFlow) Iteration(ctx context.Context, vu *runner.VU, _ any) {
	st := vu.Stats()

	res := vu.PostJSON(ctx, nameCreatePR, "/pullRequest/create", createPRRequest{
		PullRequestID:   input.NewIdentifier(vu.ID, vu.Iteration),
		PullRequestName: input.PullRequestName(),
		AuthorID:        input.PickActor().ID,
	})
	created := check.Run(st, res,
		check.StatusIs("PR created successfully", 201),
		check.DurationUnder("PR create response time < 500ms", 500*time.Millisecond),
	)
	st.Rate(ErrorsMetric).Add(!created)

	if !runner.Sleep(ctx, f.AfterCreate) {
		return
	}

	res = vu.Get(ctx, nameGetReview, reviewPath(input.PickActor().ID))
	check.Run(st, res,
		check.StatusIs("Get reviewers successful", 200),
		check.DurationUnder("Get reviewers response time < 300ms", 300*time.Millisecond),
	)

	if !runner.Sleep(ctx, f.AfterLookup) {
		return
	}

	res = vu.Get(ctx, nameGetReview, reviewPath(input.PickActor().ID))
	check.Run(st, res, check.StatusIs("Get PR list successful", 200))

	runner.Sleep(ctx, f.AfterLookup2)
}

// Teardown only reports; remote state is left alone.
func (f *PullRequestFlow) Teardown(_ context.Context, data any) {
	team := TeamName
	if tc, ok := data.(TeamContext); ok {
		team = tc.TeamName
	}
	f.Log.Info("teardown completed", zap.String("team", team))
}

func reviewPath(userID string) string {
	return "/users/getReview?user_id=" + url.QueryEscape(userID)
}
