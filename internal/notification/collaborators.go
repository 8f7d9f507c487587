package notification

import (
	"context"
	"time"

	"github.com/mattjoyce/notifyd/internal/domain"
	"github.com/mattjoyce/notifyd/internal/plugin"
)

//go:generate mockgen -destination=mocks/mock_notification.go -package=mocks github.com/mattjoyce/notifyd/internal/notification Registry,Poster,BuildCauseFinder,GroupFinder

// Registry reports which plugins subscribe to a notification kind.
// Unknown kinds must yield an empty set.
type Registry interface {
	PluginsInterestedIn(kind string) plugin.IDSet
}

// Poster hands a message to the delivery queue. It returns once the queue
// owns the message, not once the plugin received it. delay is never negative.
type Poster interface {
	Post(ctx context.Context, msg Message, delay time.Duration) error
}

// BuildCauseFinder looks up the build cause of a pipeline run. A nil cause
// with a nil error means the run is unknown.
type BuildCauseFinder interface {
	FindBuildCause(ctx context.Context, pipelineName string, pipelineCounter int) (*domain.BuildCause, error)
}

// GroupFinder looks up the group a pipeline belongs to, ignoring case. An
// empty name with a nil error means the pipeline is in no group.
type GroupFinder interface {
	FindGroupName(ctx context.Context, pipelineName string) (string, error)
}
