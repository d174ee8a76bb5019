package workflow

import (
	"github.com/mortality-signals/signalsx/pkg/pipeline/activity"
)

// Context binds workflows to the activity context they schedule.
type Context struct {
	ActivityContext *activity.Context
}
