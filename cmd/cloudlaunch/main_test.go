package main

import (
	"errors"
	"testing"

	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

func TestExitCode(t *testing.T) {
	degraded := &types.DeploymentOutcome{}
	degraded.RecordFailed("database")

	notReady := &types.DeploymentOutcome{}
	notReady.RecordNotReady("backend")

	warningsOnly := &types.DeploymentOutcome{}
	warningsOnly.Warnf("registry resolution failed, using fallback")

	tests := []struct {
		name    string
		outcome *types.DeploymentOutcome
		runErr  error
		strict  bool
		want    int
	}{
		{
			name:    "clean run",
			outcome: &types.DeploymentOutcome{},
			want:    0,
		},
		{
			name:    "degraded run without strict succeeds",
			outcome: degraded,
			want:    0,
		},
		{
			name:    "degraded run under strict",
			outcome: degraded,
			strict:  true,
			want:    2,
		},
		{
			name:    "unready service under strict",
			outcome: notReady,
			strict:  true,
			want:    2,
		},
		{
			name:    "warnings alone never fail strict",
			outcome: warningsOnly,
			strict:  true,
			want:    0,
		},
		{
			name:    "fatal error",
			outcome: &types.DeploymentOutcome{},
			runErr:  errors.New("cluster is unreachable"),
			want:    1,
		},
		{
			name:    "fatal error wins over strict degradation",
			outcome: degraded,
			runErr:  errors.New("terraform apply failed"),
			strict:  true,
			want:    1,
		},
		{
			name:   "fatal error with nil outcome",
			runErr: errors.New("invalid cloud provider"),
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.outcome, tt.runErr, tt.strict); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
