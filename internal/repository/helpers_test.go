package repository

import (
	"time"

	"github.com/noah-isme/teg-intake-api/pkg/retry"
)

func newTestRunner() *retry.Runner {
	return retry.NewRunner(retry.Policy{Attempts: 3, Timeout: 5 * time.Second, Initial: time.Millisecond, Max: 2 * time.Millisecond}, retry.Hooks{}, nil)
}
