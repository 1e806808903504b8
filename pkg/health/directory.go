package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/stkgate/pkg/directory"
)

// sentinelStocker is a name no site uses; looking it up exercises the store
// without depending on its contents.
const sentinelStocker = "~health"

// DirectoryChecker reports the directory healthy when a lookup completes,
// found or not.
type DirectoryChecker struct {
	Directory directory.Directory
}

// Check performs one stocker lookup.
func (d *DirectoryChecker) Check(ctx context.Context) Result {
	start := time.Now()
	_, err := d.Directory.Stocker(ctx, sentinelStocker)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("lookup failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	return Result{
		Healthy:   true,
		Message:   "directory reachable",
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type
func (d *DirectoryChecker) Type() CheckType {
	return CheckTypeDirectory
}
