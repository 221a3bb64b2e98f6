package lock

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ybox-project/ybox/pkg/ybox"
)

// Status is the contents of a container's single-line status file:
// Stopped and Started are terminal for a poll; Transient (empty
// file, or file not yet created) means "keep polling".
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarted   Status = "started"
	StatusTransient Status = ""
)

// ReadStatus reads and trims a container's status file. A missing file is
// reported as StatusTransient rather than an error: the entrypoint has
// simply not written it yet.
func ReadStatus(path string) (Status, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StatusTransient, nil
		}
		return StatusTransient, err
	}
	return Status(strings.TrimSpace(string(contents))), nil
}

// DefaultStatusCeiling is the default bound on how long WaitForStatus will
// poll before giving up.
const DefaultStatusCeiling = 120 * time.Second

// WaitForStatus polls path with bounded exponential backoff until it
// contains want, ctx is cancelled, or ceiling elapses - whichever comes
// first. A ceiling <= 0 uses DefaultStatusCeiling.
func WaitForStatus(ctx context.Context, path string, want Status, ceiling time.Duration) error {
	if ceiling <= 0 {
		ceiling = DefaultStatusCeiling
	}
	deadline := time.Now().Add(ceiling)

	backoff := 100 * time.Millisecond
	const maxBackoff = 3 * time.Second

	for {
		status, err := ReadStatus(path)
		if err != nil {
			return ybox.NewError(ybox.KindContainerNotReady, path, err)
		}
		if status == want {
			return nil
		}

		if time.Now().After(deadline) {
			return ybox.NewError(ybox.KindContainerNotReady, path,
				fmt.Errorf("status file did not reach %q within %s (last seen %q)", want, ceiling, status))
		}

		select {
		case <-ctx.Done():
			return ybox.NewError(ybox.KindInterrupted, path, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
