package hier

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures a Session the way vfscommon.Options configures
// rclone's VFS.
type Options struct {
	// RemoteCallsPerSecond throttles every Provider call (ChildInfos,
	// CreateNodeState, CreatePropertyState, CreateDeepNodeState) via
	// golang.org/x/time/rate. Zero disables throttling.
	RemoteCallsPerSecond float64
	// RemoteBurst is the token-bucket burst size paired with
	// RemoteCallsPerSecond.
	RemoteBurst int
	// RemoteCallTimeout is not read by the engine: provider calls run
	// under the caller's context and no timeout is added to them.
	RemoteCallTimeout time.Duration
	// Logger overrides the package-wide default logger for a Session.
	// Nil keeps logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// DefaultOptions mirrors vfscommon.DefaultOpt's role: sane defaults for
// a Session that doesn't care about rate limiting.
var DefaultOptions = Options{
	RemoteCallsPerSecond: 0,
	RemoteBurst:          1,
}
