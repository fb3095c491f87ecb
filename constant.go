package consolefwd

import (
	"time"

	"github.com/lixenwraith/consolefwd/serializer"
)

// Level is a console severity name
type Level string

// Console levels
const (
	LevelLog   Level = "log"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// allLevels lists every recognized level in display order
var allLevels = []Level{LevelLog, LevelWarn, LevelError, LevelInfo, LevelDebug, LevelTrace}

// Origin tags
const (
	// SourceRenderer marks entries captured inside the isolated context
	SourceRenderer = "renderer"
	// SourceElectronRenderer marks request bodies posted to the sink
	SourceElectronRenderer = "electron-renderer"
)

// EventLogs is the boundary channel event carrying captured entries
const EventLogs = "console-forward:logs"

// NonSerializable replaces arguments that could not be structurally copied
const NonSerializable = serializer.NonSerializable

// Hard defaults
const (
	DefaultEndpoint       = "/api/debug/client-logs"
	DefaultDevServerURL   = "http://localhost:3000"
	DefaultBatchSize      = 10
	DefaultBatchTimeout   = 1000 * time.Millisecond
	DefaultRequestTimeout = 5 * time.Second
	// defaultHostPort applies when only a host variable is set
	defaultHostPort = "3001"
)
