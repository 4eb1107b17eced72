package download

// Level indicates the severity/type of a progress message.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// Event represents a progress update from the download engine.
//
// Events are delivered through the callback passed to NewScheduler, in no
// particular order across concurrent transfers. The engine has no rendering
// dependency; both the CLI and the TUI are plain consumers of this type.
type Event struct {
	Message string
	Level   Level
}
