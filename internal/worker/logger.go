package worker

import "github.com/martinemde/genwiz/internal/generator"

// Output line prefixes, one per generator log level.
const (
	TagSkip      = "[SKIP]"
	TagForce     = "[FORCE]"
	TagCreate    = "[CREATE]"
	TagInvoke    = "[INVOKE]"
	TagConflict  = "[CONFLICT]"
	TagIdentical = "[IDENTICAL]"
	TagInfo      = "[INFO]"
	TagOk        = "[OK]"
	TagError     = "[ERROR]"
)

// outputLogger forwards every level to Runtime.Output with its tag.
type outputLogger struct {
	rt *Runtime
}

var _ generator.Logger = outputLogger{}

func (l outputLogger) Write(text string)     { l.rt.Output("", text) }
func (l outputLogger) Writeln(text string)   { l.rt.Output("", text) }
func (l outputLogger) Skip(text string)      { l.rt.Output(TagSkip, text) }
func (l outputLogger) Force(text string)     { l.rt.Output(TagForce, text) }
func (l outputLogger) Create(text string)    { l.rt.Output(TagCreate, text) }
func (l outputLogger) Invoke(text string)    { l.rt.Output(TagInvoke, text) }
func (l outputLogger) Conflict(text string)  { l.rt.Output(TagConflict, text) }
func (l outputLogger) Identical(text string) { l.rt.Output(TagIdentical, text) }
func (l outputLogger) Info(text string)      { l.rt.Output(TagInfo, text) }
func (l outputLogger) Ok(text string)        { l.rt.Output(TagOk, text) }
func (l outputLogger) Error(text string)     { l.rt.Output(TagError, text) }
