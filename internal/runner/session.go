package runner

import (
	"github.com/andrej220/rdeploy/pkg/remote"
)

// Session is either Unresolved or Active.
type Session interface {
	target() remote.Target
}

// Unresolved holds what is needed to open a connection on demand.
type Unresolved struct {
	Target remote.Target
}

// Active holds an open handle to Target.
type Active struct {
	Target remote.Target
	Handle remote.Handle
}

func (s Unresolved) target() remote.Target { return s.Target }
func (s Active) target() remote.Target     { return s.Target }

// Context is what a pipeline run needs to know about its target. It owns the
// session handle once one is opened; callers release it with Close, usually
// deferred right after NewContext.
type Context struct {
	Branch  string
	session Session
}

func NewContext(target remote.Target, branch string) *Context {
	return &Context{Branch: branch, session: Unresolved{Target: target}}
}

func (c *Context) Session() Session { return c.session }

func (c *Context) Target() remote.Target { return c.session.target() }

// Close releases the handle, if any, and returns the session to Unresolved.
func (c *Context) Close() error {
	active, ok := c.session.(Active)
	if !ok {
		return nil
	}
	c.session = Unresolved{Target: active.Target}
	return active.Handle.Close()
}
