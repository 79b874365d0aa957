// Package tasks defines the named deployment tasks and the deploy pipeline
// for a project laid out the way the configuration describes.
package tasks

import (
	"fmt"
	"path"
	"time"

	"github.com/alessio/shellescape"
	"github.com/andrej220/rdeploy/internal/runner"
	"github.com/andrej220/rdeploy/pkg/config"
)

const (
	DeployPipeline = "deploy"
	dateLayout     = "2006-01-02"
	remoteTmpDir   = "/tmp"
)

// DeploySteps is the fixed order of the deploy pipeline.
var DeploySteps = []string{"checkout", "pull", "pipreq", "migrate", "compilemessages", "collectstatic", "restart"}

var entries []Entry

func init() {
	entries = []Entry{
		{Name: "clone", Short: "Clone the project repository into the app directory.", build: (*Catalog).clone},
		{Name: "checkout", Short: "Check out the environment's branch.", build: single((*Catalog).checkout)},
		{Name: "pull", Short: "Pull the branch from origin.", build: single((*Catalog).pull)},
		{Name: "pipreq", Short: "Install pip requirements into the virtualenv.", Aliases: []string{"install"}, build: single((*Catalog).pipreq)},
		{Name: "migrate", Short: "Apply database migrations.", build: single((*Catalog).migrate)},
		{Name: "compilemessages", Short: "Compile localized messages.", Aliases: []string{"compile-messages"}, build: single((*Catalog).compileMessages)},
		{Name: "collectstatic", Short: "Collect static assets.", Aliases: []string{"collect-static"}, build: single((*Catalog).collectStatic)},
		{Name: "start", Short: "Start all supervisor programs.", build: single((*Catalog).start)},
		{Name: "restart", Short: "Restart the project's supervisor service.", build: single((*Catalog).restart)},
		{Name: "stop", Short: "Stop the project's supervisor service.", build: single((*Catalog).stop)},
		{Name: "status", Short: "Show supervisor status.", build: single((*Catalog).status)},
		{
			Name:    "loadinitials",
			Short:   "Load initial and legacy data into a fresh installation.",
			Confirm: "You are about to load initial data into the target database",
			build:   (*Catalog).loadInitials,
		},
		{Name: "pgdump", Short: "Dump the database with pg_dump and fetch the SQL file.", build: (*Catalog).pgDump},
		{Name: "dumpall", Short: "Dump all project data with dumpdata and fetch the JSON file.", build: (*Catalog).dumpAll},
		{Name: "frontdump", Short: "Dump front-end app data into separate JSON files.", build: (*Catalog).frontDump},
		{
			Name:  DeployPipeline,
			Short: "Run checkout, pull, pipreq, migrate, compilemessages, collectstatic and restart.",
			build: (*Catalog).deploy,
		},
	}
}

// Entry describes one invocable command.
type Entry struct {
	Name    string
	Short   string
	Aliases []string
	// Confirm, when set, is the prompt shown before the command runs.
	Confirm string
	build   func(c *Catalog, branch string) ([]runner.Task, error)
}

// Catalog builds tasks from a configuration. It holds no run state.
type Catalog struct {
	project   config.Project
	database  config.Database
	outputDir string
	now       func() time.Time
}

type Option func(*Catalog)

// WithOutputDir sets the local directory fetched artifacts are written to.
func WithOutputDir(dir string) Option {
	return func(c *Catalog) { c.outputDir = dir }
}

// WithClock replaces time.Now for dump names.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

func New(cfg *config.File, opts ...Option) *Catalog {
	c := &Catalog{
		project:   cfg.Project,
		database:  cfg.Database,
		outputDir: ".",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func single(fn func(*Catalog, string) runner.Task) func(*Catalog, string) ([]runner.Task, error) {
	return func(c *Catalog, branch string) ([]runner.Task, error) {
		return []runner.Task{fn(c, branch)}, nil
	}
}

// Entries lists every command in display order.
func Entries() []Entry { return entries }

// Lookup finds an entry by name or alias.
func Lookup(name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
		for _, a := range e.Aliases {
			if a == name {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// Build returns the tasks behind the named command.
func (c *Catalog) Build(name, branch string) ([]runner.Task, error) {
	e, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	return e.build(c, branch)
}

func (c *Catalog) python() string {
	return path.Join(c.project.Venv, "bin/python")
}

func (c *Catalog) manage(args string) string {
	return c.python() + " manage.py " + args
}

func (c *Catalog) date() string {
	return c.now().Format(dateLayout)
}

func (c *Catalog) clone(string) ([]runner.Task, error) {
	if c.project.RepoURL == "" {
		return nil, &runner.ConfigurationError{Field: "project.repo_url", Msg: "repository url is not specified"}
	}
	return []runner.Task{{
		Name:    "clone",
		Dir:     c.project.RootDir,
		Command: fmt.Sprintf("git clone %s %s", shellescape.Quote(c.project.RepoURL), shellescape.Quote(c.project.AppDir)),
	}}, nil
}

func (c *Catalog) checkout(branch string) runner.Task {
	return runner.Task{
		Name:        "checkout",
		Dir:         c.project.AppDir,
		Command:     "git checkout " + shellescape.Quote(branch),
		NeedsBranch: true,
	}
}

func (c *Catalog) pull(branch string) runner.Task {
	cmd := "git pull"
	if branch != "" {
		cmd = "git pull origin " + shellescape.Quote(branch)
	}
	return runner.Task{Name: "pull", Dir: c.project.AppDir, Command: cmd}
}

func (c *Catalog) pipreq(string) runner.Task {
	return runner.Task{
		Name:    "pipreq",
		Dir:     c.project.AppDir,
		Prefix:  "source " + shellescape.Quote(path.Join(c.project.Venv, "bin/activate")),
		Command: "pip install -r " + shellescape.Quote(c.project.Requirements),
	}
}

func (c *Catalog) migrate(string) runner.Task {
	return runner.Task{Name: "migrate", Dir: c.project.AppDir, Command: c.manage("migrate")}
}

func (c *Catalog) compileMessages(string) runner.Task {
	return runner.Task{Name: "compilemessages", Dir: c.project.AppDir, Command: c.manage("compilemessages")}
}

func (c *Catalog) collectStatic(string) runner.Task {
	return runner.Task{Name: "collectstatic", Dir: c.project.AppDir, Command: c.manage("collectstatic --noinput")}
}

func (c *Catalog) start(string) runner.Task {
	return runner.Task{Name: "start", Command: "supervisorctl start all", Privileged: true}
}

func (c *Catalog) restart(string) runner.Task {
	return runner.Task{Name: "restart", Command: "supervisorctl restart " + c.project.Service, Privileged: true}
}

func (c *Catalog) stop(string) runner.Task {
	return runner.Task{Name: "stop", Command: "supervisorctl stop " + c.project.Service, Privileged: true}
}

func (c *Catalog) status(string) runner.Task {
	return runner.Task{Name: "status", Command: "supervisorctl status", Privileged: true}
}

func (c *Catalog) loadInitials(string) ([]runner.Task, error) {
	return []runner.Task{
		{Name: "load_initials", Dir: c.project.AppDir, Command: c.manage("load_initials")},
		{Name: "load_legacy", Dir: c.project.AppDir, Command: c.manage("load_legacy")},
	}, nil
}

func (c *Catalog) deploy(branch string) ([]runner.Task, error) {
	tasks := make([]runner.Task, 0, len(DeploySteps))
	for _, name := range DeploySteps {
		steps, err := c.Build(name, branch)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, steps...)
	}
	return tasks, nil
}
