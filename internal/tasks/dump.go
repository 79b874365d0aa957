package tasks

import (
	"fmt"
	"path"
	"path/filepath"

	"github.com/alessio/shellescape"
	"github.com/andrej220/rdeploy/internal/runner"
)

// dumpTask writes a dump to the remote temp dir with cmd and fetches it to
// localPath. cmd receives the quoted remote path as its redirect target.
func dumpTask(name, dir, cmd, fileName, localPath string) runner.Task {
	remotePath := path.Join(remoteTmpDir, fileName)
	return runner.Task{
		Name:     name,
		Dir:      dir,
		Command:  cmd + " > " + shellescape.Quote(remotePath),
		Artifact: &runner.Artifact{Remote: remotePath, Local: localPath},
	}
}

// pgDump dumps the configured database to <db>_all_<date>.sql.
func (c *Catalog) pgDump(string) ([]runner.Task, error) {
	if c.database.Name == "" {
		return nil, &runner.ConfigurationError{Field: "database.name", Msg: "database name is not specified"}
	}
	fileName := fmt.Sprintf("%s_all_%s.sql", c.database.Name, c.date())
	cmd := fmt.Sprintf("pg_dump %s -U %s --no-owner --no-privileges",
		shellescape.Quote(c.database.Name), shellescape.Quote(c.database.User))
	return []runner.Task{
		dumpTask("pgdump", "", cmd, fileName, filepath.Join(c.outputDir, fileName)),
	}, nil
}

// dumpAll dumps every app with manage.py dumpdata to <project>_all_<date>.json.
func (c *Catalog) dumpAll(string) ([]runner.Task, error) {
	fileName := fmt.Sprintf("%s_all_%s.json", c.project.Name, c.date())
	return []runner.Task{
		dumpTask("dumpall", c.project.AppDir, c.manage("dumpdata"), fileName, filepath.Join(c.outputDir, fileName)),
	}, nil
}

// frontDump dumps each front app to its own file under the backup dir.
func (c *Catalog) frontDump(string) ([]runner.Task, error) {
	if len(c.project.FrontApps) == 0 {
		return nil, &runner.ConfigurationError{Field: "project.front_apps", Msg: "no front apps to dump are specified"}
	}
	prefix := fmt.Sprintf("%s_front_%s", c.project.Name, c.date())
	tasks := make([]runner.Task, 0, len(c.project.FrontApps))
	for _, app := range c.project.FrontApps {
		fileName := fmt.Sprintf("%s_%s.json", prefix, app)
		label := c.project.FrontAppLabel + "." + app
		tasks = append(tasks, dumpTask(
			"frontdump:"+app,
			c.project.AppDir,
			c.manage("dumpdata "+shellescape.Quote(label)),
			fileName,
			filepath.Join(c.outputDir, c.project.BackupDir, fileName),
		))
	}
	return tasks, nil
}
