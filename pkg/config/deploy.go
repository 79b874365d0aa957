package config

import (
	"fmt"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPort         = 22
	DefaultKeyPath      = "%h/.ssh/id_rsa"
	DefaultKnownHosts   = "%h/.ssh/known_hosts"
	DefaultRequirements = "requirements/base.txt"
	DefaultBackupDir    = "front_data_backup"
)

// File is the whole deployment configuration document.
type File struct {
	Project      Project                 `yaml:"project" json:"project" bson:"project"`
	Database     Database                `yaml:"database" json:"database" bson:"database"`
	Environments map[string]*Environment `yaml:"environments" json:"environments" bson:"environments" validate:"required,min=1,dive,required"`
	Report       Report                  `yaml:"report,omitempty" json:"report" bson:"report"`
}

// Project describes where the application lives on the remote host.
type Project struct {
	Name          string   `yaml:"name" json:"name" bson:"name" validate:"required,safename"`
	RepoURL       string   `yaml:"repo_url" json:"repo_url" bson:"repo_url"`
	RootDir       string   `yaml:"root_dir" json:"root_dir" bson:"root_dir" validate:"required,startswith=/"`
	AppDir        string   `yaml:"app_dir" json:"app_dir" bson:"app_dir" validate:"required,startswith=/"`
	Venv          string   `yaml:"venv" json:"venv" bson:"venv" validate:"required,startswith=/"`
	Service       string   `yaml:"service" json:"service" bson:"service" validate:"required,safename"`
	Requirements  string   `yaml:"requirements" json:"requirements" bson:"requirements" validate:"required"`
	BackupDir     string   `yaml:"backup_dir" json:"backup_dir" bson:"backup_dir" validate:"required"`
	FrontApps     []string `yaml:"front_apps,omitempty" json:"front_apps" bson:"front_apps" validate:"dive,safename"`
	FrontAppLabel string   `yaml:"front_app_label" json:"front_app_label" bson:"front_app_label" validate:"required,safename"`
}

// Database names the database dumped by pgdump.
type Database struct {
	Name string `yaml:"name" json:"name" bson:"name" validate:"omitempty,safename"`
	User string `yaml:"user" json:"user" bson:"user" validate:"required_with=Name"`
}

// Environment is one deployment target, e.g. "develop".
type Environment struct {
	Host                  string `yaml:"host" json:"host" bson:"host" validate:"required,hostname_rfc1123|ip"`
	Port                  int    `yaml:"port" json:"port" bson:"port" validate:"min=1,max=65535"`
	User                  string `yaml:"user" json:"user" bson:"user" validate:"required"`
	KeyPath               string `yaml:"key_path" json:"key_path" bson:"key_path" validate:"required"`
	Branch                string `yaml:"branch" json:"branch" bson:"branch"`
	KnownHosts            string `yaml:"known_hosts" json:"known_hosts" bson:"known_hosts"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key" json:"insecure_ignore_host_key" bson:"insecure_ignore_host_key"`
}

// Report configures where run reports go. Every sink is optional.
type Report struct {
	File  string      `yaml:"file" json:"file" bson:"file"`
	Mongo MongoReport `yaml:"mongo,omitempty" json:"mongo" bson:"mongo"`
	Kafka KafkaReport `yaml:"kafka,omitempty" json:"kafka" bson:"kafka"`
}

type MongoReport struct {
	URI        string `yaml:"uri" json:"uri" bson:"uri" validate:"omitempty,startswith=mongodb"`
	Database   string `yaml:"database" json:"database" bson:"database" validate:"required_with=URI"`
	Collection string `yaml:"collection" json:"collection" bson:"collection" validate:"required_with=URI"`
}

type KafkaReport struct {
	Brokers []string `yaml:"brokers,omitempty" json:"brokers" bson:"brokers" validate:"dive,hostname_port"`
	Topic   string   `yaml:"topic" json:"topic" bson:"topic" validate:"required_with=Brokers"`
}

var safeName = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("safename", func(fl validator.FieldLevel) bool {
		return safeName.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks f against its struct tags.
func Validate(f *File) error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset values the same way the project layout is
// conventionally derived from the project name.
func (f *File) ApplyDefaults() error {
	p := &f.Project
	if p.RootDir == "" && p.Name != "" {
		p.RootDir = path.Join("/opt", p.Name)
	}
	if p.AppDir == "" && p.RootDir != "" {
		p.AppDir = path.Join(p.RootDir, "project")
	}
	if p.Venv == "" && p.Name != "" {
		p.Venv = path.Join("/opt/.virtualenvs", p.Name)
	}
	if p.Service == "" && p.Name != "" {
		p.Service = "gunicorn_" + p.Name
	}
	if p.Requirements == "" {
		p.Requirements = DefaultRequirements
	}
	if p.BackupDir == "" {
		p.BackupDir = DefaultBackupDir
	}
	if p.FrontAppLabel == "" {
		p.FrontAppLabel = p.Name + "_front"
	}

	var login string
	for _, env := range f.Environments {
		if env == nil {
			continue
		}
		if env.Port == 0 {
			env.Port = DefaultPort
		}
		if env.KeyPath == "" {
			env.KeyPath = DefaultKeyPath
		}
		if env.KnownHosts == "" {
			env.KnownHosts = DefaultKnownHosts
		}
		if env.User == "" {
			if login == "" {
				u, err := user.Current()
				if err != nil {
					return fmt.Errorf("cannot determine default login user: %w", err)
				}
				login = u.Username
			}
			env.User = login
		}
	}
	return nil
}

// Environment returns the named environment.
func (f *File) Environment(name string) (*Environment, error) {
	env, ok := f.Environments[name]
	if !ok || env == nil {
		return nil, fmt.Errorf("unknown environment %q (known: %s)", name, strings.Join(f.EnvironmentNames(), ", "))
	}
	return env, nil
}

// EnvironmentNames lists the configured environments in sorted order.
func (f *File) EnvironmentNames() []string {
	names := make([]string, 0, len(f.Environments))
	for name := range f.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExpandPath resolves a leading "~" or a "%h" placeholder to the local home
// directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") && !strings.Contains(p, "%h") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory for %q: %w", p, err)
	}
	p = strings.ReplaceAll(p, "%h", home)
	if p == "~" {
		return home, nil
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:]), nil
	}
	return p, nil
}
