package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/briandowns/spinner"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/redhatinsights/layerconf/internal/conf"
	"github.com/redhatinsights/layerconf/internal/engine"
	"github.com/redhatinsights/layerconf/internal/facts"
	"github.com/redhatinsights/layerconf/internal/l10n"
)

// Version is set at build time.
var Version = "dev"

func main() {
	log.SetFlags(0)
	log.SetPrefix("")

	if err := run(os.Stdout, os.Stderr, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			if msg := exitErr.Error(); msg != "" {
				log.Errorf("%s", msg)
			}
			os.Exit(exitErr.ExitCode())
		}
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

// run executes the command line args. Switches in the form understood by
// facts.ParseArgs are applied after every other setting.
func run(stdout, stderr io.Writer, args []string) error {
	switches, rest := splitSwitches(args[1:])
	cmd := &command{stdout: stdout, stderr: stderr, switches: switches}
	return cmd.app().Run(append([]string{args[0]}, rest...))
}

// splitSwitches separates the configuration switches from args.
func splitSwitches(args []string) (switches, rest []string) {
	prefixes := []string{
		facts.ArgConfigurationName,
		facts.ArgConfigurationUIName,
		facts.ArgConfigurationDBName,
		facts.ArgConfigurationVariant,
		facts.ArgProperty,
		facts.ArgConfigurationFolder,
	}
	for _, arg := range args {
		matched := false
		for _, p := range prefixes {
			if strings.HasPrefix(arg, p) {
				matched = true
				break
			}
		}
		if matched {
			switches = append(switches, arg)
		} else {
			rest = append(rest, arg)
		}
	}
	return switches, rest
}

type command struct {
	stdout   io.Writer
	stderr   io.Writer
	switches []string
	engine   *engine.Engine
}

func (cmd *command) app() *cli.App {
	return &cli.App{
		Name:      "layerconf",
		Usage:     l10n.T("inspect variant aware layered configuration"),
		Version:   Version,
		Writer:    cmd.stdout,
		ErrWriter: cmd.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "settings",
				Value: conf.DefaultPath,
				Usage: l10n.T("read bootstrap settings from `FILE`"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: l10n.T("set the log level to `LEVEL` (debug, info, warn, error)"),
			},
			&cli.StringFlag{
				Name:  "configuration-name",
				Usage: l10n.T("set the configuration `NAME`"),
			},
			&cli.StringSliceFlag{
				Name:  "ui-name",
				Usage: l10n.T("add a UI `NAME`"),
			},
			&cli.StringSliceFlag{
				Name:  "db-name",
				Usage: l10n.T("add a database `NAME`"),
			},
			&cli.StringFlag{
				Name:  "variant",
				Usage: l10n.T("set the explicit `VARIANTS`, separated by colons"),
			},
			&cli.StringSliceFlag{
				Name:  "property",
				Usage: l10n.T("override a property with `KEY:VALUE`"),
			},
			&cli.StringSliceFlag{
				Name:  "config-folder",
				Usage: l10n.T("search `DIR` for configuration files"),
			},
		},
		Before: cmd.setup,
		ExitErrHandler: func(*cli.Context, error) {
			// run returns the error to main.
		},
		Commands: []*cli.Command{
			{
				Name:   "variants",
				Usage:  l10n.T("print the resolved variants and classes"),
				Action: cmd.variants,
			},
			{
				Name:   "facts",
				Usage:  l10n.T("print the detected environment facts"),
				Action: cmd.facts,
			},
			{
				Name:      "get",
				Usage:     l10n.T("print the value of a property"),
				ArgsUsage: "KEY",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: l10n.T("resolve KEY below `PREFIX`"),
					},
					&cli.BoolFlag{
						Name:  "recursive",
						Usage: l10n.T("widen the prefix until KEY is found"),
					},
				},
				Action: cmd.get,
			},
			{
				Name:      "files",
				Usage:     l10n.T("list the configuration files for a base name"),
				ArgsUsage: "NAME EXT",
				Action:    cmd.files,
			},
		},
	}
}

func (cmd *command) setup(c *cli.Context) error {
	path := c.String("settings")
	source := conf.SettingsSource{Path: path, DropInDir: path + ".d/"}
	settings, err := source.Read()
	if err != nil {
		return cli.Exit(l10n.T("cannot read settings: %v", err), 1)
	}

	level := settings.LogLevel
	if s := c.String("log-level"); s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return cli.Exit(l10n.T("invalid log level '%s'", s), 1)
		}
	}
	goLevel, err := log.ParseLevel(strings.ToLower(level.String()))
	if err != nil {
		return cli.Exit(err, 1)
	}
	log.SetLevel(goLevel)
	log.Debugf("settings read from %s", path)

	logger := slog.New(slog.NewTextHandler(cmd.stderr, &slog.HandlerOptions{Level: level}))
	params := facts.NewParams()
	cmd.engine, err = engine.NewFromSettings(settings, params, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := applyFlags(c, params); err != nil {
		return cli.Exit(err, 1)
	}
	if _, err := facts.ParseArgs(params, cmd.switches); err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

func applyFlags(c *cli.Context, p *facts.Params) error {
	if name := c.String("configuration-name"); name != "" {
		if err := p.SetConfigurationName(name); err != nil {
			return err
		}
	}
	for _, name := range c.StringSlice("ui-name") {
		if err := p.AddUINames(name); err != nil {
			return err
		}
	}
	for _, name := range c.StringSlice("db-name") {
		if err := p.AddDBNames(name); err != nil {
			return err
		}
	}
	if v := c.String("variant"); v != "" {
		if err := p.SetExplicitVariants(v); err != nil {
			return err
		}
	}
	for _, o := range c.StringSlice("property") {
		if err := p.AddPropertyOverride(o); err != nil {
			return err
		}
	}
	for _, dir := range c.StringSlice("config-folder") {
		if err := p.AddConfigFolder(dir); err != nil {
			return err
		}
	}
	return nil
}

// spin runs fn behind a progress spinner when stderr is a terminal and
// layerconf.cli.Spinner allows it.
func (cmd *command) spin(suffix string, fn func() error) error {
	f, ok := cmd.stderr.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return fn()
	}
	enabled, err := cmd.engine.Config("layerconf.cli").Bool("Spinner", true)
	if err != nil {
		return err
	}
	if !enabled {
		return fn()
	}

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(f))
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()
	return fn()
}

func (cmd *command) variants(c *cli.Context) error {
	var res struct {
		variants, hosts, users []string
	}
	err := cmd.spin(l10n.T("resolving variants"), func() error {
		r, err := cmd.engine.Variants()
		res.variants, res.hosts, res.users = r.Variants, r.HostClasses, r.UserClasses
		return err
	})
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintf(c.App.Writer, "%s: %s\n", l10n.T("variants"), strings.Join(res.variants, ":"))
	fmt.Fprintf(c.App.Writer, "%s: %s\n", l10n.T("host classes"), strings.Join(res.hosts, ":"))
	fmt.Fprintf(c.App.Writer, "%s: %s\n", l10n.T("user classes"), strings.Join(res.users, ":"))
	return nil
}

func (cmd *command) facts(c *cli.Context) error {
	f, err := cmd.engine.Facts()
	if err != nil {
		return cli.Exit(err, 1)
	}
	rows := [][2]string{
		{"host", f.Host},
		{"user", f.User},
		{"os", f.OS},
		{"osversion", f.OSVersion},
		{"runtimeversion", f.RuntimeVersion},
		{"configuration", f.ConfigurationName},
		{"ui", strings.Join(f.UINames, ":")},
		{"db", strings.Join(f.DBNames, ":")},
		{"variants", strings.Join(f.ExplicitVariants, ":")},
	}
	for _, row := range rows {
		fmt.Fprintf(c.App.Writer, "%s: %s\n", row[0], row[1])
	}
	return nil
}

func (cmd *command) get(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("expected exactly one KEY"), 2)
	}
	key := c.Args().First()

	var value string
	var found bool
	err := cmd.spin(l10n.T("resolving %s", key), func() error {
		r, err := cmd.engine.Resolver()
		if err != nil {
			return err
		}
		value, found, err = r.Resolve(nil, c.String("prefix"), key, c.Bool("recursive"))
		return err
	})
	if err != nil {
		return cli.Exit(err, 1)
	}
	if !found {
		log.Debugf("property %s not found", key)
		return cli.Exit("", 1)
	}
	fmt.Fprintln(c.App.Writer, value)
	return nil
}

func (cmd *command) files(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit(l10n.T("expected NAME and EXT"), 2)
	}
	var files []string
	err := cmd.spin(l10n.T("searching configuration files"), func() error {
		var err error
		files, err = cmd.engine.ConfigurationFiles(c.Args().Get(0), c.Args().Get(1))
		return err
	})
	if err != nil {
		return cli.Exit(err, 1)
	}
	log.Infof("%s", l10n.TN("found %d file", "found %d files", uint32(len(files)), len(files)))
	for _, f := range files {
		fmt.Fprintln(c.App.Writer, f)
	}
	return nil
}
