// Package facts collects the runtime environment facts that configuration
// rules are matched against, and the startup parameters a process supplies
// before initialization.
package facts

import (
	"log/slog"
	"os"
	"os/user"
	"runtime"
	"strings"
)

// Unknown is substituted for any fact that cannot be determined.
const Unknown = "?"

// Facts is the immutable snapshot of the environment used during variant
// resolution.
type Facts struct {
	Host              string
	User              string
	OS                string
	OSVersion         string
	RuntimeVersion    string
	ConfigurationName string
	UINames           []string
	DBNames           []string
	ExplicitVariants  []string
}

// Detect gathers host, user and OS facts from the running system and combines
// them with the startup parameters. configurationName is used when p carries
// no explicit name.
func Detect(p *Params, configurationName string, logger *slog.Logger) Facts {
	f := Facts{
		Host:             hostname(),
		User:             username(),
		OS:               runtime.GOOS,
		OSVersion:        osVersion(),
		RuntimeVersion:   runtime.Version(),
		UINames:          p.UINames(),
		DBNames:          p.DBNames(),
		ExplicitVariants: p.ExplicitVariants(),
	}
	if name, ok := p.ConfigurationName(); ok {
		f.ConfigurationName = name
	} else {
		f.ConfigurationName = configurationName
	}

	logger.Debug("environment facts detected",
		"host", f.Host,
		"user", f.User,
		"os", f.OS,
		"osversion", f.OSVersion,
		"runtimeversion", f.RuntimeVersion,
		"configuration", f.ConfigurationName,
		"ui", strings.Join(f.UINames, ":"),
		"db", strings.Join(f.DBNames, ":"),
		"variants", strings.Join(f.ExplicitVariants, ":"),
	)
	return f
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return Unknown
	}
	return h
}

func username() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return Unknown
}
