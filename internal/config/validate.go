package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the errors into one, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// KnownProviders are the discovery providers the engine can build.
var KnownProviders = []string{"openai", "anthropic", "heuristic"}

func knownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}

// NormalizeAndValidate returns a normalized copy plus findings.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Store.Driver = strings.ToLower(strings.TrimSpace(out.Store.Driver))
	out.Discovery.Primary = strings.ToLower(strings.TrimSpace(out.Discovery.Primary))
	out.Discovery.Fallback = strings.ToLower(strings.TrimSpace(out.Discovery.Fallback))

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if strings.TrimSpace(out.Store.DSN) == "" {
			res.addErr("store.dsn is required when store.driver=postgres")
		}
	default:
		res.addErr("store.driver must be sqlite, postgres or memory (got %q)", out.Store.Driver)
	}

	// queue sanity
	if out.Queue.MaxConcurrentPosts <= 0 {
		res.addErr("queue.max_concurrent_posts must be > 0")
	} else if out.Queue.MaxConcurrentPosts > 10 {
		res.addWarn("queue.max_concurrent_posts is %d; every slot is a live browser page.", out.Queue.MaxConcurrentPosts)
	}
	if out.Queue.MaxAttempts <= 0 {
		res.addErr("queue.max_attempts must be > 0")
	}
	if out.Queue.TaskMaxAttempts <= 0 {
		res.addErr("queue.task_max_attempts must be > 0")
	}
	if out.Queue.BackoffBase <= 0 {
		res.addErr("queue.backoff_base must be > 0")
	}
	if out.Queue.BackoffMax > 0 && out.Queue.BackoffMax < out.Queue.BackoffBase {
		res.addWarn("queue.backoff_max (%s) is below queue.backoff_base (%s); every retry waits backoff_max.",
			out.Queue.BackoffMax, out.Queue.BackoffBase)
	}

	// browser
	if out.Browser.NavTimeout <= 0 || out.Browser.StepTimeout <= 0 || out.Browser.SubmitWait <= 0 {
		res.addErr("browser.nav_timeout, step_timeout and submit_wait must be > 0")
	}
	if out.Browser.PaceMax < out.Browser.PaceMin {
		res.addErr("browser.pace_max must be >= browser.pace_min")
	}

	// discovery
	d := out.Discovery
	if d.Primary == "" {
		res.addErr("discovery.primary is required")
	} else if !knownProvider(d.Primary) {
		res.addErr("discovery.primary %q is not one of %v", d.Primary, KnownProviders)
	}
	if d.Fallback != "" && !knownProvider(d.Fallback) {
		res.addErr("discovery.fallback %q is not one of %v", d.Fallback, KnownProviders)
	}
	if d.Fallback != "" && d.Fallback == d.Primary {
		res.addWarn("discovery.fallback equals discovery.primary; an outage will not fail over.")
	}
	if d.MinConfidence < 0 || d.MinConfidence > 1 {
		res.addErr("discovery.min_confidence must be within [0,1]")
	}
	if d.FieldFloor < 0 || d.FieldFloor > 1 {
		res.addErr("discovery.field_floor must be within [0,1]")
	}
	if d.FieldFloor > d.MinConfidence {
		res.addWarn("discovery.field_floor (%.2f) is above min_confidence (%.2f).", d.FieldFloor, d.MinConfidence)
	}
	if d.CostCeiling <= 0 {
		res.addWarn("discovery.cost_ceiling is not set; every discovery is flagged over ceiling.")
	}
	for _, name := range []string{d.Primary, d.Fallback} {
		if name == "" || name == "heuristic" {
			continue
		}
		pc, ok := d.Providers[name]
		if !ok {
			res.addErr("discovery.providers.%s is missing", name)
			continue
		}
		if pc.Model == "" {
			res.addErr("discovery.providers.%s.model is required", name)
		}
		if pc.APIKey == "" {
			res.addWarn("no API key for discovery provider %s; it will fail and fall back.", name)
		}
	}

	// email required fields if enabled (password comes from the keychain)
	if out.Email.Enabled {
		if strings.TrimSpace(out.Email.IMAPHost) == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if strings.TrimSpace(out.Email.Username) == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
		if out.Email.Wait <= 0 {
			res.addErr("email.wait must be > 0 when email.enabled=true")
		}
	}

	if strings.TrimSpace(out.BoardsFile) == "" {
		res.addErr("boards_file is required")
	}

	return out, res
}
