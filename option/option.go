// Package option holds the processing options the compiler core consumes.
//
// Options are parsed once from the host's raw option map into one immutable
// value that is threaded explicitly through every entry point; no package in
// the core reads ambient state. Legacy option names are still accepted: set
// alongside their current name with the same value they produce a deprecation
// warning, with a different value a configuration error.
package option

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
)

// Recognized option names.
const (
	FullBindingGraphValidationName  = "loom.fullBindingGraphValidation"
	PrivateMemberValidationName     = "loom.privateMemberValidation"
	StaticMemberValidationName      = "loom.staticMemberValidation"
	KeysPerComponentShardName       = "loom.keysPerComponentShard"
	IgnoreProvisionKeyWildcardsName = "loom.ignoreProvisionKeyWildcards"
	IncludeStacktraceName           = "loom.includeStacktraceWithDeferredErrorMessages"
	FastInitName                    = "loom.fastInit"
)

// legacyAliases maps deprecated option names to their current equivalents.
var legacyAliases = map[string]string{
	"loom.experimentalKeysPerComponentShard": KeysPerComponentShardName,
	"loom.experimentalFastInit":              FastInitName,
}

// DefaultKeysPerShard bounds generated class size when the option is unset.
const DefaultKeysPerShard = 3500

// Options is the immutable configuration of one compilation.
type Options struct {
	// FullBindingGraphValidation seeds resolution from every declared
	// binding, not only entry points, reporting findings at this severity.
	FullBindingGraphValidation diag.Severity

	// PrivateMemberValidation / StaticMemberValidation control the severity
	// of invalid injection-site findings for private and static members.
	PrivateMemberValidation diag.Severity
	StaticMemberValidation  diag.Severity

	// KeysPerComponentShard bounds the number of binding keys per generated
	// shard.
	KeysPerComponentShard int

	// IgnoreProvisionKeyWildcards collapses provision-key wildcard variance
	// for comparison purposes only.
	IgnoreProvisionKeyWildcards bool

	// IncludeStacktraceWithDeferredErrorMessages attaches a captured stack
	// to deferred unresolved-reference errors.
	IncludeStacktraceWithDeferredErrorMessages bool

	// FastInit selects the switching-provider generation strategy.
	FastInit bool
}

// Default returns the option values used when nothing is configured.
func Default() Options {
	return Options{
		FullBindingGraphValidation: diag.None,
		PrivateMemberValidation:    diag.Error,
		StaticMemberValidation:     diag.Error,
		KeysPerComponentShard:      DefaultKeysPerShard,
	}
}

// Normalizer returns the key normalizer configured by these options.
func (o Options) Normalizer() key.Normalizer {
	return key.Normalizer{IgnoreProvisionKeyWildcards: o.IgnoreProvisionKeyWildcards}
}

// ConflictingOptionsError reports a legacy and a current option name set to
// different values.
type ConflictingOptionsError struct {
	Legacy, Current           string
	LegacyValue, CurrentValue string
}

// Error implements the error interface.
func (e ConflictingOptionsError) Error() string {
	return "conflicting options: " + e.Legacy + "=" + e.LegacyValue +
		" and " + e.Current + "=" + e.CurrentValue + " must agree"
}

// DeprecatedOptionError reports use of a legacy option name.
type DeprecatedOptionError struct {
	Legacy, Current string
}

// Error implements the error interface.
func (e DeprecatedOptionError) Error() string {
	return e.Legacy + " is deprecated; use " + e.Current
}

// InvalidOptionValueError reports an unparsable option value.
type InvalidOptionValueError struct {
	Name, Value, Allowed string
}

// Error implements the error interface.
func (e InvalidOptionValueError) Error() string {
	return "invalid value " + strconv.Quote(e.Value) + " for " + e.Name + " (allowed: " + e.Allowed + ")"
}

// UnknownOptionError reports an unrecognized option in the loom namespace.
type UnknownOptionError struct{ Name string }

// Error implements the error interface.
func (e UnknownOptionError) Error() string {
	return "unrecognized option " + e.Name
}

// Parse builds Options from the host's raw option map. All findings are
// accumulated; parsing never fails fast.
func Parse(raw map[string]string, sink *diag.Sink) Options {
	opts := Default()

	effective := map[string]string{}
	// Current names first, then fold legacy names in with conflict checks.
	for name, value := range raw {
		if !strings.HasPrefix(name, "loom.") {
			continue
		}
		if _, isLegacy := legacyAliases[name]; isLegacy {
			continue
		}
		effective[name] = value
	}
	for _, legacy := range sortedKeys(legacyAliases) {
		legacyValue, ok := raw[legacy]
		if !ok {
			continue
		}
		current := legacyAliases[legacy]
		if currentValue, both := effective[current]; both {
			if currentValue != legacyValue {
				sink.Report(diag.Error, ConflictingOptionsError{
					Legacy: legacy, Current: current,
					LegacyValue: legacyValue, CurrentValue: currentValue,
				}, legacy, model.Position{})
				continue
			}
			sink.Report(diag.Warning, DeprecatedOptionError{Legacy: legacy, Current: current}, legacy, model.Position{})
			continue
		}
		sink.Report(diag.Warning, DeprecatedOptionError{Legacy: legacy, Current: current}, legacy, model.Position{})
		effective[current] = legacyValue
	}

	for _, name := range sortedKeys(effective) {
		value := effective[name]
		switch name {
		case FullBindingGraphValidationName:
			if sev, ok := parseSeverity(value, true); ok {
				opts.FullBindingGraphValidation = sev
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "NONE, WARNING, ERROR"}, name, model.Position{})
			}
		case PrivateMemberValidationName:
			if sev, ok := parseSeverity(value, false); ok {
				opts.PrivateMemberValidation = sev
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "WARNING, ERROR"}, name, model.Position{})
			}
		case StaticMemberValidationName:
			if sev, ok := parseSeverity(value, false); ok {
				opts.StaticMemberValidation = sev
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "WARNING, ERROR"}, name, model.Position{})
			}
		case KeysPerComponentShardName:
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				opts.KeysPerComponentShard = n
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "positive integer"}, name, model.Position{})
			}
		case IgnoreProvisionKeyWildcardsName:
			if b, ok := parseBool(value); ok {
				opts.IgnoreProvisionKeyWildcards = b
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "true, false"}, name, model.Position{})
			}
		case IncludeStacktraceName:
			if b, ok := parseBool(value); ok {
				opts.IncludeStacktraceWithDeferredErrorMessages = b
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "true, false"}, name, model.Position{})
			}
		case FastInitName:
			if b, ok := parseBool(value); ok {
				opts.FastInit = b
			} else {
				sink.Report(diag.Error, InvalidOptionValueError{name, value, "true, false"}, name, model.Position{})
			}
		default:
			sink.Report(diag.Warning, UnknownOptionError{Name: name}, name, model.Position{})
		}
	}

	return opts
}

func parseSeverity(v string, allowNone bool) (diag.Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NONE":
		if allowNone {
			return diag.None, true
		}
		return 0, false
	case "WARNING":
		return diag.Warning, true
	case "ERROR":
		return diag.Error, true
	default:
		return 0, false
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

func sortedKeys[M ~map[string]string](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
