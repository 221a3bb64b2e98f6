package config

// Placeholders is the controlled set of ${VAR}/$VAR expansions a profile or
// distribution INI may reference beyond the process environment.
// Every field corresponds to one recognized name; an INI value that
// references a recognized name with no value supplied here, and none in the
// process environment either, is a ConfigError. A name outside this set
// that is also absent from the environment is left as literal text.
type Placeholders struct {
	TargetHome        string
	TargetScriptsDir  string
	Home              string
	User              string
	XDGRuntimeDir     string
	XDGConfigHome     string
	XDGDataHome       string
	ContainerName     string
	ContainerUID      string
	ContainerGID      string
}

// recognizedNames lists every placeholder name that is part of the
// controlled set, independent of whether a value has been supplied for it
// in a given resolution (an empty/unset recognized name is an error, not a
// literal pass-through).
var recognizedNames = map[string]struct{}{
	"TARGET_HOME":        {},
	"TARGET_SCRIPTS_DIR": {},
	"HOME":               {},
	"USER":               {},
	"XDG_RUNTIME_DIR":    {},
	"XDG_CONFIG_HOME":    {},
	"XDG_DATA_HOME":      {},
	"CONTAINER_NAME":     {},
	"CONTAINER_UID":      {},
	"CONTAINER_GID":      {},
}

// asMap flattens the struct into the lookup table resolveEnv consults.
// Empty fields are omitted deliberately: an omitted-but-recognized name
// still triggers the "undefined placeholder in recognized set" error path
// in resolveEnv, rather than silently expanding to an empty string.
func (p Placeholders) asMap() map[string]string {
	m := map[string]string{}
	add := func(name, val string) {
		if val != "" {
			m[name] = val
		}
	}
	add("TARGET_HOME", p.TargetHome)
	add("TARGET_SCRIPTS_DIR", p.TargetScriptsDir)
	add("HOME", p.Home)
	add("USER", p.User)
	add("XDG_RUNTIME_DIR", p.XDGRuntimeDir)
	add("XDG_CONFIG_HOME", p.XDGConfigHome)
	add("XDG_DATA_HOME", p.XDGDataHome)
	add("CONTAINER_NAME", p.ContainerName)
	add("CONTAINER_UID", p.ContainerUID)
	add("CONTAINER_GID", p.ContainerGID)
	return m
}

func isRecognized(name string) bool {
	_, ok := recognizedNames[name]
	return ok
}
