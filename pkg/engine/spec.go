package engine

import "fmt"

// MountMode is the bind-mount access mode requested for a Mount.
type MountMode string

const (
	MountReadWrite MountMode = "rw"
	MountReadOnly  MountMode = "ro"
)

// Mount is one host->guest bind mount.
type Mount struct {
	Host  string
	Guest string
	Mode  MountMode
}

func (m Mount) arg() string {
	mode := m.Mode
	if mode == "" {
		mode = MountReadWrite
	}
	return fmt.Sprintf("%s:%s:%s", m.Host, m.Guest, mode)
}

// Device is a host device node exposed inside the guest.
type Device struct {
	Host  string
	Guest string
}

// UserNSMode selects how the container maps the invoking user into the
// guest's user namespace.
type UserNSMode int

const (
	// UserNSNone runs the entrypoint as whatever user the image specifies;
	// used when the engine does not support keep-id (e.g. rootless docker).
	UserNSNone UserNSMode = iota
	// UserNSKeepID maps the host UID/GID 1:1 into the guest, the normal
	// rootless-podman mode.
	UserNSKeepID
)

// ContainerSpec is the engine-agnostic description of one container,
// produced by the profile compiler and consumed by the engine adapter's
// Create. All fields are resolved, concrete values: no further
// placeholder or template expansion happens past this point.
type ContainerSpec struct {
	Image      string
	Name       string
	Hostname   string
	UserNS     UserNSMode
	UID, GID   int
	Env        map[string]string
	Mounts     []Mount
	Devices    []Device
	CapsAdd    []string
	CapsDrop   []string
	NoNewPrivs bool
	SeccompProfile string
	DisableLabel   bool
	NetworkMode    string
	PidsLimit      int
	MemoryLimit    string
	WorkDir        string
	Entrypoint     string
	Command        []string
}

// Argv builds the `create` subcommand's argument vector from the
// ContainerSpec's fields. Every value here is already a concrete
// string; this never invokes a shell, so no escaping beyond argv
// separation is needed.
func (s ContainerSpec) Argv() []string {
	var args []string

	args = append(args, "--name", s.Name)
	if s.Hostname != "" {
		args = append(args, "--hostname", s.Hostname)
	}

	if s.UserNS == UserNSKeepID {
		args = append(args, "--userns", "keep-id")
	}
	if s.UID != 0 || s.GID != 0 {
		args = append(args, "--user", fmt.Sprintf("%d:%d", s.UID, s.GID))
	}

	for k, v := range s.Env {
		args = append(args, "--env", fmt.Sprintf("%s=%s", k, v))
	}

	for _, m := range s.Mounts {
		args = append(args, "--volume", m.arg())
	}
	for _, d := range s.Devices {
		args = append(args, "--device", fmt.Sprintf("%s:%s", d.Host, d.Guest))
	}

	for _, c := range s.CapsAdd {
		args = append(args, "--cap-add", c)
	}
	for _, c := range s.CapsDrop {
		args = append(args, "--cap-drop", c)
	}
	if s.NoNewPrivs {
		args = append(args, "--security-opt", "no-new-privileges")
	}
	if s.SeccompProfile != "" {
		args = append(args, "--security-opt", "seccomp="+s.SeccompProfile)
	}
	if s.DisableLabel {
		args = append(args, "--security-opt", "label=disable")
	}

	if s.NetworkMode != "" {
		args = append(args, "--network", s.NetworkMode)
	}
	if s.PidsLimit > 0 {
		args = append(args, "--pids-limit", fmt.Sprintf("%d", s.PidsLimit))
	}
	if s.MemoryLimit != "" {
		args = append(args, "--memory", s.MemoryLimit)
	}
	if s.WorkDir != "" {
		args = append(args, "--workdir", s.WorkDir)
	}
	if s.Entrypoint != "" {
		args = append(args, "--entrypoint", s.Entrypoint)
	}

	args = append(args, s.Image)
	args = append(args, s.Command...)

	return args
}
