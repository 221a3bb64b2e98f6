package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainerSpecArgvNeverShellsOut(t *testing.T) {
	spec := ContainerSpec{
		Image:    "docker.io/library/archlinux:latest",
		Name:     "c1",
		Hostname: "c1",
		UserNS:   UserNSKeepID,
		Env:      map[string]string{"LANG": "en_US.UTF-8"},
		Mounts: []Mount{
			{Host: "/home/u/.local/share/ybox/SHARED_ROOTS/arch", Guest: "/usr", Mode: MountReadOnly},
		},
		CapsDrop:   []string{"ALL"},
		NoNewPrivs: true,
		Command:    []string{"/ybox-init/entrypoint.sh"},
	}

	argv := spec.Argv()

	assert.Contains(t, argv, "--name")
	assert.Contains(t, argv, "c1")
	assert.Contains(t, argv, "--userns")
	assert.Contains(t, argv, "keep-id")
	assert.Contains(t, argv, "LANG=en_US.UTF-8")
	assert.Contains(t, argv, "/home/u/.local/share/ybox/SHARED_ROOTS/arch:/usr:ro")
	assert.Contains(t, argv, "ALL")
	assert.Equal(t, "docker.io/library/archlinux:latest", argv[len(argv)-2])
	assert.Equal(t, "/ybox-init/entrypoint.sh", argv[len(argv)-1])
}

func TestParseListOutputIgnoresMalformedLines(t *testing.T) {
	out := "c1\timg1\tUp 2 minutes\tabc123\n\nmalformed-line\n"
	entries := parseListOutput(out)
	assert := assert.New(t)
	assert.Len(entries, 1)
	assert.Equal("c1", entries[0].Name)
	assert.Equal("abc123", entries[0].ID)
}
