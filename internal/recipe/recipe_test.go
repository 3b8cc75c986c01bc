package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composureai/perfectstorm/internal/psapi"
)

func TestParseContent(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  ContentKind
		wantArgs  []string
		wantError bool
	}{
		{
			name:     "run only",
			raw:      "run:\n  - docker\n  - run\n  - -d\n  - nginx\n",
			wantKind: KindRun,
			wantArgs: []string{"docker", "run", "-d", "nginx"},
		},
		{
			name:     "exec only",
			raw:      "exec:\n  - echo\n  - hi\n",
			wantKind: KindExec,
			wantArgs: []string{"echo", "hi"},
		},
		{
			name:     "rm only",
			raw:      "rm:\n  - docker\n  - rm\n  - -f\n  - c1\n",
			wantKind: KindRm,
			wantArgs: []string{"docker", "rm", "-f", "c1"},
		},
		{
			name:      "none present is an error",
			raw:       "{}",
			wantError: true,
		},
		{
			name:      "run and exec together is an error",
			raw:       "run:\n  - a\nexec:\n  - b\n",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseContent(tt.raw)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, parsed.Kind)
			assert.Equal(t, tt.wantArgs, parsed.Args)
		})
	}
}

func TestExpandParams(t *testing.T) {
	params := map[string]string{"SERVER_ADDRESS": "10.0.0.1", "PORT": "8500"}
	args := []string{"--server=$SERVER_ADDRESS:$PORT", "$UNKNOWN", "literal"}

	got := ExpandParams(args, params)

	assert.Equal(t, []string{"--server=10.0.0.1:8500", "$UNKNOWN", "literal"}, got)
}

func TestParseRunSpec(t *testing.T) {
	args := []string{"docker", "run", "-d", "-p", "8080:80", "--publish=9090:90/tcp", "-p=badvalue", "nginx"}

	got := ParseRunSpec(args)

	assert.Equal(t, []PortMapping{
		{HostPort: "8080", ContainerPort: "80"},
		{HostPort: "9090", ContainerPort: "90"},
	}, got)
}

func TestFindNodeWithFreePorts(t *testing.T) {
	ports := []PortMapping{{HostPort: "8080", ContainerPort: "80"}}

	busy := psapi.Node{CloudID: "busy", Status: psapi.NodeStatusUp, Engine: psapi.Engine{Options: `{"ports":["8080:80"]}`}}
	free := psapi.Node{CloudID: "free", Status: psapi.NodeStatusUp, Engine: psapi.Engine{Options: `{"ports":["9090:90"]}`}}
	down := psapi.Node{CloudID: "down", Status: psapi.NodeStatusDown}

	t.Run("skips conflicting and down nodes", func(t *testing.T) {
		got := FindNodeWithFreePorts([]psapi.Node{busy, down, free}, ports)
		require.NotNil(t, got)
		assert.Equal(t, "free", got.CloudID)
	})

	t.Run("no candidate free", func(t *testing.T) {
		got := FindNodeWithFreePorts([]psapi.Node{busy, down}, ports)
		assert.Nil(t, got)
	})

	t.Run("node with unparseable options publishes nothing", func(t *testing.T) {
		weird := psapi.Node{CloudID: "weird", Status: psapi.NodeStatusUp, Engine: psapi.Engine{Options: "not json"}}
		got := FindNodeWithFreePorts([]psapi.Node{weird}, ports)
		require.NotNil(t, got)
		assert.Equal(t, "weird", got.CloudID)
	})

	t.Run("spec's literal boundary example: ports 80:80 conflicts with -p 80:8080", func(t *testing.T) {
		occupied := psapi.Node{CloudID: "occupied", Status: psapi.NodeStatusUp, Engine: psapi.Engine{Options: `{"ports":["80:80"]}`}}
		requested := []PortMapping{{HostPort: "80", ContainerPort: "8080"}}
		got := FindNodeWithFreePorts([]psapi.Node{occupied}, requested)
		assert.Nil(t, got, "a node already publishing host port 80 must be excluded")
	})
}
