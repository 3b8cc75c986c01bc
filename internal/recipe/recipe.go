// Package recipe parses the content a `docker` recipe carries and
// implements the pure, testable pieces of the Trigger Handler Host
// contract (spec.md §4.8): decoding run/exec/rm specs, $VAR expansion
// from recipe params, and the port-conflict node-selection rule `run`
// commands use. The full host-process dispatch loop (claiming triggers,
// invoking `docker`, publishing results) is deliberately out of scope
// per spec.md §1 — only the logic a reconciler or a handler needs to
// agree on lives here.
package recipe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/composureai/perfectstorm/internal/psapi"
)

// RunSpec is the `run` variant of a recipe's content: a `docker run -d`
// invocation (spec.md §4.8).
type RunSpec struct {
	Args []string `yaml:"run"`
}

// ExecSpec is the `exec` variant: a command run inside an existing
// container, which requires a concrete TargetNode.
type ExecSpec struct {
	Args []string `yaml:"exec"`
}

// RmSpec is the `rm` variant: removal of a previously created resource.
type RmSpec struct {
	Args []string `yaml:"rm"`
}

// content is the union shape recipe.Content decodes into; exactly one of
// Run, Exec, Rm may be set.
type content struct {
	Run  []string `yaml:"run"`
	Exec []string `yaml:"exec"`
	Rm   []string `yaml:"rm"`
}

// ContentKind distinguishes which recipe content variant was parsed.
type ContentKind int

const (
	KindRun ContentKind = iota
	KindExec
	KindRm
)

// ParsedContent is the decoded form of a recipe's content field, plus
// which variant it was (spec.md §4.8).
type ParsedContent struct {
	Kind ContentKind
	Args []string
}

// ParseContent decodes a recipe's YAML content, enforcing that exactly
// one of run/exec/rm is present — `run`+`exec` together is a hard error
// (spec.md §4.8).
func ParseContent(raw string) (*ParsedContent, error) {
	var c content
	if err := yaml.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decoding recipe content: %w", err)
	}

	present := 0
	var parsed ParsedContent
	if len(c.Run) > 0 {
		present++
		parsed = ParsedContent{Kind: KindRun, Args: c.Run}
	}
	if len(c.Exec) > 0 {
		present++
		parsed = ParsedContent{Kind: KindExec, Args: c.Exec}
	}
	if len(c.Rm) > 0 {
		present++
		parsed = ParsedContent{Kind: KindRm, Args: c.Rm}
	}

	switch present {
	case 0:
		return nil, fmt.Errorf("recipe content has none of run, exec, rm")
	case 1:
		return &parsed, nil
	default:
		return nil, fmt.Errorf("recipe content must have exactly one of run, exec, rm; got %d", present)
	}
}

// ExpandParams substitutes `$VAR` occurrences in each argument with the
// corresponding entry from params (spec.md §4.8, "Variables ($VAR) in
// command arguments are expanded from recipe.params"). Unknown variables
// are left untouched.
func ExpandParams(args []string, params map[string]string) []string {
	expanded := make([]string, len(args))
	for i, arg := range args {
		expanded[i] = expandOne(arg, params)
	}
	return expanded
}

var varPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandOne(arg string, params map[string]string) string {
	return varPattern.ReplaceAllStringFunc(arg, func(match string) string {
		name := match[1:]
		if value, ok := params[name]; ok {
			return value
		}
		return match
	})
}

// PortMapping is one `-p host:container` spec parsed from a `run`
// command's arguments.
type PortMapping struct {
	HostPort      string
	ContainerPort string
}

var portFlagPattern = regexp.MustCompile(`^(\d+):(\d+)(?:/(?:tcp|udp))?$`)

// ParseRunSpec extracts the host ports a `docker run -d` invocation would
// publish, by scanning its arguments for `-p`/`--publish host:container`
// specs (spec.md §4.8).
func ParseRunSpec(args []string) []PortMapping {
	var mappings []PortMapping
	for i := 0; i < len(args); i++ {
		arg := args[i]
		var value string
		switch {
		case arg == "-p" || arg == "--publish":
			if i+1 >= len(args) {
				continue
			}
			i++
			value = args[i]
		case strings.HasPrefix(arg, "-p="):
			value = strings.TrimPrefix(arg, "-p=")
		case strings.HasPrefix(arg, "--publish="):
			value = strings.TrimPrefix(arg, "--publish=")
		default:
			continue
		}

		if m := portFlagPattern.FindStringSubmatch(value); m != nil {
			mappings = append(mappings, PortMapping{HostPort: m[1], ContainerPort: m[2]})
		}
	}
	return mappings
}

// publishedPorts extracts the set of host ports a node's engine.options
// JSON blob already advertises as published: a `ports` key holding
// `"host:container"` strings (spec.md §4.8/§8, e.g. `{"ports":
// ["80:80"]}`). engine.options is free-form text per spec.md §3; nodes
// with non-JSON or no options simply publish nothing.
func publishedPorts(node psapi.Node) map[string]bool {
	ports := make(map[string]bool)
	if node.Engine.Options == "" {
		return ports
	}

	var decoded struct {
		Ports []string `json:"ports"`
	}
	if err := json.Unmarshal([]byte(node.Engine.Options), &decoded); err != nil {
		return ports
	}
	for _, p := range decoded.Ports {
		host, _, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		ports[host] = true
	}
	return ports
}

// FindNodeWithFreePorts picks the first UP node among candidates that
// does not already publish any of the host ports a `run` command
// requires (spec.md §4.8, "port requirements ... used to pick an UP node
// ... that does not already publish any of those host ports"). It
// returns nil if every candidate conflicts or none is UP.
func FindNodeWithFreePorts(candidates []psapi.Node, ports []PortMapping) *psapi.Node {
	for _, node := range candidates {
		if node.Status != psapi.NodeStatusUp {
			continue
		}
		published := publishedPorts(node)
		conflict := false
		for _, p := range ports {
			if published[p.HostPort] {
				conflict = true
				break
			}
		}
		if !conflict {
			return &node
		}
	}
	return nil
}
