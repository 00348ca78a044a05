// Package compose reads the subset of a compose file the dev topology needs:
// service names, images, environment, published ports, and commands.
package compose

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PortMapping is a single host-to-container published port.
type PortMapping struct {
	HostPort      string
	ContainerPort string
	Proto         string
}

// Service is one containerized service from the compose file.
type Service struct {
	Name    string
	Image   string
	Env     []string
	Ports   []*PortMapping
	Command []string
}

// File is a parsed compose file.
type File struct {
	Services map[string]*Service
}

type rawService struct {
	Image       string    `yaml:"image"`
	Environment yaml.Node `yaml:"environment"`
	Ports       []string  `yaml:"ports"`
	Command     yaml.Node `yaml:"command"`
}

type rawFile struct {
	Services map[string]rawService `yaml:"services"`
}

// Load reads and parses the compose file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read compose file: %w", err)
	}
	return Parse(data)
}

// Parse parses compose file contents.
func Parse(data []byte) (*File, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse compose file: %w", err)
	}
	if len(raw.Services) == 0 {
		return nil, fmt.Errorf("compose file defines no services")
	}

	f := &File{Services: make(map[string]*Service, len(raw.Services))}
	for name, rs := range raw.Services {
		if rs.Image == "" {
			return nil, fmt.Errorf("service '%s' has no image", name)
		}

		svc := &Service{Name: name, Image: rs.Image}

		env, err := parseEnvironment(&rs.Environment)
		if err != nil {
			return nil, fmt.Errorf("service '%s': %w", name, err)
		}
		svc.Env = env

		for _, p := range rs.Ports {
			pm, err := parsePort(p)
			if err != nil {
				return nil, fmt.Errorf("service '%s': %w", name, err)
			}
			svc.Ports = append(svc.Ports, pm)
		}

		cmd, err := parseCommand(&rs.Command)
		if err != nil {
			return nil, fmt.Errorf("service '%s': %w", name, err)
		}
		svc.Command = cmd

		f.Services[name] = svc
	}

	return f, nil
}

// Select returns the named services in the given order, erroring on any name
// the file does not define.
func (f *File) Select(names []string) ([]*Service, error) {
	services := make([]*Service, 0, len(names))
	for _, name := range names {
		svc, ok := f.Services[name]
		if !ok {
			return nil, fmt.Errorf("compose file does not define service '%s' (has: %s)",
				name, strings.Join(f.ServiceNames(), ", "))
		}
		services = append(services, svc)
	}
	return services, nil
}

// ServiceNames returns the sorted names of all defined services.
func (f *File) ServiceNames() []string {
	names := make([]string, 0, len(f.Services))
	for name := range f.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseEnvironment accepts both compose forms: a KEY=VALUE list and a
// KEY: VALUE map.
func parseEnvironment(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("invalid environment list: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		var m map[string]string
		if err := node.Decode(&m); err != nil {
			return nil, fmt.Errorf("invalid environment map: %w", err)
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		list := make([]string, 0, len(m))
		for _, k := range keys {
			list = append(list, k+"="+m[k])
		}
		return list, nil
	default:
		return nil, fmt.Errorf("invalid environment section")
	}
}

// parseCommand accepts both the string and the list form.
func parseCommand(node *yaml.Node) ([]string, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("invalid command list: %w", err)
		}
		return list, nil
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, fmt.Errorf("invalid command: %w", err)
		}
		return strings.Fields(s), nil
	default:
		return nil, fmt.Errorf("invalid command section")
	}
}

// parsePort parses the compose short syntax: "HOST:CONTAINER[/proto]" or a
// bare container port.
func parsePort(s string) (*PortMapping, error) {
	proto := "tcp"
	if idx := strings.IndexByte(s, '/'); idx != -1 {
		proto = s[idx+1:]
		s = s[:idx]
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		return &PortMapping{HostPort: parts[0], ContainerPort: parts[0], Proto: proto}, nil
	case 2:
		return &PortMapping{HostPort: parts[0], ContainerPort: parts[1], Proto: proto}, nil
	default:
		return nil, fmt.Errorf("invalid port mapping '%s'", s)
	}
}
