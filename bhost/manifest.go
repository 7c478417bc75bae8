package bhost

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
)

// Manifest describes the pipeline a host serves:
//
//	[pipeline]
//	middleware = ["logging:mdlA", "forward", "logging:mdlB"]
//	service = "echo"
//	capacity = 4
type Manifest struct {
	Pipeline PipelineManifest `toml:"pipeline"`
}

// PipelineManifest lists unit references, outermost middleware first. A nil Capacity leaves the channel
// capacity to the environment; zero is a valid capacity.
type PipelineManifest struct {
	Middleware []string `toml:"middleware"`
	Service    string   `toml:"service"`
	Capacity   *int     `toml:"capacity"`
}

// PipelineConfig holds programmatic overrides of the manifest.
type PipelineConfig struct {
	Service    string
	Middleware []string
}

// refs drops blanks from a comma separated reference list.
func refs(list []string) []string {
	return lo.Compact(lo.Map(list, func(s string, _ int) string { return strings.TrimSpace(s) }))
}

// LoadManifest reads the manifest file at path.
func LoadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "read manifest")
	}

	var m Manifest
	if err := toml.Unmarshal(b, &m); err != nil {
		return Manifest{}, errors.Wrapf(err, "decode manifest %s", path)
	}

	return m, nil
}

// ResolveManifest starts from the environment, overlays the manifest file when one is configured and
// applies cfg last.
func ResolveManifest(env Environment, cfg PipelineConfig) (Manifest, error) {
	m := Manifest{Pipeline: PipelineManifest{
		Middleware: refs(env.middleware()),
		Service:    env.service(),
		Capacity:   lo.ToPtr(env.channelCapacity()),
	}}

	if path := env.manifestPath(); path != "" {
		file, err := LoadManifest(path)
		if err != nil {
			return Manifest{}, err
		}

		if file.Pipeline.Middleware != nil {
			m.Pipeline.Middleware = file.Pipeline.Middleware
		}
		if file.Pipeline.Service != "" {
			m.Pipeline.Service = file.Pipeline.Service
		}
		if file.Pipeline.Capacity != nil {
			m.Pipeline.Capacity = file.Pipeline.Capacity
		}
	}

	if cfg.Middleware != nil {
		m.Pipeline.Middleware = cfg.Middleware
	}
	if cfg.Service != "" {
		m.Pipeline.Service = cfg.Service
	}

	if m.Pipeline.Service == "" {
		return Manifest{}, errors.New("manifest names no service") //nolint:goerr113
	}

	return m, nil
}
