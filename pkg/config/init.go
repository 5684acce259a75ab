package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoBrowse Configuration File
#
# Every key can be overridden by an environment variable:
# DITTOBROWSE_<SECTION>_<KEY>, e.g. DITTOBROWSE_LOGGING_LEVEL=DEBUG
#
`

// keyComments documents configuration keys in generated files, keyed by
// dotted path.
var keyComments = map[string]string{
	"logging":                     "Log output",
	"logging.level":               "DEBUG, INFO, WARN or ERROR",
	"logging.format":              "text or json",
	"logging.output":              "stdout, stderr or a file path",
	"server":                      "Process-wide settings",
	"server.shutdown_timeout":     "Grace period for in-flight requests on shutdown",
	"server.metrics":              "Prometheus endpoint (/metrics and /healthz)",
	"filesystem":                  "The browsed tree",
	"filesystem.type":             "local, s3 or memory",
	"filesystem.root":             "Directory that is served. Nothing outside it is reachable.",
	"filesystem.local.jail":       "Pin file access to root with an OS-level handle",
	"filesystem.s3":               "Credentials fall back to the default AWS chain",
	"listing":                     "Directory listings",
	"listing.limit":               "Maximum entries read from one directory",
	"listing.order":               "shuffle, name or mtime",
	"listing.keep_undated":        "List files without a modification time",
	"cache":                       "Thumbnail cache",
	"cache.store":                 "memory or badger",
	"cache.badger.dir":            "Empty keeps badger in memory",
	"cache.sweep":                 "Periodic removal of thumbnails whose file changed or vanished",
	"thumbnails":                  "Thumbnail generation",
	"thumbnails.max_dimension":    "Longest edge in pixels",
	"thumbnails.quality":          "JPEG quality, 1-100",
	"thumbnails.max_source_bytes": "Larger images are not thumbnailed",
	"thumbnails.rate_limit":       "Generations per second, 0 = unlimited",
	"adapters":                    "Protocol adapters",
	"adapters.http":               "Web UI and JSON API",
}

// InitConfig writes a default configuration file to the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists and force is false, or on write failure
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML keyed by mapstructure tags,
// with durations in their string form and keyComments attached.
func generateYAMLWithComments(cfg *Config) (string, error) {
	node, err := toNode(reflect.ValueOf(cfg).Elem(), "")
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	return buf.String(), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func toNode(v reflect.Value, path string) (*yaml.Node, error) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return scalar("!!null", "null"), nil
		}
		v = v.Elem()
	}

	if v.Type() == durationType {
		return scalar("!!str", time.Duration(v.Int()).String()), nil
	}

	switch v.Kind() {
	case reflect.Struct:
		m := &yaml.Node{Kind: yaml.MappingNode}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
			if name == "" || name == "-" {
				continue
			}
			if err := appendPair(m, name, v.Field(i), path); err != nil {
				return nil, err
			}
		}
		return m, nil

	case reflect.Map:
		m := &yaml.Node{Kind: yaml.MappingNode}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, fmt.Sprint(k.Interface()))
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := appendPair(m, k, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())), path); err != nil {
				return nil, err
			}
		}
		return m, nil

	case reflect.Slice, reflect.Array:
		s := &yaml.Node{Kind: yaml.SequenceNode}
		for i := 0; i < v.Len(); i++ {
			n, err := toNode(v.Index(i), path)
			if err != nil {
				return nil, err
			}
			s.Content = append(s.Content, n)
		}
		return s, nil

	case reflect.String:
		return scalar("!!str", v.String()), nil
	case reflect.Bool:
		return scalar("!!bool", strconv.FormatBool(v.Bool())), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar("!!int", strconv.FormatInt(v.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return scalar("!!int", strconv.FormatUint(v.Uint(), 10)), nil
	case reflect.Float32, reflect.Float64:
		f := strconv.FormatFloat(v.Float(), 'g', -1, 64)
		if !strings.ContainsAny(f, ".eEIN") {
			f += ".0"
		}
		return scalar("!!float", f), nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %s", path, v.Type())
	}
}

func appendPair(m *yaml.Node, key string, v reflect.Value, parent string) error {
	path := key
	if parent != "" {
		path = parent + "." + key
	}

	value, err := toNode(v, path)
	if err != nil {
		return err
	}

	k := scalar("!!str", key)
	k.HeadComment = keyComments[path]
	m.Content = append(m.Content, k, value)
	return nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
