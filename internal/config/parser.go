package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Parser errors.
var (
	ErrInvalidYAML   = errors.New("invalid YAML format")
	ErrInvalidNumber = errors.New("invalid number format")
	ErrInvalidSize   = errors.New("invalid size format")
	ErrFileNotFound  = errors.New("configuration file not found")
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads configuration from a file path.
// It reads the file, substitutes environment variables, parses YAML,
// and applies defaults for missing values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrFileNotFound, "%s", path)
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data.
func ParseConfig(data []byte) (*Config, error) {
	data = substituteEnvVars(data)

	config := DefaultConfig()
	if err := parseYAML(data, config); err != nil {
		return nil, err
	}
	return config, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values.
func substituteEnvVars(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		content := string(match[2 : len(match)-1])

		if idx := strings.Index(content, ":-"); idx != -1 {
			if val := os.Getenv(content[:idx]); val != "" {
				return []byte(val)
			}
			return []byte(content[idx+2:])
		}
		return []byte(os.Getenv(content))
	})
}

// yamlNode is one "key: value" line and the lines nested under it.
type yamlNode struct {
	key      string
	value    string
	indent   int
	line     int
	children []*yamlNode
}

func parseYAML(data []byte, config *Config) error {
	root := &yamlNode{indent: -1}
	if err := buildTree(strings.Split(string(data), "\n"), root); err != nil {
		return err
	}
	return applyConfig(root, config)
}

// buildTree nests nodes by indentation.
func buildTree(lines []string, root *yamlNode) error {
	stack := []*yamlNode{root}

	for i, line := range lines {
		trimmed := strings.TrimSpace(stripComment(line))
		if trimmed == "" {
			continue
		}

		node, err := parseLine(trimmed, countIndent(line), i+1)
		if err != nil {
			return err
		}

		for len(stack) > 1 && stack[len(stack)-1].indent >= node.indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, node)
		stack = append(stack, node)
	}
	return nil
}

// stripComment drops a trailing "# ..." outside quotes.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t'):
			return line[:i]
		}
	}
	return line
}

// countIndent counts leading spaces. A tab counts as two.
func countIndent(line string) int {
	count := 0
	for _, ch := range line {
		if ch == ' ' {
			count++
		} else if ch == '\t' {
			count += 2
		} else {
			break
		}
	}
	return count
}

func parseLine(line string, indent, lineNo int) (*yamlNode, error) {
	colonIdx := strings.Index(line, ":")
	if colonIdx <= 0 {
		return nil, errors.Wrapf(ErrInvalidYAML, "line %d: expected key: value", lineNo)
	}

	return &yamlNode{
		key:    strings.TrimSpace(line[:colonIdx]),
		value:  unquote(strings.TrimSpace(line[colonIdx+1:])),
		indent: indent,
		line:   lineNo,
	}, nil
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// applyConfig applies parsed YAML nodes to the config struct. Unknown keys
// are ignored.
func applyConfig(root *yamlNode, config *Config) error {
	for _, node := range root.children {
		var err error
		switch node.key {
		case "storage":
			err = applyStorageConfig(node, &config.Storage)
		case "cache":
			err = applyCacheConfig(node, &config.Cache)
		case "logging":
			err = applyLogConfig(node, &config.Logging)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func applyStorageConfig(node *yamlNode, config *StorageConfig) error {
	for _, child := range node.children {
		if child.value == "" {
			continue
		}
		switch child.key {
		case "dataDir":
			config.DataDir = child.value
		case "backend":
			config.Backend = strings.ToLower(child.value)
		case "splitSize":
			config.SplitSize = child.value
		case "compression":
			config.Compression = strings.ToLower(child.value)
		case "readOnly":
			config.ReadOnly = parseBool(child.value)
		case "createIfNotExists":
			config.CreateIfNotExists = parseBool(child.value)
		case "syncOnWrite":
			config.SyncOnWrite = parseBool(child.value)
		}
	}
	return nil
}

func applyCacheConfig(node *yamlNode, config *CacheConfig) error {
	for _, child := range node.children {
		if child.value == "" {
			continue
		}
		switch child.key {
		case "policy":
			config.Policy = strings.ToLower(child.value)
		case "size":
			config.Size = child.value
		case "protectedRatio":
			val, err := strconv.ParseFloat(child.value, 64)
			if err != nil {
				return errors.Wrapf(ErrInvalidNumber, "line %d: cache.protectedRatio %q", child.line, child.value)
			}
			config.ProtectedRatio = val
		}
	}
	return nil
}

func applyLogConfig(node *yamlNode, config *LogConfig) error {
	for _, child := range node.children {
		if child.value == "" {
			continue
		}
		switch child.key {
		case "level":
			config.Level = child.value
		case "format":
			config.Format = child.value
		case "output":
			config.Output = child.value
		}
	}
	return nil
}

// parseBool parses a boolean string.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// sizeSuffixes is ordered longest first so "MB" is not read as "B".
var sizeSuffixes = []struct {
	suffix string
	mult   uint64
}{
	{"TB", 1 << 40},
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// ParseSize parses a size string like "64MB" or "16KB". A bare number is
// a byte count.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, nil
	}

	num, mult := s, uint64(1)
	for _, sz := range sizeSuffixes {
		if strings.HasSuffix(s, sz.suffix) {
			num, mult = strings.TrimSpace(strings.TrimSuffix(s, sz.suffix)), sz.mult
			break
		}
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidSize, "%q", s)
	}
	if n > 0 && mult > ^uint64(0)/n {
		return 0, errors.Wrapf(ErrInvalidSize, "%q overflows", s)
	}
	return n * mult, nil
}
