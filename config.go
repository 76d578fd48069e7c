package wsscan

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxLoadSize caps how many bytes of a region are loaded for inspection.
const DefaultMaxLoadSize = 64 << 20

// Config holds the scanner switches. It is passed by value and never mutated
// by the scanner.
type Config struct {
	// DetectShellcode enables the generic code-pattern path when no PE is found.
	DetectShellcode bool `yaml:"detect_shellcode"`
	// ScanData widens executability to readable pages of processes without DEP.
	ScanData bool `yaml:"scan_data"`
	// MaxLoadSize caps the bytes the Scanner loads per region.
	MaxLoadSize uint64 `yaml:"max_load_size"`
	// Arch selects the instruction set used by the code-pattern detector.
	Arch Arch `yaml:"arch"`
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() Config {
	return Config{
		DetectShellcode: true,
		ScanData:        false,
		MaxLoadSize:     DefaultMaxLoadSize,
		Arch:            ArchAMD64,
	}
}

// Validate checks that the configuration can drive a scan.
func (c Config) Validate() error {
	if !c.Arch.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedArch, c.Arch)
	}
	if c.MaxLoadSize == 0 {
		return fmt.Errorf("max_load_size must be greater than zero")
	}
	return nil
}

// LoadConfig decodes a YAML document on top of DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads the YAML configuration at path.
func LoadConfigFile(path string) (Config, error) {
	//nolint:gosec // G304: path is supplied by the operator.
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return LoadConfig(f)
}
