// Package config loads the YAML session configuration: joint binding
// naming, file locations, text format options and TCP marker options.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BindingConfig names the rig joints.
type BindingConfig struct {
	BaseName   string `yaml:"base_name"`
	BoneName   string `yaml:"bone_name"`
	StartIndex int    `yaml:"start_index"`
	Joints     int    `yaml:"joints"`
	SuffixA    string `yaml:"suffix_a"`
	SuffixB    string `yaml:"suffix_b"`
}

// PathsConfig locates the per-arm trajectory folders and shared filenames.
type PathsConfig struct {
	FolderA     string `yaml:"folder_a"`
	FolderB     string `yaml:"folder_b"`
	Filename    string `yaml:"filename"`
	TCPFilename string `yaml:"tcp_filename"`
}

// FormatConfig describes the trajectory/TCP text format.
type FormatConfig struct {
	Delimiter string `yaml:"delimiter"` // auto | space | comma | tab
	TimeUnit  string `yaml:"time_unit"` // seconds | milliseconds
	HasHeader bool   `yaml:"has_header"`
	Degrees   bool   `yaml:"degrees"`
}

// TCPConfig controls TCP marker scattering.
type TCPConfig struct {
	Radius      float64 `yaml:"radius"`
	Step        int     `yaml:"step"`
	ColumnMajor bool    `yaml:"column_major"`
	Material    string  `yaml:"material"`
	YOffsetA    float64 `yaml:"y_offset_a"`
	YOffsetB    float64 `yaml:"y_offset_b"`
}

// RobotConfig locates the live machine for scrub and replay actions.
type RobotConfig struct {
	CredsFile string `yaml:"creds_file"`
	ArmA      string `yaml:"arm_a"`
	ArmB      string `yaml:"arm_b"`
	PlansDir  string `yaml:"plans_dir"`
}

// Config is the top-level session configuration.
type Config struct {
	Binding BindingConfig `yaml:"binding"`
	Paths   PathsConfig   `yaml:"paths"`
	Format  FormatConfig  `yaml:"format"`
	TCP     TCPConfig     `yaml:"tcp"`
	Robot   RobotConfig   `yaml:"robot"`
}

// Default returns the configuration matching the stock dual-arm setup.
func Default() Config {
	return Config{
		Binding: BindingConfig{
			BaseName:   "fer_link",
			BoneName:   "Bone",
			StartIndex: 0,
			Joints:     7,
			SuffixA:    ".001",
			SuffixB:    ".002",
		},
		Paths: PathsConfig{
			Filename:    "traj.txt",
			TCPFilename: "tcp.txt",
		},
		Format: FormatConfig{
			Delimiter: "auto",
			TimeUnit:  "seconds",
		},
		TCP: TCPConfig{
			Radius:      0.005,
			Step:        5,
			ColumnMajor: true,
			Material:    "trajectoryBlue",
			YOffsetA:    0.281,
			YOffsetB:    -0.281,
		},
	}
}

// Load reads a YAML config file over the defaults: fields absent from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
