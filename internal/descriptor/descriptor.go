package descriptor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPath        = "dataset/data.yaml"
	DefaultTrainImages = "images/train"
	DefaultValImages   = "images/val"
)

// Descriptor is the dataset config consumed by YOLO-style trainers.
type Descriptor struct {
	Train string   `yaml:"train"`
	Val   string   `yaml:"val"`
	NC    int      `yaml:"nc"`
	Names []string `yaml:"names,flow"`
}

func New(classes []string) Descriptor {
	return Descriptor{
		Train: DefaultTrainImages,
		Val:   DefaultValImages,
		NC:    len(classes),
		Names: append([]string(nil), classes...),
	}
}

func (d Descriptor) Marshal() ([]byte, error) {
	if len(d.Names) == 0 {
		return nil, errors.New("descriptor must declare at least one class")
	}
	if d.NC != len(d.Names) {
		return nil, fmt.Errorf("class count %d does not match %d names", d.NC, len(d.Names))
	}
	return yaml.Marshal(d)
}

// Write marshals d and writes it to path, creating parent directories.
func Write(path string, d Descriptor) error {
	data, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("error building descriptor: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func Read(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("error parsing %s: %w", path, err)
	}
	return d, nil
}
