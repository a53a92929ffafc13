package config

import (
	"os"

	"github.com/trgui-ng/trgui/internal/models"
)

// LoadInstanceInfo loads the primary instance info from instance.yaml.
// Returns nil if the file doesn't exist.
func LoadInstanceInfo(p Paths) (*models.InstanceInfo, error) {
	path := p.InstanceFile()
	if !FileExists(path) {
		return nil, nil
	}

	var info models.InstanceInfo
	if err := LoadYAML(path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SaveInstanceInfo saves the primary instance info to instance.yaml.
func SaveInstanceInfo(p Paths, info *models.InstanceInfo) error {
	if err := p.EnsureDir(); err != nil {
		return err
	}
	return SaveYAML(p.InstanceFile(), info)
}

// RemoveInstanceInfo removes the instance.yaml file.
func RemoveInstanceInfo(p Paths) error {
	path := p.InstanceFile()
	if !FileExists(path) {
		return nil
	}
	return os.Remove(path)
}
