// DevOps Dashboard - GitLab Activity Aggregation Engine
// Copyright 2026 Oxedos
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Oxedos/devops-dashboard

package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Oxedos/devops-dashboard-sub000/internal/models"
)

// widgetsFile is the on-disk shape of the widget configuration file.
type widgetsFile struct {
	Widgets []models.WidgetConfig `yaml:"widgets"`
}

// LoadWidgets reads the widget configuration file. A missing file is not an
// error: the engine starts with no widgets and waits for configuration over
// the API.
func LoadWidgets(path string) ([]models.WidgetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read widgets file %s: %w", path, err)
	}

	var f widgetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse widgets file %s: %w", path, err)
	}

	if err := ValidateWidgets(f.Widgets); err != nil {
		return nil, err
	}
	return f.Widgets, nil
}

// ValidateWidgets checks every widget config: validator tags on the tagged
// union plus the variant-presence rule.
func ValidateWidgets(widgets []models.WidgetConfig) error {
	v := validator.New()
	for i, w := range widgets {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("widget %d: %w", i, err)
		}
		if err := v.Struct(w); err != nil {
			return fmt.Errorf("widget %d: %w", i, err)
		}
	}
	return nil
}
