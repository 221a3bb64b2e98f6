package config

import (
	"fmt"

	"github.com/ybox-project/ybox/pkg/ybox"
)

// ConfigError wraps err as a ybox.KindConfig typed error carrying context
// (usually the file and section/key under resolution).
func ConfigError(context string, err error) error {
	return ybox.NewError(ybox.KindConfig, context, err)
}

// ConfigErrorf is the printf-style convenience form.
func ConfigErrorf(context string, format string, args ...interface{}) error {
	return ConfigError(context, fmt.Errorf(format, args...))
}
