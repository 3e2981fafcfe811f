package xcode

import (
	"fmt"
	"os"

	"howett.net/plist"
)

// SetManifestString sets a string key in a property list file, keeping the file's
// existing format.
func SetManifestString(path, key, value string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat manifest: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var dict map[string]any
	format, err := plist.Unmarshal(data, &dict)
	if err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if dict == nil {
		dict = map[string]any{}
	}
	dict[key] = value

	out, err := plist.MarshalIndent(dict, format, "\t")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}

// ManifestString reads a string key from a property list file.
func ManifestString(path, key string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}
	var dict map[string]any
	if _, err := plist.Unmarshal(data, &dict); err != nil {
		return "", fmt.Errorf("failed to parse manifest: %w", err)
	}
	value, _ := dict[key].(string)
	return value, nil
}
