package unity

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PluginsDir is where the engine copies native plugins for a target architecture.
func PluginsDir(projectDir, arch string) string {
	return filepath.Join(projectDir, "Assets", "Plugins", arch)
}

func playerSettingsPath(projectDir string) string {
	return filepath.Join(projectDir, "ProjectSettings", "ProjectSettings.asset")
}

type PlayerSettings struct {
	ProductName   string `yaml:"productName"`
	CompanyName   string `yaml:"companyName"`
	BundleVersion string `yaml:"bundleVersion"`
}

type settingsDocument struct {
	PlayerSettings PlayerSettings `yaml:"PlayerSettings"`
}

// ReadPlayerSettings reads the player settings of an engine project. Serialized assets
// carry YAML directives and class tags that are stripped before decoding.
func ReadPlayerSettings(projectDir string) (PlayerSettings, error) {
	data, err := os.ReadFile(playerSettingsPath(projectDir))
	if err != nil {
		return PlayerSettings{}, fmt.Errorf("failed to read player settings: %w", err)
	}

	var doc settingsDocument
	if err := yaml.Unmarshal(stripAssetHeader(data), &doc); err != nil {
		return PlayerSettings{}, fmt.Errorf("failed to parse player settings: %w", err)
	}
	return doc.PlayerSettings, nil
}

func stripAssetHeader(data []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "%") || strings.HasPrefix(line, "--- ") || line == "---" {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// Identity returns the application name and version to file symbols under.
// Explicit values win, then the player settings, then the project directory name
// and "1.0".
func Identity(projectDir, application, version string) (string, string) {
	if application != "" && version != "" {
		return application, version
	}
	settings, err := ReadPlayerSettings(projectDir)
	if err != nil {
		settings = PlayerSettings{}
	}
	if application == "" {
		application = settings.ProductName
	}
	if application == "" {
		if abs, err := filepath.Abs(projectDir); err == nil {
			application = filepath.Base(abs)
		}
	}
	if version == "" {
		version = settings.BundleVersion
	}
	if version == "" {
		version = "1.0"
	}
	return application, version
}
