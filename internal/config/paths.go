package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory osparc-tables writes its log file to.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\osparc\logs
//   - Unix: ~/.config/osparc/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "osparc-tables-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "osparc", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "osparc-tables-logs")
		}
		return filepath.Join(homeDir, ".config", "osparc", "logs")
	}
	return filepath.Join(configDir, "osparc", "logs")
}

// DefaultLogFile returns the JSON log file path used when logging.file is "default".
func DefaultLogFile() string {
	return filepath.Join(LogDirectory(), "osparc-tables.log")
}

// ResolveLogFile expands the logging.file setting.
// "" disables file logging; "default" maps to DefaultLogFile. The parent
// directory is created with owner-only permissions.
func ResolveLogFile(setting string) (string, error) {
	switch setting {
	case "":
		return "", nil
	case "default":
		setting = DefaultLogFile()
	}
	if err := os.MkdirAll(filepath.Dir(setting), 0700); err != nil {
		return "", err
	}
	return setting, nil
}
