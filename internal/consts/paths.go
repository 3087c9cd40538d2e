package consts

import (
	"os"
	"path/filepath"
)

const (
	AppDirName         = ".orchestratord"
	ConfigFileName     = "config.yaml"
	DefaultWorkspaceID = "default"
	SkillsDirName      = "skills"
	SkillsRepoURL      = "https://example.invalid/orchestratord-skills.git"
)

func AppHomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, AppDirName)
}

func DefaultConfigPath() string {
	return filepath.Join(AppHomeDir(), ConfigFileName)
}

func DefaultWorkspaceDir() string {
	return filepath.Join(AppHomeDir(), "workspaces", DefaultWorkspaceID)
}

func GlobalSkillsDir() string {
	return filepath.Join(AppHomeDir(), SkillsDirName)
}
