package service

import (
	"os"
	"strings"

	"token-gate-backend/internal/common/logger"
)

// FileListChecker answers list membership from two flat files that are
// edited out of band. The files are re-read on every call so changes take
// effect without a restart.
type FileListChecker struct {
	ogPath        string
	blacklistPath string
}

func NewFileListChecker(ogPath, blacklistPath string) *FileListChecker {
	return &FileListChecker{ogPath: ogPath, blacklistPath: blacklistPath}
}

func (c *FileListChecker) IsOG(username string) bool {
	return c.contains(c.ogPath, username)
}

func (c *FileListChecker) IsBlacklisted(username string) bool {
	return c.contains(c.blacklistPath, username)
}

func (c *FileListChecker) contains(path, username string) bool {
	if username == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to read list file")
		return false
	}
	needle := strings.ToLower(username)
	for _, line := range strings.Split(string(data), "\n") {
		if strings.ToLower(strings.TrimSpace(line)) == needle {
			return true
		}
	}
	return false
}
