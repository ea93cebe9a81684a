package utils

import "os"

func DirectoryExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func HasGitRepo(path string) bool {
	info, err := os.Stat(path + string(os.PathSeparator) + ".git")
	return err == nil && info.IsDir()
}
