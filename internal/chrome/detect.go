package chrome

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var platformPaths = map[string][]string{
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		`C:\Users\%USERNAME%\AppData\Local\Google\Chrome\Application\chrome.exe`,
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chrome.app/Contents/MacOS/Chrome",
	},
	"linux": {
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	},
}

var lookPathNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"}

// Detect finds the Chrome executable: CHROME_PATH first, then the configured
// path, then the well-known install locations, then PATH.
func Detect(configured string) (string, error) {
	return detect(os.Getenv("CHROME_PATH"), configured, runtime.GOOS, exec.LookPath)
}

func detect(envPath, configured, goos string, lookPath func(string) (string, error)) (string, error) {
	for _, p := range []string{envPath, configured} {
		if isFile(p) {
			return p, nil
		}
	}

	for _, p := range platformPaths[goos] {
		if strings.Contains(p, "%USERNAME%") {
			user := os.Getenv("USERNAME")
			if user == "" {
				continue
			}
			p = strings.ReplaceAll(p, "%USERNAME%", user)
		}
		if isFile(p) {
			return p, nil
		}
	}

	if goos != "windows" {
		for _, name := range lookPathNames {
			if p, err := lookPath(name); err == nil {
				return p, nil
			}
		}
	}
	return "", ErrChromeNotFound
}

func isFile(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
