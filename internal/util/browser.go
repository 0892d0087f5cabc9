package util

import (
	"fmt"
	"os/exec"
	"runtime"
)

// StatusPageURL local URL of the API status endpoint served on port
func StatusPageURL(port int) string {
	return fmt.Sprintf("http://localhost:%d/api/status", port)
}

// OpenStatusPage opens the status endpoint of a server listening on port and returns its URL
func OpenStatusPage(port int) (string, error) {
	url := StatusPageURL(port)
	return url, OpenBrowser(url)
}

// OpenBrowser starts the first launcher that works for the current platform
func OpenBrowser(url string) error {
	var err error
	for _, argv := range launchers(runtime.GOOS, url) {
		if err = exec.Command(argv[0], argv[1:]...).Start(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("open %s: %w", url, err)
}

// launchers command lines tried in order for goos
func launchers(goos, url string) [][]string {
	switch goos {
	case "windows":
		return [][]string{
			{"rundll32", "url.dll,FileProtocolHandler", url},
			{"explorer", url},
		}
	case "darwin":
		return [][]string{{"open", url}}
	default:
		out := [][]string{{"xdg-open", url}}
		for _, browser := range []string{"google-chrome", "firefox", "chromium-browser", "sensible-browser"} {
			out = append(out, []string{browser, url})
		}
		return out
	}
}
