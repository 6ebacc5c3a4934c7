// Package update checks GitHub releases for a newer build.
package update

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ReleasesURL is the latest-release endpoint of the project repository.
const ReleasesURL = "https://api.github.com/repos/codebysope/crypto-checker/releases/latest"

const checkTimeout = 5 * time.Second

// Result holds the outcome of a version check.
type Result struct {
	LatestVersion string
}

type ghRelease struct {
	TagName string `json:"tag_name"`
}

// Check asks url for the latest release and reports it when it is newer than
// currentVersion. Development builds never report an update. Returns nil on
// any error (non-fatal).
func Check(ctx context.Context, url, currentVersion string) *Result {
	current := strings.TrimPrefix(currentVersion, "v")
	if current == "" || current == "dev" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var release ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	if latest == "" || !newer(latest, current) {
		return nil
	}
	return &Result{LatestVersion: latest}
}

// newer compares dotted numeric versions. Non-numeric parts fall back to a
// plain inequality check.
func newer(latest, current string) bool {
	lp := strings.Split(latest, ".")
	cp := strings.Split(current, ".")
	for i := 0; i < max(len(lp), len(cp)); i++ {
		l, lerr := part(lp, i)
		c, cerr := part(cp, i)
		if lerr != nil || cerr != nil {
			return latest != current
		}
		if l != c {
			return l > c
		}
	}
	return false
}

func part(parts []string, i int) (int, error) {
	if i >= len(parts) {
		return 0, nil
	}
	return strconv.Atoi(parts[i])
}
