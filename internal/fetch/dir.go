package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DirFetcher replays pages saved in a directory, one file per url as named by FileName.
// It is safe for concurrent use.
type DirFetcher struct {
	Root string
}

// FileName maps a url to the file DirFetcher reads it from:
// "https://utmb.world/en/runner-search?page=2" -> "en_runner-search__page=2.html".
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	name := strings.Trim(u.Path, "/")
	name = strings.ReplaceAll(name, "/", "_")
	if u.RawQuery != "" {
		name += "__" + strings.ReplaceAll(u.RawQuery, "&", "_")
	}
	if name == "" {
		name = "index"
	}
	return name + ".html", nil
}

func (f DirFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	err := ctx.Err()
	if err != nil {
		return Page{}, err
	}
	name, err := FileName(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	body, err := os.ReadFile(filepath.Join(f.Root, name))
	if os.IsNotExist(err) {
		return Page{URL: rawURL, Status: StatusNotFound, Code: 404}, nil
	}
	if err != nil {
		return Page{URL: rawURL, Status: StatusOtherError, Err: err}, nil
	}
	return Page{
		URL:    rawURL,
		Status: Classify(200, body),
		Code:   200,
		Body:   body,
	}, nil
}

// DirFactory shares one DirFetcher between every worker.
func DirFactory(root string) Factory {
	return func() (Fetcher, error) {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", root)
		}
		return DirFetcher{Root: root}, nil
	}
}
