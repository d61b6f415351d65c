// Command debugsearch runs one query through a configured search provider
// and prints the hits, for checking grounding connectivity outside the app.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hyperifyio/goproof/internal/search"
)

func main() {
	searxURL := flag.String("searx.url", os.Getenv("SEARX_URL"), "SearxNG base URL")
	filePath := flag.String("search.file", os.Getenv("SEARCH_FILE"), "JSON fixtures path; takes precedence over SearxNG")
	limit := flag.Int("limit", 5, "Maximum results to print")
	flag.Parse()

	query := "example query"
	if flag.NArg() > 0 {
		query = flag.Arg(0)
	}

	var prov search.Provider
	switch {
	case *filePath != "":
		prov = &search.FileProvider{Path: *filePath}
	case *searxURL != "":
		prov = &search.SearxNG{
			BaseURL:    *searxURL,
			HTTPClient: &http.Client{Timeout: 20 * time.Second},
			UserAgent:  "debugsearch/1.0",
		}
	default:
		fmt.Fprintln(os.Stderr, "set -searx.url or -search.file")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()
	res, err := prov.Search(ctx, query, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "err:", err)
		os.Exit(1)
	}

	fmt.Printf("%s: %d results for %q\n", prov.Name(), len(res), query)
	for i, r := range res {
		fmt.Printf("%d. %s - %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Printf("   %s\n", r.Snippet)
		}
	}
}
