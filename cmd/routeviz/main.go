// Command routeviz fetches the topology of a running adapter over its
// HTTP API and renders it as DOT or SVG.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"mia-go/pkg/topoviz"
)

func main() {
	api := flag.String("api", "http://127.0.0.1:7781", "Base URL of the adapter HTTP API")
	out := flag.String("o", "topology.svg", "Output file (.svg or .dot)")
	flag.Parse()

	dot, err := fetchDOT(*api)
	if err != nil {
		log.Fatalf("failed to fetch topology: %v", err)
	}

	if strings.HasSuffix(*out, ".dot") {
		if err := os.WriteFile(*out, []byte(dot), 0644); err != nil {
			log.Fatalf("failed to write %s: %v", *out, err)
		}
		fmt.Printf("wrote %s\n", *out)
		return
	}

	img, err := topoviz.RenderDOT([]byte(dot))
	if err != nil {
		log.Fatalf("failed to render topology: %v", err)
	}
	if err := os.WriteFile(*out, img, 0644); err != nil {
		log.Fatalf("failed to write %s: %v", *out, err)
	}
	fmt.Printf("wrote %s\n", *out)
}

func fetchDOT(base string) (string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(base, "/") + "/topology.dot")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
