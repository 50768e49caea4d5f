// Command ribctl is a thin client for ribd's /cli HTTP endpoint: it
// submits one static-route or show command line and prints the result,
// narrowing spec.md's "operator CLI/VTY command table" collaborator to
// the HTTP surface cmd/ribd actually exposes.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "ribd HTTP listen address")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	line := strings.Join(flag.Args(), " ")
	if line == "" {
		fmt.Fprintln(os.Stderr, "usage: ribctl [-addr url] <command...>")
		os.Exit(2)
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Post(*addr+"/cli", "text/plain", bytes.NewBufferString(line))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ribctl: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ribctl: reading response: %v\n", err)
		os.Exit(1)
	}

	var result struct {
		Code       int    `json:"code"`
		Message    string `json:"message"`
		Deprecated bool   `json:"deprecated"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Fprintf(os.Stderr, "ribctl: decoding response: %v\n", err)
		os.Exit(1)
	}

	if result.Deprecated {
		fmt.Fprintln(os.Stderr, "% Warning: deprecated command syntax, use the canonical form")
	}
	fmt.Println(result.Message)
	if result.Code != 0 {
		os.Exit(1)
	}
}
