package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loykin/botvisor/pkg/client"
)

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newAPIClient(f APIFlags) (*client.Client, error) {
	timeout := f.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return client.New(client.Config{BaseURL: f.APIUrl, Timeout: timeout})
}
