// Package cli implements the simctl commands that drive a gapsim server.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serverFlag string
	apiKeyFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "simctl",
	Short: "Control a gapsim simulation server",
	Long:  "simctl drives household simulation runs over the gapsim HTTP API: create a run from a template, start it, trigger the observer pass, and export the results.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverFlag, "server", "s", "", "Server base URL (default: $GAPSIM_SERVER or http://localhost:8080)")
	RootCmd.PersistentFlags().StringVarP(&apiKeyFlag, "api-key", "k", "", "API key (default: $GAPSIM_API_KEY)")
}

func serverURL() string {
	if serverFlag != "" {
		return strings.TrimRight(serverFlag, "/")
	}
	if env := os.Getenv("GAPSIM_SERVER"); env != "" {
		return strings.TrimRight(env, "/")
	}
	return "http://localhost:8080"
}

func apiKey() string {
	if apiKeyFlag != "" {
		return apiKeyFlag
	}
	return os.Getenv("GAPSIM_API_KEY")
}

// request performs one API call and returns the raw response body. Error
// statuses terminate the process with the server's message.
func request(method, path string, body any) []byte {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			exitErr("encode request", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, serverURL()+path, rdr)
	if err != nil {
		exitErr("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := apiKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		exitErr("call server", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		exitErr("read response", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			fmt.Fprintf(os.Stderr, "error: %s (HTTP %d)\n", e.Error, resp.StatusCode)
		} else {
			fmt.Fprintf(os.Stderr, "error: HTTP %d\n", resp.StatusCode)
		}
		os.Exit(1)
	}

	return data
}

func printJSON(data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(buf.String())
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
