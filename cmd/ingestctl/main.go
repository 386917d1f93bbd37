// Command ingestctl is a thin flag-based client for the ingestord HTTP API:
// enqueue, list, get, cancel, and retry jobs without hand-writing curl
// invocations.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

func main() {
	log.SetFlags(0)

	var (
		addr    = flag.String("addr", envOr("INGESTCTL_ADDR", "http://127.0.0.1:8088"), "ingestord HTTP address")
		cmd     = flag.String("cmd", "", "one of: enqueue, list, get, cancel, retry")
		queue   = flag.String("queue", "ingest", "queue name for enqueue/list")
		jobType = flag.String("type", "ingest", "job type for enqueue (ingest, checksum_update, prune)")
		id      = flag.Int64("id", 0, "job id for get/cancel/retry")
		payload = flag.String("payload", "", "JSON payload for enqueue (use -payload-stdin to read from STDIN instead)")
		stdin   = flag.Bool("payload-stdin", false, "read the enqueue payload JSON from STDIN")
	)
	flag.Parse()

	if *cmd == "" {
		log.Fatal("missing -cmd; one of enqueue, list, get, cancel, retry")
	}

	client := &http.Client{}

	switch *cmd {
	case "enqueue":
		raw := *payload
		if *stdin {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				log.Fatalf("read stdin: %v", err)
			}
			raw = string(b)
		}
		if raw == "" {
			raw = "{}"
		}
		var decodedPayload map[string]any
		if err := json.Unmarshal([]byte(raw), &decodedPayload); err != nil {
			log.Fatalf("parse payload JSON: %v", err)
		}
		body, _ := json.Marshal(map[string]any{
			"queue":   *queue,
			"type":    *jobType,
			"payload": decodedPayload,
		})
		doRequest(client, http.MethodPost, *addr+"/api/v1/jobs", body)

	case "list":
		doRequest(client, http.MethodGet, fmt.Sprintf("%s/api/v1/jobs?queue=%s", *addr, *queue), nil)

	case "get":
		requireID(*id)
		doRequest(client, http.MethodGet, fmt.Sprintf("%s/api/v1/jobs/%d", *addr, *id), nil)

	case "cancel":
		requireID(*id)
		doRequest(client, http.MethodPost, fmt.Sprintf("%s/api/v1/jobs/%d/cancel", *addr, *id), nil)

	case "retry":
		requireID(*id)
		doRequest(client, http.MethodPost, fmt.Sprintf("%s/api/v1/jobs/%d/retry", *addr, *id), nil)

	default:
		log.Fatalf("unknown -cmd %q", *cmd)
	}
}

func requireID(id int64) {
	if id == 0 {
		log.Fatal("missing -id")
	}
}

func doRequest(client *http.Client, method, url string, body []byte) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("http: %v", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response: %v", err)
	}
	if resp.StatusCode/100 != 2 {
		log.Fatalf("%s: %s", resp.Status, string(out))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, out, "", "  ") == nil {
		fmt.Println(pretty.String())
		return
	}
	fmt.Println(string(out))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
